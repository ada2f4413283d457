package primitive

import (
	"log"
	"time"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
)

// DefaultFreq is the update rate used when none is configured.
const DefaultFreq = 50 * Hz

// Period returns the time between two consecutive ticks
func (f Freq) Period() time.Duration {
	if f <= 0 {
		log.Panic("frequency must be positive")
	}

	return time.Duration(float64(time.Second) / float64(f))
}

// FreqOf returns the frequency that ticks once every period.
func FreqOf(period time.Duration) Freq {
	if period <= 0 {
		log.Panic("period must be positive")
	}

	return Freq(float64(time.Second) / float64(period))
}
