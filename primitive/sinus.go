package primitive

import (
	"math"
	"time"

	"github.com/sarchlab/motorarbiter/actuator"
)

// SinusParams shapes a sinusoidal position order. Freq is in Hz and Phase in
// degrees.
type SinusParams struct {
	Amp    float64
	Freq   float64
	Offset float64
	Phase  float64
}

// Position returns the goal position at time t.
func (s SinusParams) Position(t time.Duration) float64 {
	return s.Amp*math.Sin(
		s.Freq*2*math.Pi*t.Seconds()+s.Phase*math.Pi/180,
	) + s.Offset
}

// NewSinus creates a primitive that moves the named motors along a sinus.
func NewSinus(
	registrar Registrar,
	refresh Freq,
	motors []string,
	params SinusParams,
) *LoopPrimitive {
	names := append([]string(nil), motors...)

	return NewLoopPrimitive(registrar, refresh,
		func(elapsed time.Duration, buf *StagingBuffer) {
			pos := params.Position(elapsed)
			for _, name := range names {
				buf.Stage(name, actuator.GoalPosition, pos)
			}
		})
}

// NewCosinus is NewSinus shifted by a quarter period.
func NewCosinus(
	registrar Registrar,
	refresh Freq,
	motors []string,
	params SinusParams,
) *LoopPrimitive {
	params.Phase += 90
	return NewSinus(registrar, refresh, motors, params)
}
