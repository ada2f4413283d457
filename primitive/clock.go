package primitive

import "time"

type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
