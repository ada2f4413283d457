package primitive

import (
	"fmt"
	"time"

	"github.com/sarchlab/motorarbiter/actuator"
)

// Builder can build managers.
type Builder struct {
	actuators []actuator.Actuator
	period    time.Duration
	reduce    Reduction
	onError   ErrorHandler
	errorSet  bool
}

// MakeBuilder creates a builder that ticks at DefaultFreq and averages
// conflicting orders.
func MakeBuilder() Builder {
	return Builder{
		period: DefaultFreq.Period(),
		reduce: Mean,
	}
}

// WithActuators sets the actuators, in the order they are written each tick.
func (b Builder) WithActuators(actuators ...actuator.Actuator) Builder {
	b.actuators = append([]actuator.Actuator(nil), actuators...)
	return b
}

// WithPeriod sets the duration of a tick.
func (b Builder) WithPeriod(period time.Duration) Builder {
	b.period = period
	return b
}

// WithFreq sets the tick rate.
func (b Builder) WithFreq(f Freq) Builder {
	if f <= 0 {
		b.period = 0
		return b
	}

	b.period = f.Period()

	return b
}

// WithReduction sets how conflicting orders are combined. A nil reduction
// means Mean.
func (b Builder) WithReduction(r Reduction) Builder {
	if r == nil {
		r = Mean
	}

	b.reduce = r

	return b
}

// WithErrorHandler sets who hears about failed writes. By default they are
// logged. A nil handler silences them; LastError still reports them.
func (b Builder) WithErrorHandler(h ErrorHandler) Builder {
	b.onError = h
	b.errorSet = true

	return b
}

// Build validates the configuration and creates a manager in the Created
// state.
func (b Builder) Build(name string) (*Manager, error) {
	if b.period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %v",
			ErrInvalidConfig, b.period)
	}

	if err := b.checkActuators(); err != nil {
		return nil, err
	}

	if err := checkReduction(b.reduce); err != nil {
		return nil, err
	}

	m := &Manager{
		name:      name,
		actuators: b.actuators,
		period:    b.period,
		reduce:    b.reduce,
		onError:   b.onError,
		clock:     wallClock{},
	}

	if !b.errorSet {
		m.onError = logTickError(name)
	}

	return m, nil
}

func (b Builder) checkActuators() error {
	if len(b.actuators) == 0 {
		return fmt.Errorf("%w: no actuator", ErrInvalidConfig)
	}

	names := make(map[string]bool, len(b.actuators))
	for i, a := range b.actuators {
		if a == nil {
			return fmt.Errorf("%w: actuator %d is nil", ErrInvalidConfig, i)
		}

		if names[a.Name()] {
			return fmt.Errorf("%w: duplicated actuator name %q",
				ErrInvalidConfig, a.Name())
		}

		names[a.Name()] = true
	}

	return nil
}
