package primitive

import "sync"

// A Source stages property writes for actuators. The manager reads a Source
// only while it is registered.
//
// StagedWrites returns what is currently staged for one actuator, keyed by
// property name. The returned map belongs to the caller. A missing property
// means the source has no opinion on it this tick, which is different from
// staging zero. Sources are compared by identity, so implementations should be
// pointer types.
type Source interface {
	StagedWrites(actuator string) map[string]float64
}

// A Registrar accepts and forgets sources. The Manager is the Registrar used in
// practice.
type Registrar interface {
	Register(src Source)
	Deregister(src Source)
}

// StagingBuffer holds the most recent value a producer staged for each
// actuator property. The producer writes from its own goroutine while the
// manager reads from the tick goroutine.
type StagingBuffer struct {
	lock   sync.RWMutex
	staged map[string]map[string]float64
}

// NewStagingBuffer creates an empty buffer.
func NewStagingBuffer() *StagingBuffer {
	return &StagingBuffer{
		staged: make(map[string]map[string]float64),
	}
}

// Stage sets the value for a property. A later Stage on the same property
// replaces it.
func (b *StagingBuffer) Stage(actuator, property string, value float64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	props, ok := b.staged[actuator]
	if !ok {
		props = make(map[string]float64)
		b.staged[actuator] = props
	}

	props[property] = value
}

// StageAll sets several properties of one actuator at once. The manager
// either sees all of them or none of them.
func (b *StagingBuffer) StageAll(actuator string, values map[string]float64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	props, ok := b.staged[actuator]
	if !ok {
		props = make(map[string]float64, len(values))
		b.staged[actuator] = props
	}

	for k, v := range values {
		props[k] = v
	}
}

// Unstage removes a single property, so the buffer stops contributing to it.
func (b *StagingBuffer) Unstage(actuator, property string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	props, ok := b.staged[actuator]
	if !ok {
		return
	}

	delete(props, property)
	if len(props) == 0 {
		delete(b.staged, actuator)
	}
}

// ClearActuator removes everything staged for one actuator.
func (b *StagingBuffer) ClearActuator(actuator string) {
	b.lock.Lock()
	delete(b.staged, actuator)
	b.lock.Unlock()
}

// Clear removes everything.
func (b *StagingBuffer) Clear() {
	b.lock.Lock()
	b.staged = make(map[string]map[string]float64)
	b.lock.Unlock()
}

// StagedWrites returns a copy of what is staged for the actuator, or nil.
func (b *StagingBuffer) StagedWrites(actuator string) map[string]float64 {
	b.lock.RLock()
	defer b.lock.RUnlock()

	props, ok := b.staged[actuator]
	if !ok || len(props) == 0 {
		return nil
	}

	out := make(map[string]float64, len(props))
	for k, v := range props {
		out[k] = v
	}

	return out
}
