// Package primitive arbitrates between independent motion primitives that
// all want to drive the same motors.
//
// Every primitive stages the values it wants in its own StagingBuffer. A
// Manager wakes up at a fixed frequency, reads what every registered primitive
// has staged, combines the values that target the same motor property with a
// Reduction and writes the result to the motor. A property that nobody staged
// is left alone.
package primitive

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarchlab/motorarbiter/actuator"
	"github.com/sarchlab/motorarbiter/hooking"
)

// State is the lifecycle state of a Manager.
type State int32

// A Manager moves from Created to Running to Stopped and never back.
const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	}

	return "Unknown"
}

// Hook positions triggered by the Manager. Hooks run on the tick goroutine,
// their time counts against the period, and they must not call Stop.
var (
	// HookPosTickStart is triggered before the registration set is read. The
	// Item is the number of the tick, starting from 1.
	HookPosTickStart = &hooking.HookPos{Name: "TickStart"}

	// HookPosTickEnd is triggered after all writes of a tick, before the
	// manager sleeps. The Item is a TickStats.
	HookPosTickEnd = &hooking.HookPos{Name: "TickEnd"}

	// HookPosWriteFailed is triggered for each refused write. The Item is a
	// WriteFailure.
	HookPosWriteFailed = &hooking.HookPos{Name: "WriteFailed"}
)

// TickStats summarizes one tick. Duration covers the write pass only.
type TickStats struct {
	Tick     uint64
	Start    time.Time
	Duration time.Duration
	Sources  int
	Writes   int
	Failures int
	Overrun  bool
}

// ErrorHandler receives the write failures of a tick. It runs on the tick
// goroutine and must not call Stop.
type ErrorHandler func(err *TickError)

// A Manager applies the combined orders of the registered primitives to the
// actuators at a fixed frequency.
type Manager struct {
	hooking.HookableBase

	name      string
	actuators []actuator.Actuator
	period    time.Duration
	reduce    Reduction
	onError   ErrorHandler
	clock     clock

	primLock sync.RWMutex
	prims    []Source

	stateLock sync.Mutex
	state     State
	stopCh    chan struct{}
	done      chan struct{}

	ticks atomic.Uint64

	errLock sync.Mutex
	lastErr *TickError
}

// Name returns the name of the manager.
func (m *Manager) Name() string {
	return m.name
}

// Period returns the target duration of a tick.
func (m *Manager) Period() time.Duration {
	return m.period
}

// Actuators returns the actuators in the order they are visited.
func (m *Manager) Actuators() []actuator.Actuator {
	out := make([]actuator.Actuator, len(m.actuators))
	copy(out, m.actuators)

	return out
}

// Register adds a source whose staged writes count from the next tick on.
// Registering a source twice keeps a single entry.
func (m *Manager) Register(src Source) {
	if src == nil {
		return
	}

	m.primLock.Lock()
	defer m.primLock.Unlock()

	for _, p := range m.prims {
		if p == src {
			return
		}
	}

	m.prims = append(m.prims, src)
}

// Deregister removes a source. Removing a source that is not registered does
// nothing.
func (m *Manager) Deregister(src Source) {
	m.primLock.Lock()
	defer m.primLock.Unlock()

	for i, p := range m.prims {
		if p == src {
			m.prims = append(m.prims[:i:i], m.prims[i+1:]...)
			return
		}
	}
}

// Primitives returns a snapshot of the registered sources in registration
// order.
func (m *Manager) Primitives() []Source {
	m.primLock.RLock()
	defer m.primLock.RUnlock()

	out := make([]Source, len(m.prims))
	copy(out, m.prims)

	return out
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	return m.state
}

// Ticks returns the number of completed ticks.
func (m *Manager) Ticks() uint64 {
	return m.ticks.Load()
}

// LastError returns the failures of the most recent tick, or nil if that tick
// wrote everything.
func (m *Manager) LastError() error {
	m.errLock.Lock()
	defer m.errLock.Unlock()

	if m.lastErr == nil {
		return nil
	}

	return m.lastErr
}

// Start launches the tick loop in its own goroutine and returns immediately.
func (m *Manager) Start() error {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	switch m.state {
	case StateRunning:
		return ErrAlreadyRunning
	case StateStopped:
		return ErrStopped
	}

	m.state = StateRunning
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})

	go m.run()

	return nil
}

// Stop prevents any new tick from starting and waits for the tick in
// progress, if any, to finish its writes. After Stop returns the actuators are
// no longer written. Stop can be called more than once.
func (m *Manager) Stop() {
	m.stateLock.Lock()
	prev := m.state
	m.state = StateStopped
	if prev == StateRunning {
		close(m.stopCh)
	}
	m.stateLock.Unlock()

	if prev == StateRunning {
		<-m.done
	}
}

func (m *Manager) run() {
	defer close(m.done)

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		if !m.step() {
			return
		}
	}
}

// step runs one tick and waits for the rest of the period. The period counts
// the writes, the error handler and the hooks. A tick that takes the whole
// period or longer is followed immediately by the next one, without trying to
// catch up. step returns false if the manager is stopped while waiting.
func (m *Manager) step() bool {
	stats := m.tick()

	remaining := m.period - m.clock.Now().Sub(stats.Start)
	if remaining <= 0 {
		return true
	}

	select {
	case <-m.stopCh:
		return false
	case <-m.clock.After(remaining):
		return true
	}
}

func (m *Manager) tick() TickStats {
	start := m.clock.Now()
	tickNum := m.ticks.Load() + 1

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosTickStart,
		Item:   tickNum,
	})

	sources := m.Primitives()

	var failures []WriteFailure
	writes := 0
	for _, a := range m.actuators {
		n, f := m.apply(a, m.collect(a.Name(), sources))
		writes += n
		failures = append(failures, f...)
	}

	stats := TickStats{
		Tick:     tickNum,
		Start:    start,
		Duration: m.clock.Now().Sub(start),
		Sources:  len(sources),
		Writes:   writes,
		Failures: len(failures),
	}
	stats.Overrun = stats.Duration >= m.period

	m.ticks.Store(tickNum)
	m.report(tickNum, failures)

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosTickEnd,
		Item:   stats,
	})

	return stats
}

// collect groups the staged values for one actuator by property. The values
// of each property keep the order of sources.
func (m *Manager) collect(
	name string,
	sources []Source,
) map[string][]float64 {
	var grouped map[string][]float64

	for _, src := range sources {
		for prop, v := range src.StagedWrites(name) {
			if grouped == nil {
				grouped = make(map[string][]float64)
			}

			grouped[prop] = append(grouped[prop], v)
		}
	}

	return grouped
}

func (m *Manager) apply(
	a actuator.Actuator,
	grouped map[string][]float64,
) (writes int, failures []WriteFailure) {
	props := make([]string, 0, len(grouped))
	for prop := range grouped {
		props = append(props, prop)
	}
	sort.Strings(props)

	for _, prop := range props {
		value := m.reduce(grouped[prop])

		err := a.SetProperty(prop, value)
		if err == nil {
			writes++
			continue
		}

		f := WriteFailure{
			Actuator: a.Name(),
			Property: prop,
			Value:    value,
			Err:      err,
		}
		failures = append(failures, f)

		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosWriteFailed,
			Item:   f,
		})
	}

	return writes, failures
}

func (m *Manager) report(tickNum uint64, failures []WriteFailure) {
	var tickErr *TickError
	if len(failures) > 0 {
		tickErr = &TickError{Tick: tickNum, Failures: failures}
	}

	m.errLock.Lock()
	m.lastErr = tickErr
	m.errLock.Unlock()

	if tickErr != nil && m.onError != nil {
		m.onError(tickErr)
	}
}

func logTickError(name string) ErrorHandler {
	return func(err *TickError) {
		log.Printf("%s: %v", name, err)
	}
}
