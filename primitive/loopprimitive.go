package primitive

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// UpdateFunc computes new orders. It receives the time elapsed since the
// primitive started and the buffer to stage orders into.
type UpdateFunc func(elapsed time.Duration, buf *StagingBuffer)

// A LoopPrimitive calls its update function at its own frequency, in its own
// goroutine, regardless of when the manager ticks. It registers itself with
// the manager when started and deregisters itself when stopped.
type LoopPrimitive struct {
	*StagingBuffer

	id        string
	registrar Registrar
	period    time.Duration
	update    UpdateFunc

	lock      sync.Mutex
	state     State
	startTime time.Time
	stopCh    chan struct{}
	done      chan struct{}
}

// NewLoopPrimitive creates a primitive that updates at the given frequency.
func NewLoopPrimitive(
	registrar Registrar,
	freq Freq,
	update UpdateFunc,
) *LoopPrimitive {
	return &LoopPrimitive{
		StagingBuffer: NewStagingBuffer(),
		id:            xid.New().String(),
		registrar:     registrar,
		period:        freq.Period(),
		update:        update,
	}
}

// ID returns the unique id of the primitive.
func (p *LoopPrimitive) ID() string {
	return p.id
}

// Running tells if the update loop is active.
func (p *LoopPrimitive) Running() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.state == StateRunning
}

// ElapsedTime returns how long the primitive has been running.
func (p *LoopPrimitive) ElapsedTime() time.Duration {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state != StateRunning {
		return 0
	}

	return time.Since(p.startTime)
}

// Start registers the primitive and launches its update loop. The first
// update is staged before Start returns. The update function may query the
// primitive.
func (p *LoopPrimitive) Start() error {
	p.lock.Lock()

	switch p.state {
	case StateRunning:
		p.lock.Unlock()
		return ErrAlreadyRunning
	case StateStopped:
		p.lock.Unlock()
		return ErrStopped
	}

	p.state = StateRunning
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.lock.Unlock()

	p.update(0, p.StagingBuffer)
	p.registrar.Register(p)

	go p.loop()

	return nil
}

// Stop ends the update loop and deregisters the primitive. The manager stops
// using the orders of the primitive from its next tick.
func (p *LoopPrimitive) Stop() {
	p.lock.Lock()
	prev := p.state
	p.state = StateStopped
	if prev == StateRunning {
		close(p.stopCh)
	}
	p.lock.Unlock()

	if prev != StateRunning {
		return
	}

	<-p.done
	p.registrar.Deregister(p)
}

func (p *LoopPrimitive) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			p.update(now.Sub(p.startTime), p.StagingBuffer)
		}
	}
}
