// Package tracing provides hooks that observe the ticks of a manager.
package tracing

import (
	"sync"
	"time"

	"github.com/sarchlab/motorarbiter/hooking"
	"github.com/sarchlab/motorarbiter/primitive"
)

// TickSummary aggregates the ticks seen by a TickTimeTracer.
type TickSummary struct {
	Count         uint64        `json:"count"`
	TotalTime     time.Duration `json:"total_time"`
	AverageTime   time.Duration `json:"average_time"`
	MaxTime       time.Duration `json:"max_time"`
	Overruns      uint64        `json:"overruns"`
	WriteFailures uint64        `json:"write_failures"`
	Writes        uint64        `json:"writes"`
	LastTick      uint64        `json:"last_tick"`
}

// TickTimeTracer collects how long ticks take. It is read from other
// goroutines, for example by the monitor, while the manager keeps ticking.
type TickTimeTracer struct {
	lock    sync.Mutex
	summary TickSummary
}

// NewTickTimeTracer creates a new TickTimeTracer
func NewTickTimeTracer() *TickTimeTracer {
	return &TickTimeTracer{}
}

// Func records the end of a tick.
func (t *TickTimeTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != primitive.HookPosTickEnd {
		return
	}

	t.EndTick(ctx.Item.(primitive.TickStats))
}

// EndTick adds one tick to the summary.
func (t *TickTimeTracer) EndTick(stats primitive.TickStats) {
	t.lock.Lock()
	defer t.lock.Unlock()

	s := &t.summary
	s.Count++
	s.TotalTime += stats.Duration
	s.AverageTime = s.TotalTime / time.Duration(s.Count)
	s.Writes += uint64(stats.Writes)
	s.WriteFailures += uint64(stats.Failures)
	s.LastTick = stats.Tick

	if stats.Duration > s.MaxTime {
		s.MaxTime = stats.Duration
	}

	if stats.Overrun {
		s.Overruns++
	}
}

// Summary returns a copy of what has been collected so far.
func (t *TickTimeTracer) Summary() TickSummary {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.summary
}

// AverageTime returns the mean tick duration.
func (t *TickTimeTracer) AverageTime() time.Duration {
	return t.Summary().AverageTime
}

// TotalCount returns the number of ticks seen.
func (t *TickTimeTracer) TotalCount() uint64 {
	return t.Summary().Count
}
