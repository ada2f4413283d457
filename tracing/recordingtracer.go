package tracing

import (
	"github.com/sarchlab/motorarbiter/datarecording"
	"github.com/sarchlab/motorarbiter/hooking"
	"github.com/sarchlab/motorarbiter/primitive"
)

// Table names used by the RecordingTracer.
const (
	TickTableName    = "ticks"
	FailureTableName = "write_failures"
)

// TickRecord is one row of the tick table.
type TickRecord struct {
	Manager    string
	Tick       uint64
	StartNanos int64
	Duration   int64
	Sources    int
	Writes     int
	Failures   int
	Overrun    bool
}

// FailureRecord is one row of the write failure table.
type FailureRecord struct {
	Manager  string
	Tick     uint64
	Actuator string
	Property string
	Value    float64
	Error    string
}

// RecordingTracer stores every tick and every refused write in a
// DataRecorder.
type RecordingTracer struct {
	name     string
	recorder datarecording.DataRecorder
	tick     uint64
}

// NewRecordingTracer creates the tables and returns a tracer that fills them.
// The name tells apart managers sharing a recorder.
func NewRecordingTracer(
	name string,
	recorder datarecording.DataRecorder,
) *RecordingTracer {
	t := &RecordingTracer{
		name:     name,
		recorder: recorder,
	}

	if !hasTable(recorder, TickTableName) {
		recorder.CreateTable(TickTableName, TickRecord{})
	}

	if !hasTable(recorder, FailureTableName) {
		recorder.CreateTable(FailureTableName, FailureRecord{})
	}

	return t
}

func hasTable(recorder datarecording.DataRecorder, name string) bool {
	for _, t := range recorder.ListTables() {
		if t == name {
			return true
		}
	}

	return false
}

// Func records ticks and failures.
func (t *RecordingTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case primitive.HookPosTickStart:
		t.tick = ctx.Item.(uint64)
	case primitive.HookPosWriteFailed:
		t.recordFailure(ctx.Item.(primitive.WriteFailure))
	case primitive.HookPosTickEnd:
		t.recordTick(ctx.Item.(primitive.TickStats))
	}
}

func (t *RecordingTracer) recordFailure(f primitive.WriteFailure) {
	t.recorder.InsertData(FailureTableName, FailureRecord{
		Manager:  t.name,
		Tick:     t.tick,
		Actuator: f.Actuator,
		Property: f.Property,
		Value:    f.Value,
		Error:    f.Err.Error(),
	})
}

func (t *RecordingTracer) recordTick(stats primitive.TickStats) {
	t.recorder.InsertData(TickTableName, TickRecord{
		Manager:    t.name,
		Tick:       stats.Tick,
		StartNanos: stats.Start.UnixNano(),
		Duration:   int64(stats.Duration),
		Sources:    stats.Sources,
		Writes:     stats.Writes,
		Failures:   stats.Failures,
		Overrun:    stats.Overrun,
	})
}
