package tracing

import (
	"log"

	"github.com/sarchlab/motorarbiter/hooking"
	"github.com/sarchlab/motorarbiter/primitive"
)

// LogTracer writes refused writes, and optionally overruns, to a logger.
type LogTracer struct {
	*log.Logger

	logOverruns bool
}

// NewLogTracer creates a LogTracer. A nil logger means the standard logger.
func NewLogTracer(logger *log.Logger, logOverruns bool) *LogTracer {
	if logger == nil {
		logger = log.Default()
	}

	return &LogTracer{
		Logger:      logger,
		logOverruns: logOverruns,
	}
}

// Func logs the events of interest.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case primitive.HookPosWriteFailed:
		t.Printf("write failed: %v", ctx.Item.(primitive.WriteFailure))
	case primitive.HookPosTickEnd:
		stats := ctx.Item.(primitive.TickStats)
		if t.logOverruns && stats.Overrun {
			t.Printf("tick %d overran: took %v", stats.Tick, stats.Duration)
		}
	}
}
