package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/report"
)

// LogSink writes each failure as a structured warning.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the Reporter interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Report logs the event with structured fields.
func (s *LogSink) Report(_ context.Context, evt report.Event) {
	s.logger.Warn("stage failure",
		zap.String("run_id", evt.RunID),
		zap.String("stage", string(evt.Stage)),
		zap.String("kind", string(evt.Kind)),
		zap.String("subject", evt.Subject),
		zap.Time("ts", evt.TS),
		zap.Error(evt.Err),
	)
}
