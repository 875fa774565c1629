package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/progress"
)

// LogSink writes one debug line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageFetchDone:
			fields = append(fields,
				zap.String("url", evt.URL),
				zap.Int64("bytes", evt.Bytes),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Duration("dur", evt.Dur),
			)
		case progress.StageTargetDone:
			fields = append(fields,
				zap.String("target", evt.Target),
				zap.Int64("records", evt.Records),
				zap.String("status", evt.Note),
			)
		default:
			fields = append(fields, zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
