package iqs

import (
	"log/slog"

	"github.com/google/uuid"
)

// stepLogger returns a logger tagged with a fresh correlation id for one
// Simulate call, so log lines emitted from different worker goroutines (or
// ranks, in the distributed pipeline) within the same step can be joined.
func stepLogger(base *slog.Logger) (*slog.Logger, string) {
	if base == nil {
		base = slog.Default()
	}
	id := uuid.New().String()
	return base.With(slog.String("step_id", id)), id
}

// stageLogger narrows a step logger to one named pipeline stage.
func stageLogger(step *slog.Logger, stage string) *slog.Logger {
	return step.With(slog.String("stage", stage))
}
