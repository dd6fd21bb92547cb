package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Tracing defines the span/metric surface the orchestrator uses to observe
// a session's run.
type Tracing interface {
	StartStepSpan(ctx context.Context, step StepMetadata) (context.Context, trace.Span)
	RecordStepDuration(step StepMetadata, duration time.Duration, err error)
	Shutdown(ctx context.Context) error
}
