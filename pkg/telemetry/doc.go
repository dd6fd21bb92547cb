// Package telemetry wires distributed tracing for the research
// orchestrator using OpenTelemetry.
//
// # Tracing interface
//
//	type Tracing interface {
//	    StartStepSpan(ctx context.Context, step StepMetadata) (context.Context, trace.Span)
//	    RecordStepDuration(step StepMetadata, duration time.Duration, err error)
//	    Shutdown(ctx context.Context) error
//	}
//
// InitTracer installs the process-wide TracerProvider at startup;
// NewOrchestratorTracing returns a Tracing bound to it, used by the
// Orchestrator to open one span per executed tool step.
//
// # Configuration
//
//   - OTEL_TRACES_EXPORTER: set to "stdout" to export spans to stdout;
//     otherwise spans are recorded but not exported.
//   - DEPLOYMENT_ENVIRONMENT: the deployment environment resource
//     attribute (default "development"); service name and version come
//     from InitTracer's arguments.
//
// # Correlation
//
// CorrelationMiddleware tags each HTTP request with a correlation ID and
// request ID (generating them if absent), attaches them to the active
// span, and echoes them back in the response headers.
package telemetry
