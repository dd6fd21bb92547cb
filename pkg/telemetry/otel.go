package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// StepMetadata describes the orchestrator transition a span or metric
// pertains to: one of the C4 state-machine node kinds (plan, search, code,
// llm, solve, replan).
type StepMetadata struct {
	SessionID string
	Kind      string
	Tool      string
}

// OrchestratorTracing is the default Tracing implementation: a span per
// executed tool step, exported via stdouttrace when
// OTEL_TRACES_EXPORTER=stdout is set, otherwise a resource-tagged no-export
// provider that still participates in context propagation.
type OrchestratorTracing struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracer builds the process-wide TracerProvider and returns a shutdown
// function. serviceName/version populate the OTEL resource attributes.
func InitTracer(serviceName, version string) (func(context.Context) error, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
			semconv.DeploymentEnvironmentKey.String(getEnvironment()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	provider, err := setupTraceProvider(res)
	if err != nil {
		return nil, fmt.Errorf("telemetry: setup trace provider: %w", err)
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}

// NewOrchestratorTracing wraps the process-wide TracerProvider for
// per-step span creation.
func NewOrchestratorTracing() *OrchestratorTracing {
	provider, _ := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	return &OrchestratorTracing{
		provider: provider,
		tracer:   otel.Tracer("research-orchestrator"),
	}
}

func setupTraceProvider(res *resource.Resource) (*sdktrace.TracerProvider, error) {
	if os.Getenv("OTEL_TRACES_EXPORTER") != "stdout" {
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

func getEnvironment() string {
	if env := os.Getenv("DEPLOYMENT_ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}

// StartStepSpan opens a span named after step.Kind, tagged with the
// session id and tool.
func (t *OrchestratorTracing) StartStepSpan(ctx context.Context, step StepMetadata) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("orchestrator.%s", step.Kind)
	ctx, span := t.tracer.Start(ctx, spanName)
	span.SetAttributes(
		attribute.String("research.session_id", step.SessionID),
		attribute.String("research.step_kind", step.Kind),
		attribute.String("research.tool", step.Tool),
	)
	return ctx, span
}

// RecordStepDuration is a no-op metrics hook: otel/metric was dropped from
// this module's dependency set (see the grounding ledger), so duration is
// only recorded on the span itself via its end timestamp.
func (t *OrchestratorTracing) RecordStepDuration(step StepMetadata, duration time.Duration, err error) {
}

// Shutdown flushes and stops the underlying TracerProvider.
func (t *OrchestratorTracing) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
