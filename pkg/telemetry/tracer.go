package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Span attribute keys used across the migration engine.
const (
	AttrPlanID     = attribute.Key("migration.plan.id")
	AttrPhaseID    = attribute.Key("migration.phase.id")
	AttrTaskID     = attribute.Key("migration.task.id")
	AttrTaskType   = attribute.Key("migration.task.type")
	AttrAttempt    = attribute.Key("migration.task.attempt")
	AttrTargetID   = attribute.Key("migration.rollback.target_phase")
	AttrErrorClass = attribute.Key("migration.error.class")
)

// Tracer wraps OpenTelemetry tracing for migration operations.
type Tracer struct {
	config   TracingConfig
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTracer creates a new tracer with the given configuration.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion string) (*Tracer, error) {
	if !cfg.Enabled || cfg.Exporter == "none" {
		return &Tracer{
			config: cfg,
			tracer: noop.NewTracerProvider().Tracer(serviceName),
		}, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace resource: %w", err)
	}

	opts := []sdktrace.BatchSpanProcessorOption{}
	if cfg.MaxExportBatchSize > 0 {
		opts = append(opts, sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize))
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, sdktrace.WithExportTimeout(cfg.ExportTimeout))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, opts...),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		config:   cfg,
		tracer:   provider.Tracer(serviceName),
		provider: provider,
	}, nil
}

func newExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithDialOption(
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			))
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unknown trace exporter: %s", cfg.Exporter)
	}
}

// Start starts a new span with the given name.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartPlanSpan starts a span for a plan-level operation.
func (t *Tracer) StartPlanSpan(ctx context.Context, name, planID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithAttributes(AttrPlanID.String(planID)),
	)
}

// StartPhaseSpan starts a span for a phase execution.
func (t *Tracer) StartPhaseSpan(ctx context.Context, planID, phaseID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "phase.execute",
		trace.WithAttributes(
			AttrPlanID.String(planID),
			AttrPhaseID.String(phaseID),
		),
	)
}

// StartTaskSpan starts a span for a task execution attempt.
func (t *Tracer) StartTaskSpan(ctx context.Context, planID, phaseID, taskID, taskType string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "task.execute",
		trace.WithAttributes(
			AttrPlanID.String(planID),
			AttrPhaseID.String(phaseID),
			AttrTaskID.String(taskID),
			AttrTaskType.String(taskType),
			AttrAttempt.Int(attempt),
		),
	)
}

// StartRollbackSpan starts a span for a rollback operation.
func (t *Tracer) StartRollbackSpan(ctx context.Context, planID, targetPhaseID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "plan.rollback",
		trace.WithAttributes(
			AttrPlanID.String(planID),
			AttrTargetID.String(targetPhaseID),
		),
	)
}

// RecordError records an error on the span and marks it failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks the span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Shutdown flushes pending spans and shuts down the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return t.provider.Shutdown(shutdownCtx)
}
