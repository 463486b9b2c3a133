// Package telemetry provides the observability layer for the cutover
// migration engine: structured logging, distributed tracing, Prometheus
// metrics, and an in-process lifecycle event publisher.
//
// The four concerns are bundled behind a single Telemetry aggregate so
// the orchestrator, execution engine and recovery service can share one
// configured instance:
//
//	tel, err := telemetry.New(telemetry.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	log := tel.Logger.NewComponentLogger("orchestrator")
//	log.WithPlanID(plan.ID).Info("plan created")
//
// Logging uses zerolog with plan/phase/task field helpers. Tracing uses
// OpenTelemetry with stdout and OTLP gRPC exporters. Metrics are
// namespaced Prometheus collectors with an optional HTTP endpoint. The
// event publisher is a buffered fan-out channel: components publish
// lifecycle events (plan/phase/task started, completed, failed, rolled
// back) and callers subscribe with optional filters.
package telemetry
