package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the migration engine.
type Metrics struct {
	config MetricsConfig

	// Plan metrics
	plansCreated   prometheus.Counter
	plansCompleted *prometheus.CounterVec
	activePlans    prometheus.Gauge

	// Phase metrics
	phasesExecuted *prometheus.CounterVec
	phaseDuration  *prometheus.HistogramVec

	// Task metrics
	tasksExecuted *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	taskRetries   *prometheus.CounterVec
	queuedTasks   prometheus.Gauge

	// Rollback and recovery metrics
	rollbacks             *prometheus.CounterVec
	rollbackSteps         prometheus.Counter
	recoveryPointsCreated prometheus.Counter

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance: every record method checks for nil collectors.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		plansCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_created_total",
				Help:      "Total number of migration plans created",
			},
		),
		plansCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_completed_total",
				Help:      "Total number of migration plans reaching a terminal status",
			},
			[]string{"status"},
		),
		activePlans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_plans",
				Help:      "Current number of plans in progress",
			},
		),

		phasesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phases_executed_total",
				Help:      "Total number of phases executed",
			},
			[]string{"status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of phase execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		tasksExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_executed_total",
				Help:      "Total number of tasks executed",
			},
			[]string{"type", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of task execution in seconds",
				Buckets:   buckets,
			},
			[]string{"type"},
		),
		taskRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_retries_total",
				Help:      "Total number of task retry attempts",
			},
			[]string{"type"},
		),
		queuedTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queued_tasks",
				Help:      "Current number of tasks waiting in the execution queue",
			},
		),

		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Total number of rollback operations",
			},
			[]string{"status"},
		),
		rollbackSteps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollback_steps_total",
				Help:      "Total number of individual rollback steps executed",
			},
		),
		recoveryPointsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_points_created_total",
				Help:      "Total number of recovery points created",
			},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.plansCreated,
		m.plansCompleted,
		m.activePlans,
		m.phasesExecuted,
		m.phaseDuration,
		m.tasksExecuted,
		m.taskDuration,
		m.taskRetries,
		m.queuedTasks,
		m.rollbacks,
		m.rollbackSteps,
		m.recoveryPointsCreated,
		m.errorsByClass,
	)

	return m, nil
}

// RecordPlanCreated increments the created-plans counter.
func (m *Metrics) RecordPlanCreated() {
	if m.plansCreated == nil {
		return
	}
	m.plansCreated.Inc()
}

// RecordPlanStarted increments the active-plans gauge.
func (m *Metrics) RecordPlanStarted() {
	if m.activePlans == nil {
		return
	}
	m.activePlans.Inc()
}

// RecordPlanCompleted records a plan reaching a terminal status.
func (m *Metrics) RecordPlanCompleted(status string) {
	if m.plansCompleted == nil {
		return
	}
	m.plansCompleted.WithLabelValues(status).Inc()
	m.activePlans.Dec()
}

// RecordPhaseExecution records a completed phase execution.
func (m *Metrics) RecordPhaseExecution(status string, duration time.Duration) {
	if m.phasesExecuted == nil {
		return
	}
	m.phasesExecuted.WithLabelValues(status).Inc()
	m.phaseDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordTaskExecution records a completed task execution.
func (m *Metrics) RecordTaskExecution(taskType, status string, duration time.Duration) {
	if m.tasksExecuted == nil {
		return
	}
	m.tasksExecuted.WithLabelValues(taskType, status).Inc()
	m.taskDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}

// RecordTaskRetry records a retry attempt for a task.
func (m *Metrics) RecordTaskRetry(taskType string) {
	if m.taskRetries == nil {
		return
	}
	m.taskRetries.WithLabelValues(taskType).Inc()
}

// SetQueuedTasks sets the current execution queue depth.
func (m *Metrics) SetQueuedTasks(count float64) {
	if m.queuedTasks == nil {
		return
	}
	m.queuedTasks.Set(count)
}

// RecordRollback records a rollback operation and its step count.
func (m *Metrics) RecordRollback(status string, steps int) {
	if m.rollbacks == nil {
		return
	}
	m.rollbacks.WithLabelValues(status).Inc()
	m.rollbackSteps.Add(float64(steps))
}

// RecordRecoveryPoint records the creation of a recovery point.
func (m *Metrics) RecordRecoveryPoint() {
	if m.recoveryPointsCreated == nil {
		return
	}
	m.recoveryPointsCreated.Inc()
}

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
