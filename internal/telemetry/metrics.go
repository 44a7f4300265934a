package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики сервисов.
//
// Регистрируются в DefaultRegisterer при импорте пакета,
// экспортируются через promhttp на /metrics каждого бинарника.
var (
	// BuildsStarted — количество запущенных builds, по триггеру.
	BuildsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbci",
		Name:      "builds_started_total",
		Help:      "Number of builds started, by trigger kind.",
	}, []string{"trigger"})

	// BuildsCompleted — количество завершённых builds, по статусу.
	BuildsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbci",
		Name:      "builds_completed_total",
		Help:      "Number of builds completed, by final status.",
	}, []string{"status"})

	// BuildDuration — длительность build от старта до завершения.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pbci",
		Name:      "build_duration_seconds",
		Help:      "Build duration from start to finish.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// TasksExecuted — количество выполненных tasks, по типу шага и статусу.
	TasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbci",
		Name:      "tasks_executed_total",
		Help:      "Number of tasks executed, by step type and status.",
	}, []string{"type", "status"})

	// TaskDuration — длительность выполнения task, по типу шага.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pbci",
		Name:      "task_duration_seconds",
		Help:      "Task execution duration, by step type.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"type"})

	// TaskRetries — количество повторных попыток tasks.
	TaskRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbci",
		Name:      "task_retries_total",
		Help:      "Number of task retry attempts, by step type.",
	}, []string{"type"})

	// ImagesPushed — количество опубликованных образов, по тегу.
	ImagesPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbci",
		Name:      "images_pushed_total",
		Help:      "Number of container images pushed to the registry, by tag.",
	}, []string{"tag"})

	// WebhooksReceived — количество принятых push-событий, по результату.
	// result: triggered, ignored, rejected.
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbci",
		Name:      "webhooks_received_total",
		Help:      "Number of push webhooks received, by outcome.",
	}, []string{"result"})
)
