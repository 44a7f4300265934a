package domain

import (
	"time"

	"github.com/google/uuid"
)

// Build — одна сборка pipeline для конкретной пары (ветка, коммит).
//
// Build создаётся когда:
// - Приходит push-событие в одну из trigger-веток pipeline
// - Пользователь запускает сборку вручную (через API/CLI)
// - Scheduler создаёт сборку по расписанию
//
// Каждый build выполняет конкретную версию pipeline и имеет свой набор tasks.
type Build struct {
	// ID — уникальный идентификатор build.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на pipeline, который собирается.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Version — версия pipeline, которая выполняется.
	Version int `json:"version"`

	// Status — текущий статус выполнения.
	Status BuildStatus `json:"status"`

	// Trigger — источник запуска: push, manual, schedule.
	Trigger TriggerKind `json:"trigger"`

	// Branch — ветка, для которой собирается build.
	Branch string `json:"branch"`

	// Commit — SHA коммита. Пустой для scheduled-сборок,
	// тогда checkout берёт HEAD ветки.
	Commit string `json:"commit,omitempty"`

	// ImageTag — тег образа, вычисленный из ветки при создании build.
	// Пустой, если pipeline не публикует образ.
	ImageTag string `json:"image_tag,omitempty"`

	// Inputs — входные параметры, переданные при запуске.
	// Соответствуют PipelineSpec.Inputs.
	Inputs map[string]any `json:"inputs,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	// Nil, если build ещё не начался.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	// Nil, если build ещё выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если build завершился с FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Для push: "{pipeline_id}_{commit}", для scheduled: "{schedule_id}_{due_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// CreatedAt — время создания build.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если build ещё не завершён.
func (b *Build) Duration() time.Duration {
	if b.StartedAt == nil || b.FinishedAt == nil {
		return 0
	}
	return b.FinishedAt.Sub(*b.StartedAt)
}

// IsFinished возвращает true, если build завершён (в любом статусе).
func (b *Build) IsFinished() bool {
	return b.Status.IsTerminal()
}

// MarkRunning переводит build в статус RUNNING.
func (b *Build) MarkRunning() {
	now := time.Now()
	b.Status = BuildStatusRunning
	b.StartedAt = &now
}

// MarkSucceeded переводит build в статус SUCCEEDED.
func (b *Build) MarkSucceeded() {
	now := time.Now()
	b.Status = BuildStatusSucceeded
	b.FinishedAt = &now
}

// MarkFailed переводит build в статус FAILED с ошибкой.
func (b *Build) MarkFailed(err string) {
	now := time.Now()
	b.Status = BuildStatusFailed
	b.FinishedAt = &now
	b.Error = err
}

// MarkCancelled переводит build в статус CANCELLED.
func (b *Build) MarkCancelled() {
	now := time.Now()
	b.Status = BuildStatusCancelled
	b.FinishedAt = &now
}
