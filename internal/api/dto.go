package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
)

// Pipeline DTOs

// CreatePipelineRequest — запрос на создание pipeline.
type CreatePipelineRequest struct {
	Name    string `json:"name"`
	RepoURL string `json:"repo_url"`
}

// UpdatePipelineRequest — запрос на обновление pipeline.
type UpdatePipelineRequest struct {
	Name     *string `json:"name,omitempty"`
	RepoURL  *string `json:"repo_url,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	RepoURL   string    `json:"repo_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p domain.Pipeline) PipelineResponse {
	return PipelineResponse{
		ID:        p.ID,
		Name:      p.Name,
		RepoURL:   p.RepoURL,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

// PipelineVersion DTOs

// CreatePipelineVersionRequest — запрос на создание версии pipeline.
type CreatePipelineVersionRequest struct {
	Spec domain.PipelineSpec `json:"spec"`
}

// PipelineVersionResponse — ответ с версией pipeline.
type PipelineVersionResponse struct {
	PipelineID uuid.UUID           `json:"pipeline_id"`
	Version    int                 `json:"version"`
	Spec       domain.PipelineSpec `json:"spec"`
	CreatedAt  time.Time           `json:"created_at"`
}

// PipelineVersionFromDomain конвертирует domain.PipelineVersion в PipelineVersionResponse.
func PipelineVersionFromDomain(v domain.PipelineVersion) PipelineVersionResponse {
	return PipelineVersionResponse{
		PipelineID: v.PipelineID,
		Version:    v.Version,
		Spec:       v.Spec,
		CreatedAt:  v.CreatedAt,
	}
}

// Build DTOs

// CreateBuildRequest — запрос на ручной запуск сборки.
type CreateBuildRequest struct {
	// Branch — ветка, для которой собирать. Определяет тег образа.
	Branch string `json:"branch"`

	// Commit — SHA коммита. Если пустой, checkout возьмёт HEAD ветки.
	Commit string `json:"commit,omitempty"`

	Inputs         map[string]any `json:"inputs,omitempty"`
	Version        *int           `json:"version,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// BuildResponse — ответ с build.
type BuildResponse struct {
	ID             uuid.UUID      `json:"id"`
	PipelineID     uuid.UUID      `json:"pipeline_id"`
	Version        int            `json:"version"`
	Status         string         `json:"status"`
	Trigger        string         `json:"trigger"`
	Branch         string         `json:"branch"`
	Commit         string         `json:"commit,omitempty"`
	ImageTag       string         `json:"image_tag,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// BuildFromDomain конвертирует domain.Build в BuildResponse.
func BuildFromDomain(b domain.Build) BuildResponse {
	return BuildResponse{
		ID:             b.ID,
		PipelineID:     b.PipelineID,
		Version:        b.Version,
		Status:         string(b.Status),
		Trigger:        string(b.Trigger),
		Branch:         b.Branch,
		Commit:         b.Commit,
		ImageTag:       b.ImageTag,
		Inputs:         b.Inputs,
		StartedAt:      b.StartedAt,
		FinishedAt:     b.FinishedAt,
		Error:          b.Error,
		IdempotencyKey: b.IdempotencyKey,
		CreatedAt:      b.CreatedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID         uuid.UUID      `json:"id"`
	BuildID    uuid.UUID      `json:"build_id"`
	StepID     string         `json:"step_id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Attempt    int            `json:"attempt"`
	Status     string         `json:"status"`
	Payload    map[string]any `json:"payload,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	LogTail    string         `json:"log_tail,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		BuildID:    t.BuildID,
		StepID:     t.StepID,
		Name:       t.Name,
		Type:       t.Type,
		Attempt:    t.Attempt,
		Status:     string(t.Status),
		Payload:    t.Payload,
		Outputs:    t.Outputs,
		LogTail:    t.LogTail,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	Branch      string         `json:"branch"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	Branch      *string         `json:"branch,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Inputs      *map[string]any `json:"inputs,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID      `json:"id"`
	PipelineID  uuid.UUID      `json:"pipeline_id"`
	Name        string         `json:"name"`
	Branch      string         `json:"branch"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   *time.Time     `json:"next_due_at,omitempty"`
	LastBuildAt *time.Time     `json:"last_build_at,omitempty"`
	LastBuildID *uuid.UUID     `json:"last_build_id,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		PipelineID:  s.PipelineID,
		Name:        s.Name,
		Branch:      s.Branch,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastBuildAt: s.LastBuildAt,
		LastBuildID: s.LastBuildID,
		Inputs:      s.Inputs,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// Artifact DTOs

// ArtifactResponse — ответ с опубликованным образом.
type ArtifactResponse struct {
	ID         uuid.UUID `json:"id"`
	BuildID    uuid.UUID `json:"build_id"`
	Repository string    `json:"repository"`
	Tag        string    `json:"tag"`
	Image      string    `json:"image"`
	Digest     string    `json:"digest,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	PushedAt   time.Time `json:"pushed_at"`
}

// ArtifactFromDomain конвертирует domain.ImageArtifact в ArtifactResponse.
func ArtifactFromDomain(a domain.ImageArtifact) ArtifactResponse {
	return ArtifactResponse{
		ID:         a.ID,
		BuildID:    a.BuildID,
		Repository: a.Repository,
		Tag:        a.Tag,
		Image:      a.Ref(),
		Digest:     a.Digest,
		SizeBytes:  a.SizeBytes,
		PushedAt:   a.PushedAt,
	}
}

// Webhook DTOs

// PushEvent — push-событие от git-хостинга.
type PushEvent struct {
	// Pipeline — имя pipeline, для которого пришло событие.
	Pipeline string `json:"pipeline"`

	// Ref — git ref ("refs/heads/main").
	Ref string `json:"ref"`

	// Commit — SHA запушенного коммита.
	Commit string `json:"commit"`

	// Pusher — кто запушил (для логов).
	Pusher string `json:"pusher,omitempty"`
}

// PushResult — результат обработки push-события.
type PushResult struct {
	// Triggered — создана ли сборка.
	Triggered bool `json:"triggered"`

	// Reason — причина, если сборка не создана.
	Reason string `json:"reason,omitempty"`

	// Build — созданная (или уже существующая) сборка.
	Build *BuildResponse `json:"build,omitempty"`
}
