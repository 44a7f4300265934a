package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/registry"
	"github.com/Bayer-Group/pybalance-ci/internal/repo"
	"github.com/Bayer-Group/pybalance-ci/internal/telemetry"
)

// ListBuilds возвращает список builds с фильтрацией.
// GET /api/v1/builds?pipeline_id=...&status=...&branch=...&limit=...&offset=...
func (h *Handler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	filter := repo.BuildFilter{}

	// Парсим query параметры
	if pipelineIDStr := r.URL.Query().Get("pipeline_id"); pipelineIDStr != "" {
		pipelineID, err := uuid.Parse(pipelineIDStr)
		if err != nil {
			BadRequest(w, "invalid pipeline_id")
			return
		}
		filter.PipelineID = &pipelineID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.BuildStatus(status)
	}

	filter.Branch = r.URL.Query().Get("branch")
	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	builds, err := h.buildRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]BuildResponse, len(builds))
	for i, b := range builds {
		result[i] = BuildFromDomain(b)
	}

	List(w, result, len(result))
}

// CreateBuild запускает сборку вручную.
// POST /api/v1/pipelines/{id}/builds
func (h *Handler) CreateBuild(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req CreateBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Branch == "" {
		BadRequest(w, "branch is required")
		return
	}

	// Проверяем, что pipeline существует
	pipeline, err := h.pipelineRepo.GetByID(r.Context(), pipelineID)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	// Определяем версию
	var version *domain.PipelineVersion
	if req.Version != nil {
		version, err = h.pipelineRepo.GetVersion(r.Context(), pipelineID, *req.Version)
		if HandleRepoError(w, h.logger, err, "pipeline version not found") {
			return
		}
	} else {
		version, err = h.pipelineRepo.GetLatestVersion(r.Context(), pipelineID)
		if HandleRepoError(w, h.logger, err, "pipeline has no versions") {
			return
		}
	}

	// Вычисляем тег образа из ветки. Ветка вне маппинга — ошибка
	// конфигурации, сборка не создаётся.
	var imageTag string
	if version.Spec.Image != nil {
		imageTag, err = h.tagPolicyFor(version.Spec.Image).Resolve(req.Branch)
		if err != nil {
			if errors.Is(err, registry.ErrUnmappedBranch) {
				InvalidState(w, err.Error())
				return
			}
			InternalError(w, h.logger, err)
			return
		}
	}

	// Проверяем idempotency key
	if req.IdempotencyKey != "" {
		existing, err := h.buildRepo.GetByIdempotencyKey(r.Context(), pipeline.ID, req.IdempotencyKey)
		if err == nil && existing != nil {
			// Возвращаем существующий build
			Success(w, BuildFromDomain(*existing))
			return
		}
	}

	build := &domain.Build{
		ID:             uuid.New(),
		PipelineID:     pipeline.ID,
		Version:        version.Version,
		Status:         domain.BuildStatusPending,
		Trigger:        domain.TriggerManual,
		Branch:         req.Branch,
		Commit:         req.Commit,
		ImageTag:       imageTag,
		Inputs:         req.Inputs,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	if err := h.buildRepo.Create(r.Context(), build); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	telemetry.BuildsStarted.WithLabelValues(string(domain.TriggerManual)).Inc()

	// Публикуем событие в очередь
	if h.publisher != nil {
		if err := h.publisher.PublishBuildPending(r.Context(), build.ID); err != nil {
			h.logger.Warn("failed to publish build.pending", "build_id", build.ID, "error", err)
		}
	}

	Created(w, BuildFromDomain(*build))
}

// GetBuild возвращает build по ID.
// GET /api/v1/builds/{id}
func (h *Handler) GetBuild(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid build id")
		return
	}

	build, err := h.buildRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "build not found") {
		return
	}

	Success(w, BuildFromDomain(*build))
}

// CancelBuild отменяет build.
// POST /api/v1/builds/{id}/cancel
func (h *Handler) CancelBuild(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid build id")
		return
	}

	build, err := h.buildRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "build not found") {
		return
	}

	if build.IsFinished() {
		InvalidState(w, "build is already finished")
		return
	}

	build.MarkCancelled()

	if err := h.buildRepo.Update(r.Context(), build); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, BuildFromDomain(*build))
}

// ListBuildTasks возвращает задачи build.
// GET /api/v1/builds/{id}/tasks
func (h *Handler) ListBuildTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid build id")
		return
	}

	// Проверяем, что build существует
	_, err = h.buildRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "build not found") {
		return
	}

	tasks, err := h.taskRepo.ListByBuildID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// queryInt парсит целочисленный query-параметр с дефолтным значением.
func queryInt(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
