package api

import (
	"net/http"

	"github.com/google/uuid"
)

// ListBuildArtifacts возвращает образы, опубликованные сборкой.
// GET /api/v1/builds/{id}/artifacts
func (h *Handler) ListBuildArtifacts(w http.ResponseWriter, r *http.Request) {
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

	artifacts, err := h.artifactRepo.ListByBuildID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ArtifactResponse, len(artifacts))
	for i, a := range artifacts {
		result[i] = ArtifactFromDomain(a)
	}

	List(w, result, len(result))
}

// ListArtifacts возвращает историю публикаций в репозиторий.
// С параметром tag возвращает последний образ под этим тегом —
// ответ на вопрос "какой коммит сейчас за latest".
// GET /api/v1/artifacts?repository=...&tag=...&limit=...
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	repository := r.URL.Query().Get("repository")
	if repository == "" {
		BadRequest(w, "repository is required")
		return
	}

	if tag := r.URL.Query().Get("tag"); tag != "" {
		artifact, err := h.artifactRepo.LatestByTag(r.Context(), repository, tag)
		if HandleRepoError(w, h.logger, err, "no artifact for tag") {
			return
		}
		Success(w, ArtifactFromDomain(*artifact))
		return
	}

	limit := queryInt(r, "limit", 50)

	artifacts, err := h.artifactRepo.ListByRepository(r.Context(), repository, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ArtifactResponse, len(artifacts))
	for i, a := range artifacts {
		result[i] = ArtifactFromDomain(a)
	}

	List(w, result, len(result))
}

// GetArtifact возвращает артефакт по ID.
// GET /api/v1/artifacts/{id}
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	artifact, err := h.artifactRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "artifact not found") {
		return
	}

	Success(w, ArtifactFromDomain(*artifact))
}
