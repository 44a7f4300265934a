package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
	mux.Handle("GET /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("PUT /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.UpdatePipeline)))
	mux.Handle("DELETE /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.DeletePipeline)))

	// Pipeline Versions
	mux.Handle("GET /api/v1/pipelines/{id}/versions", chain(http.HandlerFunc(h.ListPipelineVersions)))
	mux.Handle("POST /api/v1/pipelines/{id}/versions", chain(http.HandlerFunc(h.CreatePipelineVersion)))
	mux.Handle("GET /api/v1/pipelines/{id}/versions/{version}", chain(http.HandlerFunc(h.GetPipelineVersion)))

	// Builds
	mux.Handle("GET /api/v1/builds", chain(http.HandlerFunc(h.ListBuilds)))
	mux.Handle("POST /api/v1/pipelines/{id}/builds", chain(http.HandlerFunc(h.CreateBuild)))
	mux.Handle("GET /api/v1/builds/{id}", chain(http.HandlerFunc(h.GetBuild)))
	mux.Handle("POST /api/v1/builds/{id}/cancel", chain(http.HandlerFunc(h.CancelBuild)))
	mux.Handle("GET /api/v1/builds/{id}/tasks", chain(http.HandlerFunc(h.ListBuildTasks)))
	mux.Handle("GET /api/v1/builds/{id}/artifacts", chain(http.HandlerFunc(h.ListBuildArtifacts)))

	// Artifacts
	mux.Handle("GET /api/v1/artifacts", chain(http.HandlerFunc(h.ListArtifacts)))
	mux.Handle("GET /api/v1/artifacts/{id}", chain(http.HandlerFunc(h.GetArtifact)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/pipelines/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))

	// Webhooks
	mux.Handle("POST /api/v1/hooks/push", chain(http.HandlerFunc(h.HandlePush)))
}
