// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, publisher, tag policy, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - pipeline_handler.go — обработчики для /pipelines
//   - build_handler.go    — обработчики для /builds
//   - schedule_handler.go — обработчики для /schedules
//   - artifact_handler.go — обработчики для /artifacts
//   - hook_handler.go     — приём push-событий (/hooks/push)
//
// API предоставляет REST endpoints для управления pipelines, builds,
// schedules и artifacts, а также webhook для push-событий git-хостинга.
package api
