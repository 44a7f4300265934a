package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrBuildNotFound — build не найден в БД.
	ErrBuildNotFound = errors.New("build not found")

	// ErrPipelineNotFound — pipeline или pipeline_version не найден.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrVersionNotFound — версия pipeline не найдена.
	ErrVersionNotFound = errors.New("pipeline version not found")

	// ErrInvalidPipelineSpec — PipelineSpec не прошёл валидацию.
	ErrInvalidPipelineSpec = errors.New("invalid pipeline spec")

	// ErrCyclicDependency — обнаружена циклическая зависимость в DAG.
	ErrCyclicDependency = errors.New("cyclic dependency in pipeline")

	// ErrBuildAlreadyActive — build уже обрабатывается.
	ErrBuildAlreadyActive = errors.New("build already being processed")

	// ErrBuildNotActive — build не найден в активных (для обработки task.completed).
	ErrBuildNotActive = errors.New("build not in active builds")

	// ErrBuildNotPending — build не в статусе PENDING.
	ErrBuildNotPending = errors.New("build is not in PENDING status")

	// ErrTaskNotFound — task не найден.
	ErrTaskNotFound = errors.New("task not found")

	// ErrStepNotFound — шаг не найден в DAG.
	ErrStepNotFound = errors.New("step not found in DAG")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
