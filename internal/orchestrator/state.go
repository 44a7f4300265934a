package orchestrator

import (
	"fmt"
	"sync"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/engine"
	"github.com/google/uuid"
)

// BuildState — состояние выполнения одного build в памяти.
//
// BuildState создаётся когда Orchestrator начинает обработку build
// и удаляется когда build завершается (SUCCEEDED/FAILED/CANCELLED).
//
// Содержит:
//   - Кэш данных из БД (Build, PipelineVersion)
//   - Построенный DAG
//   - Контекст для шаблонов (с outputs завершённых шагов)
//   - Отслеживание статуса каждого шага
type BuildState struct {
	// Build — данные build из БД.
	Build *domain.Build

	// PipelineVersion — версия pipeline с PipelineSpec.
	PipelineVersion *domain.PipelineVersion

	// DAG — граф зависимостей шагов.
	DAG *engine.DAG

	// Context — контекст для рендеринга шаблонов.
	// Содержит Inputs и Outputs завершённых шагов.
	Context *engine.Context

	// completed — завершённые шаги (stepID → true).
	completed map[string]bool

	// running — шаги в процессе выполнения (stepID → true).
	running map[string]bool

	// failed — упавшие шаги (stepID → true).
	failed map[string]bool

	// tasks — созданные tasks (stepID → Task).
	tasks map[string]*domain.Task

	// onFailureDispatched — on_failure шаг уже отправлен worker'у.
	onFailureDispatched bool

	// mu — мьютекс для потокобезопасного доступа.
	mu sync.RWMutex
}

// NewBuildState создаёт новый BuildState.
func NewBuildState(build *domain.Build, version *domain.PipelineVersion) *BuildState {
	return &BuildState{
		Build:           build,
		PipelineVersion: version,
		completed:       make(map[string]bool),
		running:         make(map[string]bool),
		failed:          make(map[string]bool),
		tasks:           make(map[string]*domain.Task),
	}
}

// Initialize инициализирует BuildState: валидирует PipelineSpec, строит DAG, создаёт Context.
func (s *BuildState) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := &s.PipelineVersion.Spec

	// 1. Валидация PipelineSpec
	if err := engine.Validate(spec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPipelineSpec, err)
	}

	// 2. Построение DAG
	dag, err := engine.BuildDAG(spec)
	if err != nil {
		return fmt.Errorf("build DAG: %w", err)
	}
	s.DAG = dag

	// 3. Создание контекста с inputs и окружением build
	s.Context = engine.NewContext(s.Build.Inputs)
	s.Context.SetEnv("BRANCH", s.Build.Branch)
	s.Context.SetEnv("COMMIT", s.Build.Commit)
	s.Context.SetEnv("IMAGE_TAG", s.Build.ImageTag)

	return nil
}

// GetReadySteps возвращает шаги, готовые к выполнению.
// Шаг готов, если все его зависимости завершены и он ещё не запущен.
func (s *BuildState) GetReadySteps() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DAG.GetReadyNodes(s.completed, s.running)
}

// MarkStepRunning помечает шаг как выполняющийся.
func (s *BuildState) MarkStepRunning(stepID string, task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running[stepID] = true
	s.tasks[stepID] = task
}

// MarkStepCompleted помечает шаг как успешно завершённый.
// Добавляет outputs в Context для использования в следующих шагах.
func (s *BuildState) MarkStepCompleted(stepID string, outputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, stepID)
	s.completed[stepID] = true

	// Добавляем результат в контекст
	s.Context.AddStepResult(stepID, outputs, string(domain.TaskStatusSucceeded))
}

// MarkStepFailed помечает шаг как упавший.
func (s *BuildState) MarkStepFailed(stepID string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, stepID)
	s.failed[stepID] = true

	// Добавляем результат в контекст (со статусом FAILED)
	s.Context.AddStepResult(stepID, nil, string(domain.TaskStatusFailed))
}

// IsStepRunning проверяет, выполняется ли шаг.
func (s *BuildState) IsStepRunning(stepID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.running[stepID]
}

// IsStepCompleted проверяет, завершён ли шаг.
func (s *BuildState) IsStepCompleted(stepID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.completed[stepID]
}

// GetTask возвращает task для шага.
func (s *BuildState) GetTask(stepID string) *domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tasks[stepID]
}

// SetTask устанавливает task для шага.
func (s *BuildState) SetTask(stepID string, task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[stepID] = task
}

// IsComplete проверяет, все ли шаги завершены (успешно или с ошибкой).
func (s *BuildState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Проверяем, что все исполняемые узлы завершены
	for _, node := range s.DAG.GetExecutableNodes() {
		if !s.completed[node.ID] && !s.failed[node.ID] {
			return false
		}
	}
	return true
}

// HasFailed проверяет, есть ли упавшие шаги.
func (s *BuildState) HasFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.failed) > 0
}

// GetFailedSteps возвращает список упавших шагов.
func (s *BuildState) GetFailedSteps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]string, 0, len(s.failed))
	for stepID := range s.failed {
		steps = append(steps, stepID)
	}
	return steps
}

// OnFailureStep возвращает on_failure шаг из spec (nil, если не задан).
func (s *BuildState) OnFailureStep() *domain.StepDef {
	return s.PipelineVersion.Spec.OnFailure
}

// MarkOnFailureDispatched помечает, что on_failure шаг отправлен.
// Возвращает false, если он уже был отправлен ранее.
func (s *BuildState) MarkOnFailureDispatched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.onFailureDispatched {
		return false
	}
	s.onFailureDispatched = true
	return true
}

// OnFailureDispatched проверяет, был ли отправлен on_failure шаг.
func (s *BuildState) OnFailureDispatched() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.onFailureDispatched
}

// BuildID возвращает ID build.
func (s *BuildState) BuildID() uuid.UUID {
	return s.Build.ID
}

// PipelineID возвращает ID pipeline.
func (s *BuildState) PipelineID() uuid.UUID {
	return s.Build.PipelineID
}

// Stats возвращает статистику выполнения.
func (s *BuildState) Stats() BuildStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.DAG.GetExecutableNodes())
	return BuildStats{
		TotalSteps:     total,
		CompletedSteps: len(s.completed),
		RunningSteps:   len(s.running),
		FailedSteps:    len(s.failed),
		PendingSteps:   total - len(s.completed) - len(s.running) - len(s.failed),
	}
}

// BuildStats — статистика выполнения build.
type BuildStats struct {
	TotalSteps     int
	CompletedSteps int
	RunningSteps   int
	FailedSteps    int
	PendingSteps   int
}

// RestoreFromTasks восстанавливает состояние из списка tasks (после рестарта).
func (s *BuildState) RestoreFromTasks(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	onFailure := s.PipelineVersion.Spec.OnFailure

	for i := range tasks {
		task := &tasks[i]
		s.tasks[task.StepID] = task

		if onFailure != nil && task.StepID == onFailure.ID {
			s.onFailureDispatched = true
		}

		switch task.Status {
		case domain.TaskStatusSucceeded:
			s.completed[task.StepID] = true
			s.Context.AddStepResult(task.StepID, task.Outputs, string(domain.TaskStatusSucceeded))

		case domain.TaskStatusFailed:
			s.failed[task.StepID] = true
			s.Context.AddStepResult(task.StepID, nil, string(domain.TaskStatusFailed))

		case domain.TaskStatusRunning:
			s.running[task.StepID] = true

		case domain.TaskStatusQueued:
			// Task в очереди — ничего не делаем, будет обработан worker'ом
		}
	}
}
