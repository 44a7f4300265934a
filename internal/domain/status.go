package domain

// BuildStatus — статус выполнения build.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type BuildStatus string

const (
	// BuildStatusPending — build создан, но ещё не начал выполняться.
	BuildStatusPending BuildStatus = "PENDING"

	// BuildStatusRunning — build в процессе выполнения.
	BuildStatusRunning BuildStatus = "RUNNING"

	// BuildStatusSucceeded — build успешно завершён.
	BuildStatusSucceeded BuildStatus = "SUCCEEDED"

	// BuildStatusFailed — build завершился с ошибкой.
	BuildStatusFailed BuildStatus = "FAILED"

	// BuildStatusCancelled — build отменён пользователем.
	BuildStatusCancelled BuildStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (build завершён).
func (s BuildStatus) IsTerminal() bool {
	switch s {
	case BuildStatusSucceeded, BuildStatusFailed, BuildStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskStatus — статус выполнения task.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ FAILED (может быть retry → обратно в QUEUED)
type TaskStatus string

const (
	// TaskStatusQueued — task в очереди, ожидает выполнения.
	TaskStatusQueued TaskStatus = "QUEUED"

	// TaskStatusRunning — task выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusSucceeded — task успешно завершён.
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"

	// TaskStatusFailed — task завершился с ошибкой (после всех retry).
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// TriggerKind — источник запуска build.
type TriggerKind string

const (
	// TriggerPush — build создан push-событием (webhook).
	TriggerPush TriggerKind = "push"

	// TriggerManual — build запущен вручную через API/CLI.
	TriggerManual TriggerKind = "manual"

	// TriggerSchedule — build создан scheduler'ом по расписанию.
	TriggerSchedule TriggerKind = "schedule"
)
