package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline — определение CI-процесса для git-репозитория.
//
// Pipeline — это "рецепт" сборки: что проверять, как собирать
// контейнерный образ и куда его публиковать. Один pipeline имеет
// множество версий (PipelineVersion); каждая сборка (Build) выполняет
// конкретную версию.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя pipeline (например, "pybalance").
	// Используется в push-событиях для выбора pipeline.
	Name string `json:"name"`

	// RepoURL — URL git-репозитория, который собирает этот pipeline.
	RepoURL string `json:"repo_url"`

	// IsActive — флаг активности. Неактивные pipelines игнорируют
	// push-события и расписания.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания pipeline.
	CreatedAt time.Time `json:"created_at"`
}

// PipelineVersion — версия pipeline с конкретной спецификацией.
//
// Версионирование позволяет:
// - Отслеживать историю изменений CI-конфигурации
// - Откатываться к предыдущим версиям
// - Видеть, какой конфигурацией собирался старый коммит
type PipelineVersion struct {
	// PipelineID — ссылка на родительский pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Version — номер версии (1, 2, 3, ...).
	// Автоинкремент при создании новой версии.
	Version int `json:"version"`

	// Spec — спецификация pipeline в формате JSON.
	// Содержит триггеры, образ, шаги, зависимости, retry-политики.
	Spec PipelineSpec `json:"spec"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}

// PipelineSpec — спецификация pipeline (содержимое JSONB поля spec).
//
// Это "программа" CI — что выполнить на каждый push.
type PipelineSpec struct {
	// Version — версия формата спецификации (для обратной совместимости).
	Version string `json:"version,omitempty"`

	// Name — имя pipeline (дублирует Pipeline.Name для удобства).
	Name string `json:"name,omitempty"`

	// Description — описание назначения pipeline.
	Description string `json:"description,omitempty"`

	// Trigger — условия автоматического запуска (push-события).
	Trigger *TriggerDef `json:"trigger,omitempty"`

	// Image — публикуемый образ и правила тегирования по веткам.
	Image *ImageDef `json:"image,omitempty"`

	// Inputs — входные параметры pipeline.
	// Ключ — имя параметра, значение — его определение.
	Inputs map[string]InputDef `json:"inputs,omitempty"`

	// Defaults — настройки по умолчанию для всех шагов.
	Defaults *StepDefaults `json:"defaults,omitempty"`

	// Steps — список шагов для выполнения.
	Steps []StepDef `json:"steps"`

	// OnFailure — шаг-обработчик ошибок. Выполняется один раз,
	// когда сборка завершается с FAILED (например, уведомление в чат).
	OnFailure *StepDef `json:"on_failure,omitempty"`
}

// TriggerDef — условия автоматического запуска pipeline.
type TriggerDef struct {
	// Branches — ветки, push в которые запускает сборку.
	// Push в любую другую ветку игнорируется.
	Branches []string `json:"branches,omitempty"`
}

// Triggers возвращает true, если push в ветку должен запустить сборку.
func (t *TriggerDef) Triggers(branch string) bool {
	if t == nil {
		return false
	}
	for _, b := range t.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

// ImageDef — публикуемый контейнерный образ pipeline.
type ImageDef struct {
	// Repository — репозиторий в registry (например, "buntha/pybalance").
	Repository string `json:"repository"`

	// Tags — маппинг ветка → тег образа.
	// Сборка для ветки, отсутствующей в маппинге, не создаётся —
	// это ошибка конфигурации, а не пропуск.
	Tags map[string]string `json:"tags,omitempty"`
}

// InputDef — определение входного параметра.
type InputDef struct {
	// Type — тип параметра: "string", "number", "boolean", "object".
	Type string `json:"type"`

	// Required — обязательный ли параметр.
	Required bool `json:"required,omitempty"`

	// Default — значение по умолчанию.
	Default any `json:"default,omitempty"`

	// Description — описание параметра.
	Description string `json:"description,omitempty"`
}

// StepDefaults — настройки по умолчанию для шагов.
type StepDefaults struct {
	// Retry — политика повторных попыток.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// TimeoutSec — таймаут выполнения в секундах.
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// StepDef — определение шага в pipeline.
type StepDef struct {
	// ID — уникальный идентификатор шага в рамках pipeline.
	// Используется в depends_on и для ссылок на результаты.
	ID string `json:"id"`

	// Name — человекочитаемое имя шага.
	Name string `json:"name,omitempty"`

	// Type — тип шага: "checkout", "command", "registry-login",
	// "docker-build", "cleanup", "http", "delay", "parallel".
	Type string `json:"type"`

	// DependsOn — список ID шагов, от которых зависит этот шаг.
	// Шаг начнёт выполнение только после успешного завершения всех зависимостей.
	DependsOn []string `json:"depends_on,omitempty"`

	// Condition — условие выполнения (Go template, результат "true"/"false").
	// Например: "{{ eq .Inputs.branch \"main\" }}"
	Condition string `json:"condition,omitempty"`

	// Config — конфигурация шага (зависит от типа).
	// Для command: cmd, args, workdir, env
	// Для docker-build: dockerfile, context, repository, tag, push
	Config map[string]any `json:"config,omitempty"`

	// Outputs — маппинг результатов шага для следующих шагов.
	// Ключ — имя output, значение — Go template для извлечения.
	Outputs map[string]string `json:"outputs,omitempty"`

	// Retry — политика повторных попыток для этого шага.
	// Переопределяет defaults.retry.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// TimeoutSec — таймаут для этого шага.
	// Переопределяет defaults.timeout_sec.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Branches — ветки параллельного выполнения (только для type="parallel").
	Branches []ParallelBranch `json:"branches,omitempty"`
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty"`

	// OnStatus — HTTP статусы, при которых делать retry (для http шагов).
	OnStatus []int `json:"on_status,omitempty"`
}

// ParallelBranch — ветка параллельного выполнения.
type ParallelBranch struct {
	// ID — идентификатор ветки.
	ID string `json:"id"`

	// Steps — шаги внутри ветки.
	Steps []StepDef `json:"steps"`
}
