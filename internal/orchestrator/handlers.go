package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/engine"
	"github.com/Bayer-Group/pybalance-ci/internal/mq"
	"github.com/Bayer-Group/pybalance-ci/internal/repo"
	"github.com/Bayer-Group/pybalance-ci/internal/telemetry"
	"github.com/google/uuid"
)

// handleBuildPending обрабатывает событие о новом pending build.
func (o *Orchestrator) handleBuildPending(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.BuildPendingPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse build.pending payload", "error", err)
		return err
	}

	o.logger.Debug("received build.pending event", "build_id", payload.BuildID)

	// Проверяем, не обрабатывается ли уже
	if o.isBuildActive(payload.BuildID) {
		o.logger.Debug("build already active, skipping", "build_id", payload.BuildID)
		return nil
	}

	// Обрабатываем build
	if err := o.processBuild(ctx, payload.BuildID); err != nil {
		// Логируем, но не возвращаем ошибку для некоторых случаев
		if errors.Is(err, ErrBuildNotPending) || errors.Is(err, ErrBuildAlreadyActive) {
			o.logger.Debug("build not processed", "build_id", payload.BuildID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process build", "build_id", payload.BuildID, "error", err)
		return err
	}

	return nil
}

// handleTaskCompleted обрабатывает событие о завершённом task.
func (o *Orchestrator) handleTaskCompleted(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.TaskCompletedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse task.completed payload", "error", err)
		return err
	}

	o.logger.Debug("received task.completed event",
		"task_id", payload.TaskID,
		"build_id", payload.BuildID,
		"step_id", payload.StepID,
		"status", payload.Status,
	)

	// Обрабатываем завершение task
	if err := o.processTaskCompleted(ctx, payload); err != nil {
		o.logger.Error("failed to process task completion",
			"task_id", payload.TaskID,
			"build_id", payload.BuildID,
			"error", err,
		)
		return err
	}

	return nil
}

// processBuild обрабатывает новый build.
func (o *Orchestrator) processBuild(ctx context.Context, buildID uuid.UUID) error {
	// 1. Загружаем build из БД
	build, err := o.buildRepo.GetByID(ctx, buildID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrBuildNotFound, buildID)
		}
		return fmt.Errorf("get build: %w", err)
	}

	// 2. Проверяем статус
	if build.Status != domain.BuildStatusPending {
		return ErrBuildNotPending
	}

	// 3. Загружаем PipelineVersion
	version, err := o.pipelineRepo.GetVersion(ctx, build.PipelineID, build.Version)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return o.failBuild(ctx, build, fmt.Sprintf("pipeline version not found: %s v%d", build.PipelineID, build.Version))
		}
		return fmt.Errorf("get pipeline version: %w", err)
	}

	// 4. Создаём BuildState
	state := NewBuildState(build, version)

	// 5. Инициализируем (валидация, DAG, контекст)
	if err := state.Initialize(); err != nil {
		return o.failBuild(ctx, build, fmt.Sprintf("initialization failed: %v", err))
	}

	// 6. Добавляем в активные builds
	if err := o.addActiveBuild(state); err != nil {
		return err
	}

	// 7. Переводим build в RUNNING
	build.MarkRunning()
	if err := o.buildRepo.Update(ctx, build); err != nil {
		o.removeActiveBuild(buildID)
		return fmt.Errorf("update build to running: %w", err)
	}

	o.logger.Info("build started",
		"build_id", buildID,
		"pipeline_id", build.PipelineID,
		"version", build.Version,
		"branch", build.Branch,
		"image_tag", build.ImageTag,
		"steps", state.DAG.Size(),
	)

	// 8. Запускаем готовые шаги
	if err := o.dispatchReadySteps(ctx, state); err != nil {
		o.logger.Error("failed to dispatch initial steps", "build_id", buildID, "error", err)
		// Не удаляем из активных — попробуем при следующем событии
	}

	return nil
}

// processTaskCompleted обрабатывает завершение task.
func (o *Orchestrator) processTaskCompleted(ctx context.Context, payload mq.TaskCompletedPayload) error {
	// 1. Получаем активный BuildState
	state := o.getActiveBuild(payload.BuildID)

	// Если build не в памяти, пытаемся восстановить
	if state == nil {
		var err error
		state, err = o.restoreBuildState(ctx, payload.BuildID)
		if err != nil {
			return fmt.Errorf("restore build state: %w", err)
		}
		if state == nil {
			// Build уже завершён или не существует
			o.logger.Debug("build not active and cannot restore", "build_id", payload.BuildID)
			return nil
		}
	}

	// 2. Загружаем task из БД (для получения актуальных outputs)
	task, err := o.taskRepo.GetByID(ctx, payload.TaskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, payload.TaskID)
		}
		return fmt.Errorf("get task: %w", err)
	}

	// 3. Обновляем состояние шага
	stepID := payload.StepID

	if payload.Status == string(domain.TaskStatusSucceeded) {
		state.MarkStepCompleted(stepID, task.Outputs)
		o.logger.Debug("step completed",
			"build_id", payload.BuildID,
			"step_id", stepID,
		)
	} else {
		state.MarkStepFailed(stepID, payload.Error)
		o.logger.Warn("step failed",
			"build_id", payload.BuildID,
			"step_id", stepID,
			"error", payload.Error,
		)
	}

	// 4. Проверяем завершение build
	if state.HasFailed() {
		// Перед финализацией запускаем on_failure шаг (если задан и ещё не запущен)
		onFailure := state.OnFailureStep()
		if onFailure != nil && stepID != onFailure.ID && state.MarkOnFailureDispatched() {
			if err := o.dispatchOnFailure(ctx, state, onFailure); err != nil {
				o.logger.Error("failed to dispatch on_failure step",
					"build_id", payload.BuildID,
					"error", err,
				)
				// on_failure не удалось запустить — завершаем build сразу
				return o.completeBuild(ctx, state, false)
			}
			// Ждём завершения on_failure шага
			return nil
		}

		// on_failure отработал (или не задан) — завершаем build с ошибкой
		return o.completeBuild(ctx, state, false)
	}

	if state.IsComplete() {
		// Все шаги завершены успешно
		return o.completeBuild(ctx, state, true)
	}

	// 5. Запускаем следующие готовые шаги
	return o.dispatchReadySteps(ctx, state)
}

// dispatchReadySteps создаёт tasks для готовых шагов и публикует их.
func (o *Orchestrator) dispatchReadySteps(ctx context.Context, state *BuildState) error {
	readySteps := state.GetReadySteps()

	if len(readySteps) == 0 {
		return nil
	}

	o.logger.Debug("dispatching ready steps",
		"build_id", state.BuildID(),
		"count", len(readySteps),
	)

	for _, node := range readySteps {
		if err := o.dispatchStep(ctx, state, node); err != nil {
			o.logger.Error("failed to dispatch step",
				"build_id", state.BuildID(),
				"step_id", node.ID,
				"error", err,
			)
			// Продолжаем с другими шагами
		}
	}

	return nil
}

// dispatchStep создаёт task для шага и публикует его.
func (o *Orchestrator) dispatchStep(ctx context.Context, state *BuildState, node *engine.Node) error {
	// Пропускаем join-узлы (виртуальные)
	if node.IsJoin {
		state.MarkStepCompleted(node.ID, nil)
		return nil
	}

	step := node.Step
	if step == nil {
		return fmt.Errorf("%w: node has no step definition", ErrStepNotFound)
	}

	// Рендерим конфигурацию шага
	config, err := engine.RenderConfig(step.Config, state.Context)
	if err != nil {
		return fmt.Errorf("render config for %s: %w", node.ID, err)
	}

	// Проверяем condition (если есть)
	if step.Condition != "" {
		shouldRun, err := engine.RenderCondition(step.Condition, state.Context)
		if err != nil {
			return fmt.Errorf("render condition for %s: %w", node.ID, err)
		}
		if !shouldRun {
			// Условие не выполнено — пропускаем шаг
			o.logger.Debug("step skipped due to condition",
				"build_id", state.BuildID(),
				"step_id", node.ID,
			)
			state.MarkStepCompleted(node.ID, map[string]any{"skipped": true})
			return nil
		}
	}

	return o.createAndPublishTask(ctx, state, node.ID, step, config)
}

// dispatchOnFailure создаёт task для on_failure шага.
// on_failure не входит в DAG и запускается только при падении build.
func (o *Orchestrator) dispatchOnFailure(ctx context.Context, state *BuildState, step *domain.StepDef) error {
	config, err := engine.RenderConfig(step.Config, state.Context)
	if err != nil {
		return fmt.Errorf("render on_failure config: %w", err)
	}

	o.logger.Info("dispatching on_failure step",
		"build_id", state.BuildID(),
		"step_id", step.ID,
	)

	return o.createAndPublishTask(ctx, state, step.ID, step, config)
}

// createAndPublishTask сохраняет task в БД и публикует task.ready.
func (o *Orchestrator) createAndPublishTask(ctx context.Context, state *BuildState, stepID string, step *domain.StepDef, config map[string]any) error {
	task := &domain.Task{
		ID:        uuid.New(),
		BuildID:   state.BuildID(),
		StepID:    stepID,
		Name:      step.Name,
		Type:      step.Type,
		Attempt:   0,
		Status:    domain.TaskStatusQueued,
		Payload:   config,
		CreatedAt: time.Now(),
	}

	// Сохраняем в БД
	if err := o.taskRepo.Create(ctx, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	// Помечаем шаг как running
	state.MarkStepRunning(stepID, task)

	// Публикуем событие для Worker
	if o.publisher != nil {
		if err := o.publisher.PublishTaskReady(ctx, task.ID, task.BuildID); err != nil {
			o.logger.Warn("failed to publish task.ready",
				"task_id", task.ID,
				"build_id", state.BuildID(),
				"error", err,
			)
			// Task создан в БД — Worker может забрать через polling
		}
	}

	o.logger.Debug("task dispatched",
		"task_id", task.ID,
		"build_id", state.BuildID(),
		"step_id", stepID,
		"type", step.Type,
	)

	return nil
}

// completeBuild завершает build (успешно или с ошибкой).
func (o *Orchestrator) completeBuild(ctx context.Context, state *BuildState, success bool) error {
	build := state.Build

	if success {
		build.MarkSucceeded()
		o.logger.Info("build succeeded",
			"build_id", build.ID,
			"branch", build.Branch,
			"image_tag", build.ImageTag,
			"duration", build.Duration(),
		)
	} else {
		failedSteps := state.GetFailedSteps()
		errMsg := fmt.Sprintf("steps failed: %v", failedSteps)
		build.MarkFailed(errMsg)
		o.logger.Warn("build failed",
			"build_id", build.ID,
			"branch", build.Branch,
			"failed_steps", failedSteps,
			"duration", build.Duration(),
		)
	}

	// Обновляем в БД
	if err := o.buildRepo.Update(ctx, build); err != nil {
		return fmt.Errorf("update build status: %w", err)
	}

	telemetry.BuildsCompleted.WithLabelValues(string(build.Status)).Inc()
	telemetry.BuildDuration.Observe(build.Duration().Seconds())

	// Удаляем из активных
	o.removeActiveBuild(build.ID)

	return nil
}

// failBuild переводит build в статус FAILED.
func (o *Orchestrator) failBuild(ctx context.Context, build *domain.Build, errMsg string) error {
	build.MarkFailed(errMsg)

	if err := o.buildRepo.Update(ctx, build); err != nil {
		return fmt.Errorf("update build to failed: %w", err)
	}

	telemetry.BuildsCompleted.WithLabelValues(string(build.Status)).Inc()

	o.logger.Warn("build failed early",
		"build_id", build.ID,
		"error", errMsg,
	)

	return fmt.Errorf("build failed: %s", errMsg)
}

// restoreBuildState восстанавливает BuildState из БД.
// Используется когда task.completed приходит для build, которого нет в памяти
// (после рестарта Orchestrator).
func (o *Orchestrator) restoreBuildState(ctx context.Context, buildID uuid.UUID) (*BuildState, error) {
	// Загружаем build
	build, err := o.buildRepo.GetByID(ctx, buildID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil // Build не существует
		}
		return nil, fmt.Errorf("get build: %w", err)
	}

	// Если build уже завершён — ничего не делаем
	if build.IsFinished() {
		return nil, nil
	}

	// Загружаем PipelineVersion
	version, err := o.pipelineRepo.GetVersion(ctx, build.PipelineID, build.Version)
	if err != nil {
		return nil, fmt.Errorf("get pipeline version: %w", err)
	}

	// Создаём и инициализируем state
	state := NewBuildState(build, version)
	if err := state.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize state: %w", err)
	}

	// Загружаем tasks и восстанавливаем состояние
	tasks, err := o.taskRepo.ListByBuildID(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	state.RestoreFromTasks(tasks)

	// Добавляем в активные
	if err := o.addActiveBuild(state); err != nil {
		if errors.Is(err, ErrBuildAlreadyActive) {
			// Кто-то уже восстановил — возвращаем его
			return o.getActiveBuild(buildID), nil
		}
		return nil, err
	}

	o.logger.Info("build state restored",
		"build_id", buildID,
		"stats", state.Stats(),
	)

	return state, nil
}
