package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/mq"
	"github.com/Bayer-Group/pybalance-ci/internal/registry"
	"github.com/Bayer-Group/pybalance-ci/internal/repo"
	"github.com/Bayer-Group/pybalance-ci/internal/telemetry"
	"github.com/google/uuid"
)

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	scheduleRepo *repo.ScheduleRepo
	buildRepo    *repo.BuildRepo
	pipelineRepo *repo.PipelineRepo
	publisher    *mq.Publisher
	tags         *registry.TagPolicy
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo *repo.ScheduleRepo
	BuildRepo    *repo.BuildRepo
	PipelineRepo *repo.PipelineRepo
	Publisher    *mq.Publisher

	// Tags — политика branch → tag. Если nil, используется политика
	// по умолчанию (main → latest, dev → dev, test → testing).
	Tags *registry.TagPolicy

	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	tags := cfg.Tags
	if tags == nil {
		tags = registry.NewTagPolicy(nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		buildRepo:    cfg.BuildRepo,
		pipelineRepo: cfg.PipelineRepo,
		publisher:    cfg.Publisher,
		tags:         tags,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт build
// 3. Обновляет next_due_at
// 4. Публикует build.pending в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	// 1. Находим due schedules
	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	// 2. Обрабатываем каждый schedule
	var processed, created int
	for i := range schedules {
		sched := &schedules[i]

		buildCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		processed++
		if buildCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"builds_created", created,
	)

	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если build был создан (не был дубликатом).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	// 1. Проверяем, что pipeline существует и активен.
	// Неактивные pipelines игнорируют расписания так же, как push-события.
	pipeline, err := s.pipelineRepo.GetByID(ctx, sched.PipelineID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("pipeline not found for schedule, skipping",
				"schedule_id", sched.ID,
				"pipeline_id", sched.PipelineID,
			)
			// Не возвращаем ошибку — просто пропускаем
			return false, nil
		}
		return false, fmt.Errorf("get pipeline: %w", err)
	}
	if !pipeline.IsActive {
		s.logger.Warn("pipeline is inactive, skipping schedule",
			"schedule_id", sched.ID,
			"pipeline_id", sched.PipelineID,
		)
		return false, nil
	}

	// 2. Берём последнюю версию spec
	version, err := s.pipelineRepo.GetLatestVersion(ctx, sched.PipelineID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("pipeline has no versions, skipping schedule",
				"schedule_id", sched.ID,
				"pipeline_id", sched.PipelineID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get latest pipeline version: %w", err)
	}

	// 3. Вычисляем тег образа из ветки schedule
	imageTag, err := s.resolveScheduleTag(&version.Spec, sched.Branch)
	if err != nil {
		if errors.Is(err, registry.ErrUnmappedBranch) {
			s.logger.Warn("schedule branch has no tag mapping, skipping",
				"schedule_id", sched.ID,
				"branch", sched.Branch,
			)
			// Расписание настроено на ветку без тега — сборка не имеет смысла
			return false, nil
		}
		return false, fmt.Errorf("resolve image tag: %w", err)
	}

	// 4. Формируем idempotency key: "{schedule_id}_{next_due_at_unix}"
	// Это гарантирует, что для одного schedule и конкретного времени
	// будет создан только один build
	idempKey := fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())

	// 5. Проверяем, не создан ли уже build (idempotency)
	existingBuild, err := s.buildRepo.GetByIdempotencyKey(ctx, sched.PipelineID, idempKey)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	var buildCreated bool
	var buildID uuid.UUID

	if existingBuild != nil {
		// Build уже существует — просто обновляем next_due_at
		s.logger.Debug("build already exists (idempotency)",
			"schedule_id", sched.ID,
			"build_id", existingBuild.ID,
			"idempotency_key", idempKey,
		)
		buildID = existingBuild.ID
		buildCreated = false
	} else {
		// 6. Создаём новый build
		build := &domain.Build{
			ID:             uuid.New(),
			PipelineID:     sched.PipelineID,
			Version:        version.Version,
			Status:         domain.BuildStatusPending,
			Trigger:        domain.TriggerSchedule,
			Branch:         sched.Branch,
			ImageTag:       imageTag,
			Inputs:         sched.Inputs,
			IdempotencyKey: idempKey,
			CreatedAt:      now,
		}

		if err := s.buildRepo.Create(ctx, build); err != nil {
			return false, fmt.Errorf("create build: %w", err)
		}

		telemetry.BuildsStarted.WithLabelValues(string(domain.TriggerSchedule)).Inc()

		s.logger.Info("created build from schedule",
			"build_id", build.ID,
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
			"pipeline_id", sched.PipelineID,
			"version", version.Version,
			"branch", sched.Branch,
			"image_tag", imageTag,
		)

		buildID = build.ID
		buildCreated = true
	}

	// 7. Вычисляем следующее время выполнения
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due, leaving schedule as is",
			"schedule_id", sched.ID,
			"error", err,
		)
		// Schedule некорректный — лучше не трогать next_due_at
		return buildCreated, nil
	}

	// 8. Обновляем schedule
	sched.RecordBuild(buildID, nextDue)
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return buildCreated, fmt.Errorf("update schedule: %w", err)
	}

	// 9. Публикуем событие в RabbitMQ (если publisher настроен и build создан)
	if s.publisher != nil && buildCreated {
		if err := s.publisher.PublishBuildPending(ctx, buildID); err != nil {
			// Не фатальная ошибка — build уже создан в БД
			// Orchestrator может забрать его через polling
			s.logger.Warn("failed to publish build.pending",
				"build_id", buildID,
				"error", err,
			)
		}
	}

	return buildCreated, nil
}

// resolveScheduleTag вычисляет тег образа для scheduled build.
//
// Pipeline без image-секции (например, cleanup pipeline) собирается
// без тега. Маппинг spec.image.tags переопределяет политику по
// умолчанию — так же, как при manual и push запуске.
func (s *Scheduler) resolveScheduleTag(spec *domain.PipelineSpec, branch string) (string, error) {
	if spec.Image == nil {
		return "", nil
	}

	tags := s.tags
	if len(spec.Image.Tags) > 0 {
		tags = registry.NewTagPolicy(spec.Image.Tags)
	}

	return tags.Resolve(branch)
}
