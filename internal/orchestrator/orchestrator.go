package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Bayer-Group/pybalance-ci/internal/mq"
	"github.com/Bayer-Group/pybalance-ci/internal/repo"
	"github.com/google/uuid"
)

// Значения по умолчанию.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 20
)

// Orchestrator координирует выполнение builds.
//
// Работает в двух режимах одновременно:
//   - Событийный: потребляет build.pending и task.completed из RabbitMQ
//   - Polling: периодически опрашивает БД на случай потерянных событий
type Orchestrator struct {
	buildRepo    *repo.BuildRepo
	taskRepo     *repo.TaskRepo
	pipelineRepo *repo.PipelineRepo
	publisher    *mq.Publisher
	conn         *mq.Connection

	// activeBuilds — builds, обрабатываемые в данный момент.
	activeBuilds map[uuid.UUID]*BuildState
	mu           sync.RWMutex

	buildConsumer *mq.Consumer
	taskConsumer  *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	logger *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	stopped   bool
	stoppedMu sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	BuildRepo    *repo.BuildRepo
	TaskRepo     *repo.TaskRepo
	PipelineRepo *repo.PipelineRepo
	Publisher    *mq.Publisher
	Conn         *mq.Connection

	// PollInterval — интервал опроса БД (по умолчанию 10s).
	PollInterval time.Duration

	// BatchSize — максимум builds за один опрос (по умолчанию 20).
	BatchSize int

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		buildRepo:    cfg.BuildRepo,
		taskRepo:     cfg.TaskRepo,
		pipelineRepo: cfg.PipelineRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		activeBuilds: make(map[uuid.UUID]*BuildState),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator: consumers и polling loop.
// Блокирует до вызова Stop() или отмены контекста.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	// Consumer для build.pending (если RabbitMQ доступен)
	if o.conn != nil {
		o.buildConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:   string(mq.QueueBuildsPending),
			Handler: o.handleBuildPending,
		})

		o.taskConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueTasksCompleted),
			Handler:  o.handleTaskCompleted,
			Prefetch: o.batchSize,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.buildConsumer.Start(ctx); err != nil && ctx.Err() == nil {
				o.logger.Error("build consumer stopped", "error", err)
			}
		}()

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.taskConsumer.Start(ctx); err != nil && ctx.Err() == nil {
				o.logger.Error("task consumer stopped", "error", err)
			}
		}()
	} else {
		o.logger.Warn("RabbitMQ unavailable, running in polling-only mode")
	}

	// Polling loop — страховка на случай потерянных событий
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	<-ctx.Done()
	return ctx.Err()
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	if o.stopped {
		o.stoppedMu.Unlock()
		return
	}
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator")

	if o.buildConsumer != nil {
		o.buildConsumer.Stop()
	}
	if o.taskConsumer != nil {
		o.taskConsumer.Stop()
	}

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop периодически опрашивает БД на предмет pending builds.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll обрабатывает pending builds из БД.
func (o *Orchestrator) poll(ctx context.Context) {
	builds, err := o.buildRepo.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending builds", "error", err)
		return
	}

	for i := range builds {
		build := &builds[i]

		// Пропускаем уже обрабатываемые
		if o.isBuildActive(build.ID) {
			continue
		}

		if err := o.processBuild(ctx, build.ID); err != nil {
			o.logger.Error("failed to process build from poll",
				"build_id", build.ID,
				"error", err,
			)
		}
	}
}

// isBuildActive проверяет, обрабатывается ли build.
func (o *Orchestrator) isBuildActive(buildID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.activeBuilds[buildID]
	return ok
}

// getActiveBuild возвращает BuildState активного build (nil, если не активен).
func (o *Orchestrator) getActiveBuild(buildID uuid.UUID) *BuildState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeBuilds[buildID]
}

// addActiveBuild добавляет build в активные.
func (o *Orchestrator) addActiveBuild(state *BuildState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.activeBuilds[state.BuildID()]; ok {
		return ErrBuildAlreadyActive
	}

	o.activeBuilds[state.BuildID()] = state
	return nil
}

// removeActiveBuild удаляет build из активных.
func (o *Orchestrator) removeActiveBuild(buildID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeBuilds, buildID)
}

// ActiveBuildsCount возвращает количество активных builds.
func (o *Orchestrator) ActiveBuildsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeBuilds)
}

// GetActiveBuildStats возвращает статистику активного build.
func (o *Orchestrator) GetActiveBuildStats(buildID uuid.UUID) (BuildStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, ok := o.activeBuilds[buildID]
	if !ok {
		return BuildStats{}, false
	}
	return state.Stats(), true
}
