package api

import (
	"log/slog"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/mq"
	"github.com/Bayer-Group/pybalance-ci/internal/registry"
	"github.com/Bayer-Group/pybalance-ci/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	pipelineRepo  *repo.PipelineRepo
	buildRepo     *repo.BuildRepo
	taskRepo      *repo.TaskRepo
	scheduleRepo  *repo.ScheduleRepo
	artifactRepo  *repo.ArtifactRepo
	publisher     *mq.Publisher
	tags          *registry.TagPolicy
	webhookSecret string
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	PipelineRepo *repo.PipelineRepo
	BuildRepo    *repo.BuildRepo
	TaskRepo     *repo.TaskRepo
	ScheduleRepo *repo.ScheduleRepo
	ArtifactRepo *repo.ArtifactRepo
	Publisher    *mq.Publisher

	// Tags — политика branch → tag по умолчанию. Pipeline может
	// переопределить её через spec.image.tags. Если nil, используется
	// политика по умолчанию (main → latest, dev → dev, test → testing).
	Tags *registry.TagPolicy

	// WebhookSecret — секрет для проверки HMAC-подписи push-событий.
	// Если пустой, подпись не проверяется.
	WebhookSecret string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	tags := cfg.Tags
	if tags == nil {
		tags = registry.NewTagPolicy(nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		pipelineRepo:  cfg.PipelineRepo,
		buildRepo:     cfg.BuildRepo,
		taskRepo:      cfg.TaskRepo,
		scheduleRepo:  cfg.ScheduleRepo,
		artifactRepo:  cfg.ArtifactRepo,
		publisher:     cfg.Publisher,
		tags:          tags,
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

// tagPolicyFor возвращает политику тегирования для pipeline spec.
// Маппинг spec.image.tags переопределяет политику по умолчанию.
func (h *Handler) tagPolicyFor(image *domain.ImageDef) *registry.TagPolicy {
	if image != nil && len(image.Tags) > 0 {
		return registry.NewTagPolicy(image.Tags)
	}
	return h.tags
}
