package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/registry"
	"github.com/Bayer-Group/pybalance-ci/internal/repo"
	"github.com/Bayer-Group/pybalance-ci/internal/telemetry"
)

// signatureHeader — заголовок с HMAC-подписью push-события.
const signatureHeader = "X-Hub-Signature-256"

// maxHookBodySize — лимит размера тела push-события.
const maxHookBodySize = 1 << 20 // 1 MiB

// HandlePush обрабатывает push-событие от git-хостинга.
//
// Событие создаёт сборку, если:
//  1. Подпись верна (когда настроен WEBHOOK_SECRET)
//  2. Pipeline существует и активен
//  3. Ветка входит в trigger-список pipeline
//  4. Для ветки есть маппинг на тег образа
//
// Push в ветку вне trigger-списка — не ошибка (202), ветка без тега —
// ошибка конфигурации (422).
//
// POST /api/v1/hooks/push
func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBodySize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	// Проверяем подпись до разбора тела
	if h.webhookSecret != "" {
		if !verifySignature(h.webhookSecret, body, r.Header.Get(signatureHeader)) {
			telemetry.WebhooksReceived.WithLabelValues("rejected").Inc()
			h.logger.Warn("push webhook signature mismatch", "remote_addr", r.RemoteAddr)
			Unauthorized(w, "invalid webhook signature")
			return
		}
	}

	var event PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		telemetry.WebhooksReceived.WithLabelValues("rejected").Inc()
		BadRequest(w, "invalid request body")
		return
	}

	if event.Pipeline == "" {
		telemetry.WebhooksReceived.WithLabelValues("rejected").Inc()
		BadRequest(w, "pipeline is required")
		return
	}
	if event.Commit == "" {
		telemetry.WebhooksReceived.WithLabelValues("rejected").Inc()
		BadRequest(w, "commit is required")
		return
	}

	branch, ok := branchFromRef(event.Ref)
	if !ok {
		// Теги и прочие refs не собираем
		telemetry.WebhooksReceived.WithLabelValues("ignored").Inc()
		Accepted(w, PushResult{Triggered: false, Reason: "ref is not a branch"})
		return
	}

	pipeline, err := h.pipelineRepo.GetByName(r.Context(), event.Pipeline)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		telemetry.WebhooksReceived.WithLabelValues("rejected").Inc()
		return
	}

	if !pipeline.IsActive {
		telemetry.WebhooksReceived.WithLabelValues("ignored").Inc()
		Accepted(w, PushResult{Triggered: false, Reason: "pipeline is not active"})
		return
	}

	version, err := h.pipelineRepo.GetLatestVersion(r.Context(), pipeline.ID)
	if HandleRepoError(w, h.logger, err, "pipeline has no versions") {
		telemetry.WebhooksReceived.WithLabelValues("rejected").Inc()
		return
	}

	if !version.Spec.Trigger.Triggers(branch) {
		telemetry.WebhooksReceived.WithLabelValues("ignored").Inc()
		Accepted(w, PushResult{Triggered: false, Reason: "branch is not in trigger list"})
		return
	}

	// Вычисляем тег образа. Trigger-ветка без маппинга на тег —
	// ошибка конфигурации pipeline, сборка не создаётся.
	var imageTag string
	if version.Spec.Image != nil {
		imageTag, err = h.tagPolicyFor(version.Spec.Image).Resolve(branch)
		if err != nil {
			if errors.Is(err, registry.ErrUnmappedBranch) {
				telemetry.WebhooksReceived.WithLabelValues("rejected").Inc()
				h.logger.Warn("push branch has no tag mapping",
					"pipeline", pipeline.Name,
					"branch", branch,
				)
				InvalidState(w, err.Error())
				return
			}
			InternalError(w, h.logger, err)
			return
		}
	}

	// Idempotency: повторная доставка того же push не создаёт дубликат
	idempKey := fmt.Sprintf("%s_%s", pipeline.ID, event.Commit)
	existing, err := h.buildRepo.GetByIdempotencyKey(r.Context(), pipeline.ID, idempKey)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		InternalError(w, h.logger, err)
		return
	}
	if existing != nil {
		telemetry.WebhooksReceived.WithLabelValues("ignored").Inc()
		resp := BuildFromDomain(*existing)
		Success(w, PushResult{Triggered: false, Reason: "build already exists", Build: &resp})
		return
	}

	build := &domain.Build{
		ID:             uuid.New(),
		PipelineID:     pipeline.ID,
		Version:        version.Version,
		Status:         domain.BuildStatusPending,
		Trigger:        domain.TriggerPush,
		Branch:         branch,
		Commit:         event.Commit,
		ImageTag:       imageTag,
		IdempotencyKey: idempKey,
		CreatedAt:      time.Now(),
	}

	if err := h.buildRepo.Create(r.Context(), build); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	telemetry.BuildsStarted.WithLabelValues(string(domain.TriggerPush)).Inc()
	telemetry.WebhooksReceived.WithLabelValues("triggered").Inc()

	h.logger.Info("build triggered by push",
		"build_id", build.ID,
		"pipeline", pipeline.Name,
		"branch", branch,
		"commit", event.Commit,
		"image_tag", imageTag,
		"pusher", event.Pusher,
	)

	// Публикуем событие в очередь
	if h.publisher != nil {
		if err := h.publisher.PublishBuildPending(r.Context(), build.ID); err != nil {
			h.logger.Warn("failed to publish build.pending", "build_id", build.ID, "error", err)
		}
	}

	resp := BuildFromDomain(*build)
	Created(w, PushResult{Triggered: true, Build: &resp})
}

// verifySignature проверяет HMAC SHA-256 подпись тела запроса.
// Формат заголовка: "sha256=<hex>".
func verifySignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}

	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), expected)
}

// branchFromRef извлекает имя ветки из git ref.
// "refs/heads/main" → "main". Прочие refs (теги) не являются ветками.
func branchFromRef(ref string) (string, bool) {
	branch, ok := strings.CutPrefix(ref, "refs/heads/")
	if !ok || branch == "" {
		return "", false
	}
	return branch, true
}
