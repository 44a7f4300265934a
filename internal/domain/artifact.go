package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImageArtifact — опубликованный контейнерный образ.
//
// Записывается worker'ом после того, как docker-build шаг успешно
// запушил образ в registry. Это долговечный след сборки: по артефактам
// видно, какой коммит лежит за каким тегом.
type ImageArtifact struct {
	// ID — уникальный идентификатор артефакта.
	ID uuid.UUID `json:"id"`

	// BuildID — ссылка на build, который создал образ.
	BuildID uuid.UUID `json:"build_id"`

	// Repository — репозиторий образа (например, "buntha/pybalance").
	Repository string `json:"repository"`

	// Tag — тег образа ("latest", "dev", "testing").
	Tag string `json:"tag"`

	// Digest — content digest образа ("sha256:..."), если docker его вернул.
	Digest string `json:"digest,omitempty"`

	// SizeBytes — размер образа в байтах (0, если неизвестен).
	SizeBytes int64 `json:"size_bytes,omitempty"`

	// PushedAt — время публикации в registry.
	PushedAt time.Time `json:"pushed_at"`
}

// Ref возвращает полную ссылку на образ: "repository:tag".
func (a *ImageArtifact) Ref() string {
	return a.Repository + ":" + a.Tag
}
