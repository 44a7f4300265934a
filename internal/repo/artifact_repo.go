package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
)

// ArtifactRepo — репозиторий для работы с image_artifacts.
type ArtifactRepo struct {
	pool *pgxpool.Pool
}

// NewArtifactRepo создаёт новый ArtifactRepo.
func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

// Create записывает опубликованный образ.
func (r *ArtifactRepo) Create(ctx context.Context, a *domain.ImageArtifact) error {
	query := `
		INSERT INTO image_artifacts (id, build_id, repository, tag, digest, size_bytes, pushed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.BuildID,
		a.Repository,
		a.Tag,
		nullString(a.Digest),
		a.SizeBytes,
		a.PushedAt,
	)
	if err != nil {
		return fmt.Errorf("insert image artifact: %w", err)
	}
	return nil
}

// GetByID возвращает артефакт по ID.
func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ImageArtifact, error) {
	query := `
		SELECT id, build_id, repository, tag, digest, size_bytes, pushed_at
		FROM image_artifacts
		WHERE id = $1
	`
	var a domain.ImageArtifact
	var digest *string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.BuildID,
		&a.Repository,
		&a.Tag,
		&digest,
		&a.SizeBytes,
		&a.PushedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image artifact: %w", err)
	}
	if digest != nil {
		a.Digest = *digest
	}
	return &a, nil
}

// ListByBuildID возвращает артефакты build.
func (r *ArtifactRepo) ListByBuildID(ctx context.Context, buildID uuid.UUID) ([]domain.ImageArtifact, error) {
	query := `
		SELECT id, build_id, repository, tag, digest, size_bytes, pushed_at
		FROM image_artifacts
		WHERE build_id = $1
		ORDER BY pushed_at DESC
	`
	rows, err := r.pool.Query(ctx, query, buildID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts by build_id: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListByRepository возвращает историю публикаций в репозиторий.
func (r *ArtifactRepo) ListByRepository(ctx context.Context, repository string, limit int) ([]domain.ImageArtifact, error) {
	query := `
		SELECT id, build_id, repository, tag, digest, size_bytes, pushed_at
		FROM image_artifacts
		WHERE repository = $1
		ORDER BY pushed_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, repository, limit)
	if err != nil {
		return nil, fmt.Errorf("list artifacts by repository: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// LatestByTag возвращает последний образ, опубликованный под тегом.
func (r *ArtifactRepo) LatestByTag(ctx context.Context, repository, tag string) (*domain.ImageArtifact, error) {
	query := `
		SELECT id, build_id, repository, tag, digest, size_bytes, pushed_at
		FROM image_artifacts
		WHERE repository = $1 AND tag = $2
		ORDER BY pushed_at DESC
		LIMIT 1
	`
	var a domain.ImageArtifact
	var digest *string
	err := r.pool.QueryRow(ctx, query, repository, tag).Scan(
		&a.ID,
		&a.BuildID,
		&a.Repository,
		&a.Tag,
		&digest,
		&a.SizeBytes,
		&a.PushedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest artifact: %w", err)
	}
	if digest != nil {
		a.Digest = *digest
	}
	return &a, nil
}

func (r *ArtifactRepo) collect(rows pgx.Rows) ([]domain.ImageArtifact, error) {
	var artifacts []domain.ImageArtifact
	for rows.Next() {
		var a domain.ImageArtifact
		var digest *string
		if err := rows.Scan(
			&a.ID,
			&a.BuildID,
			&a.Repository,
			&a.Tag,
			&digest,
			&a.SizeBytes,
			&a.PushedAt,
		); err != nil {
			return nil, fmt.Errorf("scan image artifact: %w", err)
		}
		if digest != nil {
			a.Digest = *digest
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
