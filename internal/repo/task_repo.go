package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
)

// TaskRepo — репозиторий для работы с tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт новый task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO tasks (id, build_id, step_id, name, type, attempt, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.BuildID,
		task.StepID,
		task.Name,
		task.Type,
		task.Attempt,
		task.Status,
		payloadJSON,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, build_id, step_id, name, type, attempt, status, payload, outputs,
		       log_tail, started_at, finished_at, error, created_at
		FROM tasks
		WHERE id = $1
	`
	return r.scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListByBuildID возвращает все tasks для build.
func (r *TaskRepo) ListByBuildID(ctx context.Context, buildID uuid.UUID) ([]domain.Task, error) {
	query := `
		SELECT id, build_id, step_id, name, type, attempt, status, payload, outputs,
		       log_tail, started_at, finished_at, error, created_at
		FROM tasks
		WHERE build_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, buildID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by build_id: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := r.scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// GetByBuildAndStepID возвращает task по build_id и step_id.
func (r *TaskRepo) GetByBuildAndStepID(ctx context.Context, buildID uuid.UUID, stepID string) (*domain.Task, error) {
	query := `
		SELECT id, build_id, step_id, name, type, attempt, status, payload, outputs,
		       log_tail, started_at, finished_at, error, created_at
		FROM tasks
		WHERE build_id = $1 AND step_id = $2
	`
	return r.scanTask(r.pool.QueryRow(ctx, query, buildID, stepID))
}

// Update обновляет task.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	outputsJSON, err := json.Marshal(task.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	query := `
		UPDATE tasks
		SET attempt = $2, status = $3, outputs = $4, log_tail = $5,
		    started_at = $6, finished_at = $7, error = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Attempt,
		task.Status,
		outputsJSON,
		nullString(task.LogTail),
		task.StartedAt,
		task.FinishedAt,
		nullString(task.Error),
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQueued возвращает tasks в статусе QUEUED.
func (r *TaskRepo) ListQueued(ctx context.Context, limit int) ([]domain.Task, error) {
	query := `
		SELECT id, build_id, step_id, name, type, attempt, status, payload, outputs,
		       log_tail, started_at, finished_at, error, created_at
		FROM tasks
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := r.scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CountByBuildAndStatus возвращает количество tasks по статусу для build.
func (r *TaskRepo) CountByBuildAndStatus(ctx context.Context, buildID uuid.UUID, status domain.TaskStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks WHERE build_id = $1 AND status = $2
	`, buildID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// --- Helpers ---

func (r *TaskRepo) scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var payloadJSON, outputsJSON []byte
	var logTail, taskError *string

	err := row.Scan(
		&task.ID,
		&task.BuildID,
		&task.StepID,
		&task.Name,
		&task.Type,
		&task.Attempt,
		&task.Status,
		&payloadJSON,
		&outputsJSON,
		&logTail,
		&task.StartedAt,
		&task.FinishedAt,
		&taskError,
		&task.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if outputsJSON != nil {
		if err := json.Unmarshal(outputsJSON, &task.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	if logTail != nil {
		task.LogTail = *logTail
	}
	if taskError != nil {
		task.Error = *taskError
	}

	return &task, nil
}

func (r *TaskRepo) scanTaskFromRows(rows pgx.Rows) (*domain.Task, error) {
	var task domain.Task
	var payloadJSON, outputsJSON []byte
	var logTail, taskError *string

	err := rows.Scan(
		&task.ID,
		&task.BuildID,
		&task.StepID,
		&task.Name,
		&task.Type,
		&task.Attempt,
		&task.Status,
		&payloadJSON,
		&outputsJSON,
		&logTail,
		&task.StartedAt,
		&task.FinishedAt,
		&taskError,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if outputsJSON != nil {
		if err := json.Unmarshal(outputsJSON, &task.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	if logTail != nil {
		task.LogTail = *logTail
	}
	if taskError != nil {
		task.Error = *taskError
	}

	return &task, nil
}
