package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
)

// CheckoutExecutor — executor для шага типа "checkout".
//
// Клонирует git-репозиторий и переключается на указанный ref.
//
// Config (из task.Payload):
//   - repo_url (string): URL репозитория (обязательно)
//   - ref (string): commit SHA или ветка
//   - branch (string): ветка build; используется, когда ref пуст
//     (manual build без commit собирает HEAD своей ветки)
//   - dir (string): каталог для checkout. Default: {TMPDIR}/pbci/{build_id}
//
// Outputs:
//   - dir (string): каталог с исходниками (используется следующими шагами)
//   - commit (string): полный SHA выкачанного коммита
type CheckoutExecutor struct{}

// Execute клонирует репозиторий.
func (e *CheckoutExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	repoURL := getString(task.Payload, "repo_url", "")
	if repoURL == "" {
		return nil, fmt.Errorf("%w: repo_url", ErrMissingConfig)
	}

	ref := resolveRef(task.Payload)
	dir := getString(task.Payload, "dir", filepath.Join(os.TempDir(), "pbci", task.BuildID.String()))

	// Чистим каталог от предыдущих попыток
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clean checkout dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create checkout dir: %w", err)
	}

	// Клонируем
	cloneRes, err := runCommand(ctx, "", nil, "git", "clone", "--no-checkout", repoURL, dir)
	if err != nil {
		return nil, fmt.Errorf("git clone: %w", err)
	}
	if cloneRes.ExitCode != 0 {
		return &ExecutionResult{
			LogTail: tail(cloneRes.Output),
			Error:   fmt.Sprintf("git clone exited with code %d", cloneRes.ExitCode),
		}, nil
	}

	// Переключаемся на нужный ref
	checkoutRes, err := runCommand(ctx, dir, nil, "git", "checkout", "--force", ref)
	if err != nil {
		return nil, fmt.Errorf("git checkout: %w", err)
	}
	if checkoutRes.ExitCode != 0 {
		return &ExecutionResult{
			LogTail: tail(cloneRes.Output + checkoutRes.Output),
			Error:   fmt.Sprintf("git checkout %s exited with code %d", ref, checkoutRes.ExitCode),
		}, nil
	}

	// Определяем итоговый commit
	revRes, err := runCommand(ctx, dir, nil, "git", "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("git rev-parse: %w", err)
	}
	if revRes.ExitCode != 0 {
		return &ExecutionResult{
			LogTail: tail(revRes.Output),
			Error:   fmt.Sprintf("git rev-parse HEAD exited with code %d", revRes.ExitCode),
		}, nil
	}

	commit := strings.TrimSpace(revRes.Output)

	return &ExecutionResult{
		Outputs: map[string]any{
			"dir":    dir,
			"commit": commit,
		},
		LogTail: tail(cloneRes.Output + checkoutRes.Output),
	}, nil
}

// resolveRef определяет, что выкачивать: явный commit (ref), иначе
// ветку build. Без fallback на ветку manual build без commit собирал бы
// не ту ветку, под тег которой публикуется образ.
func resolveRef(payload map[string]any) string {
	if ref := getString(payload, "ref", ""); ref != "" {
		return ref
	}
	if branch := getString(payload, "branch", ""); branch != "" {
		return branch
	}
	return "main"
}
