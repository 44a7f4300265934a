package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"golang.org/x/sync/errgroup"
)

// CleanupExecutor — executor для шага типа "cleanup".
//
// Освобождает ресурсы хоста перед тяжёлой сборкой: чистит неиспользуемые
// образы и build-кэш docker, опционально отключает swap. Операции
// выполняются параллельно, ошибки отдельных команд не валят шаг.
//
// Config (из task.Payload):
//   - prune_images (bool): docker image prune -af. Default: true
//   - prune_cache (bool): docker builder prune -af. Default: true
//   - disable_swap (bool): swapoff -a. Default: false
//
// Outputs:
//   - pruned ([]string): выполненные операции
//   - warnings ([]string): операции, завершившиеся с ошибкой
type CleanupExecutor struct{}

// Execute выполняет очистку.
func (e *CleanupExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	type op struct {
		name string
		cmd  []string
	}

	var ops []op
	if getBool(task.Payload, "prune_images", true) {
		ops = append(ops, op{"prune_images", []string{"docker", "image", "prune", "--all", "--force"}})
	}
	if getBool(task.Payload, "prune_cache", true) {
		ops = append(ops, op{"prune_cache", []string{"docker", "builder", "prune", "--all", "--force"}})
	}
	if getBool(task.Payload, "disable_swap", false) {
		ops = append(ops, op{"disable_swap", []string{"swapoff", "-a"}})
	}

	var (
		mu       sync.Mutex
		pruned   []string
		warnings []string
		logs     string
	)

	g, ctx := errgroup.WithContext(ctx)

	for _, o := range ops {
		g.Go(func() error {
			res, err := runCommand(ctx, "", nil, o.cmd[0], o.cmd[1:]...)

			mu.Lock()
			defer mu.Unlock()

			if res != nil {
				logs += res.Output
			}

			switch {
			case err != nil:
				warnings = append(warnings, fmt.Sprintf("%s: %v", o.name, err))
			case res.ExitCode != 0:
				warnings = append(warnings, fmt.Sprintf("%s: exit code %d", o.name, res.ExitCode))
			default:
				pruned = append(pruned, o.name)
			}

			// Ошибки очистки не прерывают остальные операции
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ExecutionResult{
		Outputs: map[string]any{
			"pruned":   pruned,
			"warnings": warnings,
		},
		LogTail: tail(logs),
	}, nil
}
