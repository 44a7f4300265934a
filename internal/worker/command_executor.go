package worker

import (
	"context"
	"fmt"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
)

// CommandExecutor — executor для шага типа "command".
//
// Запускает shell-команду (через "sh -c") и сохраняет хвост вывода.
// Типичное применение — линтер: "black --check .".
//
// Config (из task.Payload):
//   - command (string): команда для запуска (обязательно)
//   - dir (string): рабочий каталог. Default: текущий
//   - env (map[string]string): дополнительные переменные окружения
//
// Outputs:
//   - exit_code (int): код завершения команды
//   - output (string): хвост stdout+stderr
type CommandExecutor struct{}

// Execute запускает команду.
func (e *CommandExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	command := getString(task.Payload, "command", "")
	if command == "" {
		return nil, fmt.Errorf("%w: command", ErrMissingConfig)
	}

	dir := getString(task.Payload, "dir", "")
	env := getStringMap(task.Payload, "env")

	result, err := runCommand(ctx, dir, env, "sh", "-c", command)
	if err != nil {
		return nil, fmt.Errorf("run command: %w", err)
	}

	outputs := map[string]any{
		"exit_code": result.ExitCode,
		"output":    tail(result.Output),
	}

	if result.ExitCode != 0 {
		return &ExecutionResult{
			Outputs: outputs,
			LogTail: tail(result.Output),
			Error:   fmt.Sprintf("%s: exit code %d", truncate(command, 100), result.ExitCode),
		}, nil
	}

	return &ExecutionResult{
		Outputs: outputs,
		LogTail: tail(result.Output),
	}, nil
}
