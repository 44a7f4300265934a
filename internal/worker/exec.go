package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
)

// logTailLimit — максимальный размер хвоста вывода, сохраняемого в task.
const logTailLimit = 4096

// commandResult — результат запуска внешнего процесса.
type commandResult struct {
	// Output — объединённый stdout+stderr.
	Output string

	// ExitCode — код завершения процесса.
	ExitCode int
}

// runCommand запускает внешний процесс и возвращает его вывод и код завершения.
//
// Ненулевой код завершения не считается ошибкой запуска — вызывающий
// решает сам, что с ним делать. error возвращается только если процесс
// не удалось запустить (или context отменён).
func runCommand(ctx context.Context, dir string, env map[string]string, name string, args ...string) (*commandResult, error) {
	return runCommandStdin(ctx, dir, env, nil, name, args...)
}

// runCommandStdin — то же, что runCommand, но с возможностью передать stdin.
// Используется для секретов (docker login --password-stdin).
func runCommandStdin(ctx context.Context, dir string, env map[string]string, stdin io.Reader, name string, args ...string) (*commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = stdin

	if len(env) > 0 {
		cmd.Env = os.Environ()
		for key, val := range env {
			cmd.Env = append(cmd.Env, key+"="+val)
		}
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()

	// ProcessState равен nil, если процесс не запустился
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	result := &commandResult{
		Output:   buf.String(),
		ExitCode: exitCode,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Процесс запустился, но завершился с ненулевым кодом
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, err
	}

	return result, nil
}

// tail возвращает последние logTailLimit байт вывода.
func tail(output string) string {
	if len(output) <= logTailLimit {
		return strings.TrimSpace(output)
	}
	return strings.TrimSpace(output[len(output)-logTailLimit:])
}

// getString извлекает строку из map с default значением.
func getString(m map[string]any, key, defaultVal string) string {
	if val, ok := m[key]; ok {
		if s, ok := val.(string); ok && s != "" {
			return s
		}
	}
	return defaultVal
}

// getBool извлекает bool из map с default значением.
func getBool(m map[string]any, key string, defaultVal bool) bool {
	if val, ok := m[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// getStringMap извлекает map строк из payload (после JSON roundtrip
// значения приходят как map[string]any).
func getStringMap(m map[string]any, key string) map[string]string {
	val, ok := m[key]
	if !ok || val == nil {
		return nil
	}

	switch v := val.(type) {
	case map[string]string:
		return v
	case map[string]any:
		result := make(map[string]string, len(v))
		for key, item := range v {
			if s, ok := item.(string); ok {
				result[key] = s
			}
		}
		return result
	}
	return nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
