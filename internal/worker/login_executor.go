package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/registry"
)

// RegistryLoginExecutor — executor для шага типа "registry-login".
//
// Выполняет docker login в указанный registry. Токен передаётся
// процессу docker через stdin и не попадает в аргументы.
//
// Config (из task.Payload):
//   - registry (string): адрес registry. Default: docker.io
//   - username (string): имя пользователя. Default: из DOCKER_HUB_USERNAME
//   - token берётся только из окружения (DOCKER_HUB_ACCESS_TOKEN),
//     в конфигурации pipeline секретов нет
//
// Outputs:
//   - registry (string)
//   - username (string)
type RegistryLoginExecutor struct {
	// Credentials — переопределение учётных данных (для тестов).
	// Если nil, используется registry.CredentialsFromEnv.
	Credentials func() (registry.Credentials, error)
}

// Execute выполняет docker login.
func (e *RegistryLoginExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	credsFn := e.Credentials
	if credsFn == nil {
		credsFn = registry.CredentialsFromEnv
	}

	creds, err := credsFn()
	if err != nil {
		return nil, fmt.Errorf("load registry credentials: %w", err)
	}

	registryHost := getString(task.Payload, "registry", "docker.io")

	username := getString(task.Payload, "username", creds.Username)

	result, err := runCommandStdin(ctx, "", nil, strings.NewReader(creds.Token),
		"docker", "login", registryHost, "--username", username, "--password-stdin")
	if err != nil {
		return nil, fmt.Errorf("docker login: %w", err)
	}

	if result.ExitCode != 0 {
		return &ExecutionResult{
			LogTail: tail(result.Output),
			Error:   fmt.Sprintf("docker login to %s exited with code %d", registryHost, result.ExitCode),
		}, nil
	}

	return &ExecutionResult{
		Outputs: map[string]any{
			"registry": registryHost,
			"username": username,
		},
		LogTail: tail(result.Output),
	}, nil
}
