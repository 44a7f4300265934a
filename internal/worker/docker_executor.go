package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/registry"
	"github.com/Bayer-Group/pybalance-ci/internal/repo"
	"github.com/Bayer-Group/pybalance-ci/internal/telemetry"
	"github.com/google/uuid"
)

// DockerBuildExecutor — executor для шага типа "docker-build".
//
// Собирает образ из Dockerfile и (опционально) публикует его в registry.
// После успешного push сохраняет артефакт в БД.
//
// Config (из task.Payload):
//   - repository (string): имя образа без тега (обязательно)
//   - tag (string): тег образа (обязательно; обычно {{.Env.IMAGE_TAG}})
//   - dockerfile (string): путь к Dockerfile. Default: environments/Dockerfile
//   - context (string): каталог контекста сборки. Default: "."
//   - build_args (map[string]string): build-args для docker build
//   - push (bool): публиковать ли образ. Default: true
//
// Outputs:
//   - image (string): полная ссылка "repository:tag"
//   - tag (string)
//   - digest (string): digest опубликованного образа (если push)
type DockerBuildExecutor struct {
	// Artifacts — репозиторий для сохранения опубликованных образов.
	// Если nil, артефакты не записываются.
	Artifacts *repo.ArtifactRepo
}

// Execute собирает и публикует образ.
func (e *DockerBuildExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	repository := getString(task.Payload, "repository", "")
	if repository == "" {
		return nil, fmt.Errorf("%w: repository", ErrMissingConfig)
	}

	tag := getString(task.Payload, "tag", "")
	if tag == "" {
		return nil, fmt.Errorf("%w: tag", ErrMissingConfig)
	}

	dockerfile := getString(task.Payload, "dockerfile", "environments/Dockerfile")
	buildCtx := getString(task.Payload, "context", ".")
	dir := getString(task.Payload, "dir", "")
	push := getBool(task.Payload, "push", true)

	image := registry.ImageRef(repository, tag)

	// docker build
	args := []string{"build", "--tag", image, "--file", dockerfile}
	for key, val := range getStringMap(task.Payload, "build_args") {
		args = append(args, "--build-arg", key+"="+val)
	}
	args = append(args, buildCtx)

	buildRes, err := runCommand(ctx, dir, nil, "docker", args...)
	if err != nil {
		return nil, fmt.Errorf("docker build: %w", err)
	}
	if buildRes.ExitCode != 0 {
		return &ExecutionResult{
			LogTail: tail(buildRes.Output),
			Error:   fmt.Sprintf("docker build %s exited with code %d", image, buildRes.ExitCode),
		}, nil
	}

	outputs := map[string]any{
		"image": image,
		"tag":   tag,
	}

	if !push {
		return &ExecutionResult{
			Outputs: outputs,
			LogTail: tail(buildRes.Output),
		}, nil
	}

	// docker push
	pushRes, err := runCommand(ctx, dir, nil, "docker", "push", image)
	if err != nil {
		return nil, fmt.Errorf("docker push: %w", err)
	}
	if pushRes.ExitCode != 0 {
		return &ExecutionResult{
			LogTail: tail(buildRes.Output + pushRes.Output),
			Error:   fmt.Sprintf("docker push %s exited with code %d", image, pushRes.ExitCode),
		}, nil
	}

	// Digest опубликованного образа
	digest := e.inspectDigest(ctx, image)
	if digest != "" {
		outputs["digest"] = digest
	}

	telemetry.ImagesPushed.WithLabelValues(tag).Inc()

	// Сохраняем артефакт
	if e.Artifacts != nil {
		artifact := &domain.ImageArtifact{
			ID:         uuid.New(),
			BuildID:    task.BuildID,
			Repository: repository,
			Tag:        tag,
			Digest:     digest,
			PushedAt:   time.Now(),
		}
		if err := e.Artifacts.Create(ctx, artifact); err != nil {
			// Образ уже в registry — не валим шаг из-за записи в БД
			outputs["artifact_error"] = err.Error()
		}
	}

	return &ExecutionResult{
		Outputs: outputs,
		LogTail: tail(buildRes.Output + pushRes.Output),
	}, nil
}

// inspectDigest возвращает digest образа из локального docker.
func (e *DockerBuildExecutor) inspectDigest(ctx context.Context, image string) string {
	res, err := runCommand(ctx, "", nil,
		"docker", "inspect", "--format", "{{index .RepoDigests 0}}", image)
	if err != nil || res.ExitCode != 0 {
		return ""
	}

	digest := strings.TrimSpace(res.Output)
	// RepoDigests имеет вид "repository@sha256:...", оставляем только digest
	if idx := strings.LastIndex(digest, "@"); idx >= 0 {
		digest = digest[idx+1:]
	}
	return digest
}
