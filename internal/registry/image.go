package registry

import (
	"errors"
	"os"
)

// ErrNoCredentials — учётные данные Docker Hub не заданы.
var ErrNoCredentials = errors.New("docker hub credentials are not set")

// ImageRef форматирует полную ссылку на образ: "repository:tag".
func ImageRef(repository, tag string) string {
	return repository + ":" + tag
}

// Credentials — учётные данные для docker login.
//
// Токен передаётся в docker через stdin и никогда не попадает
// в аргументы процесса.
type Credentials struct {
	Username string
	Token    string
}

// CredentialsFromEnv читает учётные данные из окружения:
// DOCKER_HUB_USERNAME и DOCKER_HUB_ACCESS_TOKEN.
func CredentialsFromEnv() (Credentials, error) {
	username := os.Getenv("DOCKER_HUB_USERNAME")
	token := os.Getenv("DOCKER_HUB_ACCESS_TOKEN")
	if username == "" || token == "" {
		return Credentials{}, ErrNoCredentials
	}
	return Credentials{Username: username, Token: token}, nil
}
