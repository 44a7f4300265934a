// Package registry — правила публикации контейнерных образов.
//
// Здесь живёт политика тегирования (какая ветка публикуется под каким
// тегом) и учётные данные Docker Hub. Политика задаётся per-pipeline,
// по умолчанию используется маппинг проекта pybalance.
package registry

import (
	"errors"
	"fmt"
)

// ErrUnmappedBranch — ветка отсутствует в маппинге ветка → тег.
// Сборка для такой ветки не создаётся: это ошибка конфигурации,
// а не повод молча пропустить публикацию.
var ErrUnmappedBranch = errors.New("branch has no image tag mapping")

// DefaultTags — маппинг ветка → тег по умолчанию.
//
// main публикуется как latest, dev — как dev, test — как testing.
func DefaultTags() map[string]string {
	return map[string]string{
		"main": "latest",
		"dev":  "dev",
		"test": "testing",
	}
}

// TagPolicy — политика тегирования образов по веткам.
type TagPolicy struct {
	tags map[string]string
}

// NewTagPolicy создаёт политику из маппинга ветка → тег.
// Если tags пустой, используется DefaultTags.
func NewTagPolicy(tags map[string]string) *TagPolicy {
	if len(tags) == 0 {
		tags = DefaultTags()
	}
	return &TagPolicy{tags: tags}
}

// Resolve возвращает тег образа для ветки.
// Возвращает ErrUnmappedBranch, если ветка не входит в маппинг.
func (p *TagPolicy) Resolve(branch string) (string, error) {
	tag, ok := p.tags[branch]
	if !ok {
		return "", fmt.Errorf("resolve tag for branch %q: %w", branch, ErrUnmappedBranch)
	}
	return tag, nil
}

// Branches возвращает список веток, входящих в маппинг.
func (p *TagPolicy) Branches() []string {
	branches := make([]string, 0, len(p.tags))
	for b := range p.tags {
		branches = append(branches, b)
	}
	return branches
}
