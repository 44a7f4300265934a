package scheduler

import (
	"errors"
	"testing"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/Bayer-Group/pybalance-ci/internal/registry"
)

func TestResolveScheduleTag_DefaultPolicy(t *testing.T) {
	s := New(Config{})

	spec := &domain.PipelineSpec{
		Image: &domain.ImageDef{Repository: "buntha/pybalance"},
	}

	tag, err := s.resolveScheduleTag(spec, "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag != "dev" {
		t.Errorf("expected tag dev, got %q", tag)
	}
}

func TestResolveScheduleTag_SpecOverride(t *testing.T) {
	s := New(Config{})

	// Маппинг из spec.image.tags должен переопределять политику
	// по умолчанию, как при manual и push запуске.
	spec := &domain.PipelineSpec{
		Image: &domain.ImageDef{
			Repository: "buntha/pybalance",
			Tags:       map[string]string{"nightly": "nightly"},
		},
	}

	tag, err := s.resolveScheduleTag(spec, "nightly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag != "nightly" {
		t.Errorf("expected tag nightly, got %q", tag)
	}

	// Ветки дефолтной политики в переопределённом маппинге нет
	if _, err := s.resolveScheduleTag(spec, "main"); !errors.Is(err, registry.ErrUnmappedBranch) {
		t.Errorf("expected ErrUnmappedBranch for main with override, got %v", err)
	}
}

func TestResolveScheduleTag_NoImageSection(t *testing.T) {
	s := New(Config{})

	// Pipeline без image-секции (cleanup pipeline) собирается без тега
	// на любой ветке.
	spec := &domain.PipelineSpec{}

	tag, err := s.resolveScheduleTag(spec, "feature/weekly-cleanup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag != "" {
		t.Errorf("expected empty tag, got %q", tag)
	}
}

func TestResolveScheduleTag_UnmappedBranch(t *testing.T) {
	s := New(Config{})

	spec := &domain.PipelineSpec{
		Image: &domain.ImageDef{Repository: "buntha/pybalance"},
	}

	if _, err := s.resolveScheduleTag(spec, "feature/login"); !errors.Is(err, registry.ErrUnmappedBranch) {
		t.Errorf("expected ErrUnmappedBranch, got %v", err)
	}
}
