package engine

import (
	"errors"
	"testing"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
)

func TestValidate_EmptySteps(t *testing.T) {
	tests := []struct {
		name string
		spec *domain.PipelineSpec
	}{
		{
			name: "nil spec",
			spec: nil,
		},
		{
			name: "empty steps",
			spec: &domain.PipelineSpec{
				Steps: []domain.StepDef{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if !errors.Is(err, ErrEmptySteps) {
				t.Errorf("expected ErrEmptySteps, got %v", err)
			}
		})
	}
}

func TestValidate_EmptyStepID(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "", Type: "command"},
		},
	}

	err := Validate(spec)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(vErr.Err, ErrEmptyStepID) {
		t.Errorf("expected ErrEmptyStepID, got %v", vErr.Err)
	}
}

func TestValidate_DuplicateStepID(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "lint", Type: "command"},
			{ID: "lint", Type: "checkout"},
		},
	}

	err := Validate(spec)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(vErr.Err, ErrDuplicateStepID) {
		t.Errorf("expected ErrDuplicateStepID, got %v", vErr.Err)
	}
}

func TestValidate_UnknownStepType(t *testing.T) {
	tests := []struct {
		name     string
		stepType string
	}{
		{name: "empty type", stepType: ""},
		{name: "unknown type", stepType: "unknown"},
		{name: "typo", stepType: "docker-biuld"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &domain.PipelineSpec{
				Steps: []domain.StepDef{
					{ID: "step1", Type: tt.stepType},
				},
			}

			err := Validate(spec)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !errors.Is(vErr.Err, ErrUnknownStepType) {
				t.Errorf("expected ErrUnknownStepType, got %v", vErr.Err)
			}
		})
	}
}

func TestValidate_MissingDependency(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "checkout", Type: "checkout"},
			{ID: "lint", Type: "command", DependsOn: []string{"nonexistent"}},
		},
	}

	err := Validate(spec)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(vErr.Err, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", vErr.Err)
	}
}

func TestValidate_SelfDependency(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "lint", Type: "command", DependsOn: []string{"lint"}},
		},
	}

	err := Validate(spec)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(vErr.Err, ErrSelfDependency) {
		t.Errorf("expected ErrSelfDependency, got %v", vErr.Err)
	}
}

func TestValidate_MissingImageRepo(t *testing.T) {
	spec := &domain.PipelineSpec{
		Image: &domain.ImageDef{Repository: ""},
		Steps: []domain.StepDef{
			{ID: "checkout", Type: "checkout"},
		},
	}

	err := Validate(spec)
	if !errors.Is(err, ErrMissingImageRepo) {
		t.Errorf("expected ErrMissingImageRepo, got %v", err)
	}
}

func TestValidate_OnFailureWithDependencies(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "lint", Type: "command"},
		},
		OnFailure: &domain.StepDef{
			ID:        "notify",
			Type:      "http",
			DependsOn: []string{"lint"},
		},
	}

	err := Validate(spec)
	if err == nil {
		t.Fatal("expected error for on_failure with depends_on, got nil")
	}
}

func TestValidate_ValidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec *domain.PipelineSpec
	}{
		{
			name: "single step",
			spec: &domain.PipelineSpec{
				Steps: []domain.StepDef{
					{ID: "lint", Type: "command"},
				},
			},
		},
		{
			name: "lint and build chain",
			spec: &domain.PipelineSpec{
				Image: &domain.ImageDef{
					Repository: "buntha/pybalance",
					Tags:       map[string]string{"main": "latest"},
				},
				Steps: []domain.StepDef{
					{ID: "checkout", Type: "checkout"},
					{ID: "lint", Type: "command", DependsOn: []string{"checkout"}},
					{ID: "cleanup", Type: "cleanup", DependsOn: []string{"lint"}},
					{ID: "login", Type: "registry-login", DependsOn: []string{"cleanup"}},
					{ID: "build", Type: "docker-build", DependsOn: []string{"login"}},
				},
			},
		},
		{
			name: "diamond dependency",
			spec: &domain.PipelineSpec{
				Steps: []domain.StepDef{
					{ID: "A", Type: "checkout"},
					{ID: "B", Type: "command", DependsOn: []string{"A"}},
					{ID: "C", Type: "cleanup", DependsOn: []string{"A"}},
					{ID: "D", Type: "docker-build", DependsOn: []string{"B", "C"}},
				},
			},
		},
		{
			name: "with on_failure",
			spec: &domain.PipelineSpec{
				Steps: []domain.StepDef{
					{ID: "lint", Type: "command"},
				},
				OnFailure: &domain.StepDef{
					ID:   "notify",
					Type: "http",
				},
			},
		},
		{
			name: "all step types",
			spec: &domain.PipelineSpec{
				Steps: []domain.StepDef{
					{ID: "checkout_step", Type: "checkout"},
					{ID: "command_step", Type: "command"},
					{ID: "login_step", Type: "registry-login"},
					{ID: "build_step", Type: "docker-build"},
					{ID: "cleanup_step", Type: "cleanup"},
					{ID: "http_step", Type: "http"},
					{ID: "delay_step", Type: "delay"},
					{
						ID:   "parallel_step",
						Type: "parallel",
						Branches: []domain.ParallelBranch{
							{
								ID: "branch_a",
								Steps: []domain.StepDef{
									{ID: "inner_step", Type: "command"},
								},
							},
						},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_ParallelStep(t *testing.T) {
	t.Run("empty branches", func(t *testing.T) {
		spec := &domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "parallel", Type: "parallel", Branches: []domain.ParallelBranch{}},
			},
		}

		err := Validate(spec)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %T", err)
		}
		if !errors.Is(vErr.Err, ErrEmptyBranches) {
			t.Errorf("expected ErrEmptyBranches, got %v", vErr.Err)
		}
	})

	t.Run("empty branch ID", func(t *testing.T) {
		spec := &domain.PipelineSpec{
			Steps: []domain.StepDef{
				{
					ID:   "parallel",
					Type: "parallel",
					Branches: []domain.ParallelBranch{
						{ID: "", Steps: []domain.StepDef{{ID: "step", Type: "command"}}},
					},
				},
			},
		}

		err := Validate(spec)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %T", err)
		}
		if !errors.Is(vErr.Err, ErrEmptyBranchID) {
			t.Errorf("expected ErrEmptyBranchID, got %v", vErr.Err)
		}
	})

	t.Run("duplicate branch ID", func(t *testing.T) {
		spec := &domain.PipelineSpec{
			Steps: []domain.StepDef{
				{
					ID:   "parallel",
					Type: "parallel",
					Branches: []domain.ParallelBranch{
						{ID: "branch", Steps: []domain.StepDef{{ID: "step1", Type: "command"}}},
						{ID: "branch", Steps: []domain.StepDef{{ID: "step2", Type: "command"}}},
					},
				},
			},
		}

		err := Validate(spec)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %T", err)
		}
		if !errors.Is(vErr.Err, ErrDuplicateBranchID) {
			t.Errorf("expected ErrDuplicateBranchID, got %v", vErr.Err)
		}
	})

	t.Run("empty branch steps", func(t *testing.T) {
		spec := &domain.PipelineSpec{
			Steps: []domain.StepDef{
				{
					ID:   "parallel",
					Type: "parallel",
					Branches: []domain.ParallelBranch{
						{ID: "branch", Steps: []domain.StepDef{}},
					},
				},
			},
		}

		err := Validate(spec)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %T", err)
		}
		if !errors.Is(vErr.Err, ErrEmptyBranchSteps) {
			t.Errorf("expected ErrEmptyBranchSteps, got %v", vErr.Err)
		}
	})

	t.Run("valid parallel", func(t *testing.T) {
		spec := &domain.PipelineSpec{
			Steps: []domain.StepDef{
				{
					ID:   "parallel",
					Type: "parallel",
					Branches: []domain.ParallelBranch{
						{
							ID: "branch_a",
							Steps: []domain.StepDef{
								{ID: "step1", Type: "command"},
								{ID: "step2", Type: "delay"},
							},
						},
						{
							ID: "branch_b",
							Steps: []domain.StepDef{
								{ID: "step1", Type: "cleanup"},
							},
						},
					},
				},
			},
		}

		err := Validate(spec)
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestIsValidStepType(t *testing.T) {
	validTypes := []string{
		"checkout", "command", "registry-login", "docker-build",
		"cleanup", "http", "delay", "parallel",
	}
	for _, typ := range validTypes {
		if !IsValidStepType(typ) {
			t.Errorf("expected %s to be valid", typ)
		}
	}

	invalidTypes := []string{"", "unknown", "HTTP", "Checkout", "docker_build"}
	for _, typ := range invalidTypes {
		if IsValidStepType(typ) {
			t.Errorf("expected %s to be invalid", typ)
		}
	}
}

func TestGetValidStepTypes(t *testing.T) {
	types := GetValidStepTypes()
	if len(types) != 8 {
		t.Errorf("expected 8 types, got %d", len(types))
	}

	expected := map[string]bool{
		"checkout":       true,
		"command":        true,
		"registry-login": true,
		"docker-build":   true,
		"cleanup":        true,
		"http":           true,
		"delay":          true,
		"parallel":       true,
	}

	for _, typ := range types {
		if !expected[typ] {
			t.Errorf("unexpected type: %s", typ)
		}
	}
}
