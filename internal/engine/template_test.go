package engine

import (
	"strings"
	"testing"
)

func TestNewContext(t *testing.T) {
	// С nil inputs
	ctx := NewContext(nil)
	if ctx.Inputs == nil {
		t.Error("Inputs should not be nil")
	}
	if ctx.Steps == nil {
		t.Error("Steps should not be nil")
	}

	// С inputs
	inputs := map[string]any{"branch": "main"}
	ctx = NewContext(inputs)
	if ctx.Inputs["branch"] != "main" {
		t.Error("Inputs should contain provided values")
	}
}

func TestContext_AddStepResult(t *testing.T) {
	ctx := NewContext(nil)

	outputs := map[string]any{"digest": "sha256:abc"}
	ctx.AddStepResult("build", outputs, "SUCCEEDED")

	if ctx.Steps["build"] == nil {
		t.Fatal("build should be in Steps")
	}
	if ctx.Steps["build"].Status != "SUCCEEDED" {
		t.Error("status should be SUCCEEDED")
	}
	if ctx.Steps["build"].Outputs["digest"] != "sha256:abc" {
		t.Error("outputs should contain digest")
	}

	// С nil outputs
	ctx.AddStepResult("lint", nil, "FAILED")
	if ctx.Steps["lint"].Outputs == nil {
		t.Error("Outputs should not be nil even when passed nil")
	}
}

func TestRender_SimpleInput(t *testing.T) {
	ctx := NewContext(map[string]any{
		"branch":    "main",
		"image_tag": "latest",
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "branch input",
			template: "building branch {{ .Inputs.branch }}",
			expected: "building branch main",
		},
		{
			name:     "image tag",
			template: "buntha/pybalance:{{ .Inputs.image_tag }}",
			expected: "buntha/pybalance:latest",
		},
		{
			name:     "no template",
			template: "black --check .",
			expected: "black --check .",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_StepOutput(t *testing.T) {
	ctx := NewContext(nil)
	ctx.AddStepResult("checkout", map[string]any{
		"commit":   "abc123",
		"workdir":  "/var/lib/pbci/builds/1",
		"metadata": map[string]any{"files": 42},
	}, "SUCCEEDED")

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "step status",
			template: "{{ .Steps.checkout.Status }}",
			expected: "SUCCEEDED",
		},
		{
			name:     "step output",
			template: "{{ .Steps.checkout.Outputs.workdir }}",
			expected: "/var/lib/pbci/builds/1",
		},
		{
			name:     "nested access",
			template: "{{ .Steps.checkout.Outputs.metadata.files }}",
			expected: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_TemplateFunctions(t *testing.T) {
	ctx := NewContext(map[string]any{
		"branch": "Feature/New-UI",
		"tags":   []string{"latest", "dev"},
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "lower",
			template: "{{ lower .Inputs.branch }}",
			expected: "feature/new-ui",
		},
		{
			name:     "upper",
			template: "{{ upper .Inputs.branch }}",
			expected: "FEATURE/NEW-UI",
		},
		{
			name:     "contains",
			template: "{{ contains .Inputs.branch \"Feature\" }}",
			expected: "true",
		},
		{
			name:     "hasPrefix",
			template: "{{ hasPrefix .Inputs.branch \"Feature/\" }}",
			expected: "true",
		},
		{
			name:     "default with value",
			template: "{{ default \"main\" .Inputs.branch }}",
			expected: "Feature/New-UI",
		},
		{
			name:     "default with nil",
			template: "{{ default \"main\" .Inputs.missing }}",
			expected: "main",
		},
		{
			name:     "json",
			template: `{{ json .Inputs.tags }}`,
			expected: `["latest","dev"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	ctx := NewContext(nil)

	// Некорректный синтаксис
	_, err := Render("{{ .Invalid syntax", ctx)
	if err == nil {
		t.Error("expected error for invalid template")
	}
	if !strings.Contains(err.Error(), "template parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestRenderValue(t *testing.T) {
	ctx := NewContext(map[string]any{"branch": "dev"})

	tests := []struct {
		name     string
		value    any
		expected any
	}{
		{
			name:     "nil",
			value:    nil,
			expected: nil,
		},
		{
			name:     "string without template",
			value:    "plain",
			expected: "plain",
		},
		{
			name:     "string with template",
			value:    "branch: {{ .Inputs.branch }}",
			expected: "branch: dev",
		},
		{
			name:     "int",
			value:    42,
			expected: 42,
		},
		{
			name:     "bool",
			value:    true,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderValue(tt.value, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestRenderConfig(t *testing.T) {
	ctx := NewContext(map[string]any{
		"image_tag": "latest",
		"commit":    "abc123",
	})

	config := map[string]any{
		"dockerfile": "environments/Dockerfile",
		"repository": "buntha/pybalance",
		"tag":        "{{ .Inputs.image_tag }}",
		"labels": map[string]any{
			"commit": "{{ .Inputs.commit }}",
		},
	}

	result, err := RenderConfig(config, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result["tag"] != "latest" {
		t.Errorf("expected rendered tag, got %v", result["tag"])
	}

	labels, ok := result["labels"].(map[string]any)
	if !ok {
		t.Fatal("expected labels to be map")
	}
	if labels["commit"] != "abc123" {
		t.Errorf("expected rendered commit label, got %v", labels["commit"])
	}
}

func TestRenderConfig_Nil(t *testing.T) {
	ctx := NewContext(nil)

	result, err := RenderConfig(nil, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Error("result should not be nil")
	}
	if len(result) != 0 {
		t.Error("result should be empty")
	}
}

func TestRenderCondition(t *testing.T) {
	ctx := NewContext(map[string]any{
		"branch": "main",
		"push":   true,
	})
	ctx.AddStepResult("lint", map[string]any{
		"passed": true,
	}, "SUCCEEDED")

	tests := []struct {
		name      string
		condition string
		expected  bool
	}{
		{
			name:      "empty condition",
			condition: "",
			expected:  true,
		},
		{
			name:      "bool input",
			condition: ".Inputs.push",
			expected:  true,
		},
		{
			name:      "branch match",
			condition: `eq .Inputs.branch "main"`,
			expected:  true,
		},
		{
			name:      "branch mismatch",
			condition: `eq .Inputs.branch "dev"`,
			expected:  false,
		},
		{
			name:      "step output",
			condition: ".Steps.lint.Outputs.passed",
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderCondition(tt.condition, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
