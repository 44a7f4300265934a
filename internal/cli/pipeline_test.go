package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestReadSpecFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")

	content := `
name: pybalance
trigger:
  branches: [main, dev, test]
image:
  repository: buntha/pybalance
  tags:
    main: latest
    dev: dev
    test: testing
steps:
  - id: lint
    type: command
    config:
      command: black --check .
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write spec file: %v", err)
	}

	raw, err := readSpecFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var spec map[string]any
	if err := json.Unmarshal(raw, &spec); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}

	if spec["name"] != "pybalance" {
		t.Errorf("expected name pybalance, got %v", spec["name"])
	}

	image, ok := spec["image"].(map[string]any)
	if !ok {
		t.Fatalf("expected image section, got %T", spec["image"])
	}
	if image["repository"] != "buntha/pybalance" {
		t.Errorf("expected repository buntha/pybalance, got %v", image["repository"])
	}

	tags, ok := image["tags"].(map[string]any)
	if !ok {
		t.Fatalf("expected tags map, got %T", image["tags"])
	}
	if tags["main"] != "latest" {
		t.Errorf("expected main → latest, got %v", tags["main"])
	}
}

func TestReadSpecFile_Missing(t *testing.T) {
	if _, err := readSpecFile("/nonexistent/pipeline.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadSpecFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")

	if err := os.WriteFile(path, []byte("{not: valid: yaml:"), 0o644); err != nil {
		t.Fatalf("write spec file: %v", err)
	}

	if _, err := readSpecFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
