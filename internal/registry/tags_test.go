package registry

import (
	"errors"
	"testing"
)

func TestTagPolicyResolve(t *testing.T) {
	policy := NewTagPolicy(nil)

	tests := []struct {
		branch  string
		wantTag string
		wantErr error
	}{
		{branch: "main", wantTag: "latest"},
		{branch: "dev", wantTag: "dev"},
		{branch: "test", wantTag: "testing"},
		{branch: "feature/x", wantErr: ErrUnmappedBranch},
		{branch: "master", wantErr: ErrUnmappedBranch},
		{branch: "", wantErr: ErrUnmappedBranch},
	}

	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			tag, err := policy.Resolve(tt.branch)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve(%q) error = %v, want %v", tt.branch, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) unexpected error: %v", tt.branch, err)
			}
			if tag != tt.wantTag {
				t.Errorf("Resolve(%q) = %q, want %q", tt.branch, tag, tt.wantTag)
			}
		})
	}
}

func TestTagPolicyCustomMapping(t *testing.T) {
	policy := NewTagPolicy(map[string]string{
		"release": "stable",
	})

	tag, err := policy.Resolve("release")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag != "stable" {
		t.Errorf("Resolve(release) = %q, want stable", tag)
	}

	// Кастомный маппинг полностью заменяет дефолтный.
	if _, err := policy.Resolve("main"); !errors.Is(err, ErrUnmappedBranch) {
		t.Errorf("Resolve(main) error = %v, want ErrUnmappedBranch", err)
	}
}

func TestImageRef(t *testing.T) {
	got := ImageRef("buntha/pybalance", "latest")
	if got != "buntha/pybalance:latest" {
		t.Errorf("ImageRef = %q, want buntha/pybalance:latest", got)
	}
}
