package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"pipeline":"pybalance","ref":"refs/heads/main","commit":"abc123"}`)
	header := sign("secret", body)

	if !verifySignature("secret", body, header) {
		t.Error("expected valid signature to verify")
	}
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"pipeline":"pybalance"}`)
	header := sign("other-secret", body)

	if verifySignature("secret", body, header) {
		t.Error("expected signature with wrong secret to fail")
	}
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	body := []byte(`{"pipeline":"pybalance"}`)
	header := sign("secret", body)

	tampered := []byte(`{"pipeline":"evil"}`)
	if verifySignature("secret", tampered, header) {
		t.Error("expected signature over tampered body to fail")
	}
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	body := []byte(`{}`)

	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no prefix", "deadbeef"},
		{"wrong algo", "sha1=deadbeef"},
		{"not hex", "sha256=not-hex-at-all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if verifySignature("secret", body, tt.header) {
				t.Errorf("expected header %q to fail verification", tt.header)
			}
		})
	}
}

func TestBranchFromRef(t *testing.T) {
	tests := []struct {
		ref    string
		branch string
		ok     bool
	}{
		{"refs/heads/main", "main", true},
		{"refs/heads/dev", "dev", true},
		{"refs/heads/feature/login", "feature/login", true},
		{"refs/tags/v1.0.0", "", false},
		{"refs/heads/", "", false},
		{"main", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			branch, ok := branchFromRef(tt.ref)
			if ok != tt.ok {
				t.Fatalf("branchFromRef(%q): ok = %v, expected %v", tt.ref, ok, tt.ok)
			}
			if branch != tt.branch {
				t.Errorf("branchFromRef(%q) = %q, expected %q", tt.ref, branch, tt.branch)
			}
		})
	}
}
