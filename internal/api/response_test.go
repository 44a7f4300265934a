package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var resp DataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data == nil {
		t.Error("expected data field in envelope")
	}
}

func TestInvalidState_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	InvalidState(rec, "branch has no image tag mapping")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error.Code != ErrCodeInvalidState {
		t.Errorf("expected code INVALID_STATE, got %q", resp.Error.Code)
	}
	if resp.Error.Message == "" {
		t.Error("expected error message")
	}
}

func TestUnauthorized_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Unauthorized(rec, "invalid webhook signature")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error.Code != ErrCodeUnauthorized {
		t.Errorf("expected code UNAUTHORIZED, got %q", resp.Error.Code)
	}
}

func TestLogging_CapturesStatus(t *testing.T) {
	logger := slog.Default()

	handler := Chain(Logging(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "nope")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/builds/x", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 to pass through wrapper, got %d", rec.Code)
	}
}

func TestRecovery_Panic(t *testing.T) {
	logger := slog.Default()

	handler := Chain(Recovery(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500 after panic, got %d", rec.Code)
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		url      string
		name     string
		expected int
	}{
		{"/?limit=10", "limit", 10},
		{"/?limit=", "limit", 50},
		{"/", "limit", 50},
		{"/?limit=abc", "limit", 50},
		{"/?limit=-5", "limit", 50},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.url, nil)
		if got := queryInt(r, tt.name, 50); got != tt.expected {
			t.Errorf("queryInt(%q) = %d, expected %d", tt.url, got, tt.expected)
		}
	}
}
