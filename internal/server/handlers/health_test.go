package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"

	"researchplane/internal/jobs"
	"researchplane/internal/registry"
)

func TestHealthz(t *testing.T) {
	d := newTestHandlers(t)

	rec := doJSON(t, d.h.Healthz, "GET", "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	d := newTestHandlers(t)

	rec := doJSON(t, d.h.Readyz, "GET", "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_DirtyRegistry(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	// A registry whose file sits in a missing directory cannot persist,
	// so the first mutation leaves it dirty.
	reg, err := registry.Load(filepath.Join(t.TempDir(), "missing-dir", "registry.json"), logger)
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}
	reg.RegisterSession("job-1", "q")

	h := New(jobs.New(newFakeJobStore(), logger), reg, newFakePendingStore(),
		&fakeDispatcher{}, &fakePinger{}, logger)

	rec := doJSON(t, h.Readyz, "GET", "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestReadyz_DatabaseDown(t *testing.T) {
	d := newTestHandlers(t)
	d.pinger.err = errors.New("connection refused")

	rec := doJSON(t, d.h.Readyz, "GET", "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
