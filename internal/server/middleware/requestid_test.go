package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"researchplane/internal/logger"
)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/jobs", nil))

	if seen == "" {
		t.Error("expected a generated request ID in the context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("response header should echo the request ID")
	}
}

func TestRequestID_HonorsIncomingHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/jobs", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "caller-supplied" {
		t.Errorf("got %q, want caller-supplied", seen)
	}
}
