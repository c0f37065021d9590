package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNotReady(t *testing.T) {
	s := New(0)
	h := s.Handler()
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)
}

func TestReadyWithChecks(t *testing.T) {
	s := New(0)
	s.SetReady(true)
	s.AddCheck("backend", func(context.Context) error { return nil })
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)

	s.AddCheck("history", func(context.Context) error { return errors.New("database is locked") })
	rec := get(t, h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code, "liveness ignores dependency checks")
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(0)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/metrics").Code)

	s.SetMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("narrator_requests_total 1\n"))
	}))
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "narrator_requests_total")
}
