package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corrmetrics "proctor/internal/correlation/metrics"
	"proctor/internal/correlation/service"
	"proctor/internal/correlation/store"
	jwttoken "proctor/internal/jwt_token"
	"proctor/internal/platform/metrics"
	"proctor/pkg/testutil"
)

func newTestRouter(t *testing.T, checks map[string]healthCheck) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fixture, err := store.LoadFixtureFile("../../internal/correlation/store/testdata/seed.yaml")
	require.NoError(t, err)
	mem := store.NewInMemory()
	store.Seed(mem, fixture)

	svc := service.New(mem, mem, mem, mem,
		service.WithSnapshot(mem),
		service.WithCache(store.NewMemoryCache(time.Minute)),
		service.WithLogger(logger),
		service.WithMetrics(corrmetrics.NewWith(prometheus.NewRegistry())),
	)
	jwtService := jwttoken.NewJWTService("test-key", "proctor", "proctor-admin")
	return newRouter(routerDeps{
		service:   svc,
		validator: jwttoken.NewJWTServiceAdapter(jwtService),
		adminRole: "admin",
		metrics:   metrics.NewWith(prometheus.NewRegistry()),
		checks:    checks,
		logger:    logger,
	}), jwtService
}

func TestRouter_SessionDetail(t *testing.T) {
	router, jwtService := newTestRouter(t, nil)
	token, err := jwtService.GenerateAccessToken("staff-1", []string{"admin"}, time.Minute)
	require.NoError(t, err)

	req := testutil.NewBearerRequest(t, http.MethodGet, "/admin/correlation/sessions/s-alice-cs101-retake", token)
	req.Header.Set("X-Request-ID", "req-42")
	rec := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	body := testutil.UnmarshalResponse[struct {
		ID         string `json:"id"`
		Violations []struct {
			ID string `json:"id"`
		} `json:"violations"`
		Summary struct {
			ViolationCount int `json:"violation_count"`
		} `json:"summary"`
	}](t, rec)
	assert.Equal(t, "s-alice-cs101-retake", body.ID)
	assert.Equal(t, 2, body.Summary.ViolationCount)
	require.Len(t, body.Violations, 2)
	assert.Equal(t, "v3", body.Violations[0].ID, "most recent first")
}

func TestRouter_RequiresAdmin(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rec := testutil.DoRequest(router, testutil.NewBearerRequest(t, http.MethodGet, "/admin/correlation", ""))
	testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
}

func TestRouter_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, _ := newTestRouter(t, map[string]healthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","postgres":"ok"}`, rec.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		router, _ := newTestRouter(t, map[string]healthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"degraded","redis":"unavailable"}`, rec.Body.String())
	})
}
