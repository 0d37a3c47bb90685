package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ClaimLens/internal/application/annotation"
	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/interfaces/http/handlers"
	"github.com/turtacn/ClaimLens/internal/interfaces/http/middleware"
)

// stubService answers every call with a fixed record.
type stubService struct {
	rec *claim.Record
}

func (s stubService) Annotate(context.Context, annotation.Input) (*annotation.Result, error) {
	return &annotation.Result{Record: s.rec}, nil
}

func (s stubService) AnnotateSet(context.Context, annotation.SetInput) (*annotation.SetResult, error) {
	return &annotation.SetResult{SetID: uuid.New()}, nil
}

func (s stubService) Get(context.Context, uuid.UUID) (*claim.Record, error) { return s.rec, nil }

func (s stubService) View(context.Context, uuid.UUID) (*claim.View, error) {
	v := s.rec.View()
	return &v, nil
}

func (s stubService) SearchPhrase(context.Context, string, int) ([]claim.SearchHit, error) {
	return nil, nil
}

func (s stubService) Mentioning(context.Context, string, int) ([]uuid.UUID, error) { return nil, nil }

func (s stubService) Dependents(context.Context, uuid.UUID) ([]uuid.UUID, error) { return nil, nil }

func newRouter(cfg RouterConfig) http.Handler {
	if cfg.ClaimHandler == nil {
		cfg.ClaimHandler = handlers.NewClaimHandler(stubService{rec: &claim.Record{ID: uuid.New()}}, nil, 1<<20)
	}
	if cfg.HealthHandler == nil {
		cfg.HealthHandler = handlers.NewHealthHandler("test")
	}
	return NewRouter(cfg)
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestNewRouter_HealthRoutes(t *testing.T) {
	r := newRouter(RouterConfig{})
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/readyz").Code)
}

func TestNewRouter_ClaimRoutesRegistered(t *testing.T) {
	r := newRouter(RouterConfig{})
	id := uuid.New().String()

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/claims/" + id},
		{http.MethodGet, "/api/v1/claims/" + id + "/view"},
		{http.MethodGet, "/api/v1/claims/" + id + "/dependents"},
		{http.MethodGet, "/api/v1/claims/search?q=water"},
		{http.MethodGet, "/api/v1/claims/mentioning?np=water"},
	}
	for _, rt := range routes {
		rec := serve(r, rt.method, rt.path)
		assert.Equal(t, http.StatusOK, rec.Code, "%s %s", rt.method, rt.path)
		assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
	}

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/molecules").Code)
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})

	r := newRouter(RouterConfig{MetricsHandler: metrics, MetricsPath: "/internal/metrics"})
	rec := serve(r, http.MethodGet, "/internal/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	r = newRouter(RouterConfig{})
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/metrics").Code)
}

func TestNewRouter_RateLimitOnlyOnAPI(t *testing.T) {
	r := newRouter(RouterConfig{RateLimit: middleware.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}})
	id := uuid.New().String()

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/claims/"+id).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/api/v1/claims/"+id).Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz").Code)
	}
}

func TestNewRouter_RecoversPanics(t *testing.T) {
	r := NewRouter(RouterConfig{})
	mux, ok := r.(interface {
		Get(string, http.HandlerFunc)
	})
	require.True(t, ok)
	mux.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/panic").Code)
}
