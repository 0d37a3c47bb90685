package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ClaimLens/internal/application/annotation"
	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/pkg/errors"
	"github.com/turtacn/ClaimLens/pkg/types/common"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Annotate(ctx context.Context, in annotation.Input) (*annotation.Result, error) {
	args := m.Called(ctx, in)
	if r := args.Get(0); r != nil {
		return r.(*annotation.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) AnnotateSet(ctx context.Context, in annotation.SetInput) (*annotation.SetResult, error) {
	args := m.Called(ctx, in)
	if r := args.Get(0); r != nil {
		return r.(*annotation.SetResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) Get(ctx context.Context, id uuid.UUID) (*claim.Record, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*claim.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) View(ctx context.Context, id uuid.UUID) (*claim.View, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*claim.View), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) SearchPhrase(ctx context.Context, phrase string, limit int) ([]claim.SearchHit, error) {
	args := m.Called(ctx, phrase, limit)
	hits, _ := args.Get(0).([]claim.SearchHit)
	return hits, args.Error(1)
}

func (m *MockService) Mentioning(ctx context.Context, phrase string, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, phrase, limit)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

func (m *MockService) Dependents(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, id)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

func newTestRouter(svc annotation.Service, maxBody int64) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", NewClaimHandler(svc, nil, maxBody).RegisterRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope[T any](t *testing.T, rec *httptest.ResponseRecorder) common.APIResponse[T] {
	t.Helper()
	var resp common.APIResponse[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func sampleRecord() *claim.Record {
	n := 1
	return &claim.Record{
		ID:       uuid.New(),
		Number:   &n,
		Category: claim.CategoryMethod,
		Text:     "A method of heating water, comprising: boiling the water.",
	}
}

func TestClaimHandler_Annotate(t *testing.T) {
	svc := new(MockService)
	rec := sampleRecord()
	svc.On("Annotate", mock.Anything, annotation.Input{Text: "1. A method.", Source: "cli"}).
		Return(&annotation.Result{Record: rec}, nil).Once()

	resp := do(t, newTestRouter(svc, 0), http.MethodPost, "/api/v1/claims/annotate",
		`{"text":"1. A method.","source":"cli"}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	body := decodeEnvelope[annotation.Result](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, rec.ID, body.Data.Record.ID)
	svc.AssertExpectations(t)
}

func TestClaimHandler_Annotate_CachedIsOK(t *testing.T) {
	svc := new(MockService)
	svc.On("Annotate", mock.Anything, mock.Anything).
		Return(&annotation.Result{Record: sampleRecord(), Cached: true}, nil)

	resp := do(t, newTestRouter(svc, 0), http.MethodPost, "/api/v1/claims/annotate", `{"text":"x"}`)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestClaimHandler_Annotate_Overrides(t *testing.T) {
	svc := new(MockService)
	svc.On("Annotate", mock.Anything, mock.MatchedBy(func(in annotation.Input) bool {
		return in.Number != nil && *in.Number == 7 && in.Dependency != nil && *in.Dependency == 3
	})).Return(&annotation.Result{Record: sampleRecord()}, nil).Once()

	resp := do(t, newTestRouter(svc, 0), http.MethodPost, "/api/v1/claims/annotate",
		`{"text":"The method of claim 3.","number":7,"dependency":3}`)
	assert.Equal(t, http.StatusCreated, resp.Code)
	svc.AssertExpectations(t)
}

func TestClaimHandler_Annotate_BadBodies(t *testing.T) {
	svc := new(MockService)
	h := newTestRouter(svc, 32)

	cases := map[string]string{
		"malformed":     `{"text":`,
		"unknown field": `{"txt":"x"}`,
		"too large":     `{"text":"` + strings.Repeat("a", 64) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := do(t, h, http.MethodPost, "/api/v1/claims/annotate", body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			env := decodeEnvelope[any](t, resp)
			assert.False(t, env.Success)
			assert.Equal(t, errors.ErrCodeBadRequest.String(), env.Error.Code)
		})
	}

	resp := do(t, h, http.MethodPost, "/api/v1/claims/annotate", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	svc.AssertNotCalled(t, "Annotate", mock.Anything, mock.Anything)
}

func TestClaimHandler_Annotate_ServiceErrors(t *testing.T) {
	svc := new(MockService)
	svc.On("Annotate", mock.Anything, annotation.Input{Text: " "}).Return(nil, annotation.ErrEmptyText)
	svc.On("Annotate", mock.Anything, annotation.Input{Text: "boom"}).
		Return(nil, errors.Wrap(assert.AnError, errors.ErrCodeDatabaseError, "insert claim"))
	h := newTestRouter(svc, 0)

	resp := do(t, h, http.MethodPost, "/api/v1/claims/annotate", `{"text":" "}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	env := decodeEnvelope[any](t, resp)
	assert.Equal(t, errors.ErrCodeClaimTextEmpty.String(), env.Error.Code)
	assert.Equal(t, "claim text is empty", env.Error.Message)

	resp = do(t, h, http.MethodPost, "/api/v1/claims/annotate", `{"text":"boom"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	env = decodeEnvelope[any](t, resp)
	assert.Equal(t, errors.ErrCodeDatabaseError.String(), env.Error.Code)
	assert.NotContains(t, resp.Body.String(), assert.AnError.Error())
}

func TestClaimHandler_AnnotateSet(t *testing.T) {
	svc := new(MockService)
	setID := uuid.New()
	svc.On("AnnotateSet", mock.Anything, annotation.SetInput{Claims: []string{"1. A.", "2. B of claim 1."}}).
		Return(&annotation.SetResult{SetID: setID, Links: 1}, nil).Once()

	resp := do(t, newTestRouter(svc, 0), http.MethodPost, "/api/v1/claimsets/annotate",
		`{"claims":["1. A.","2. B of claim 1."]}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	body := decodeEnvelope[annotation.SetResult](t, resp)
	assert.Equal(t, setID, body.Data.SetID)
	assert.Equal(t, 1, body.Data.Links)
}

func TestClaimHandler_Get(t *testing.T) {
	svc := new(MockService)
	rec := sampleRecord()
	missing := uuid.New()
	svc.On("Get", mock.Anything, rec.ID).Return(rec, nil)
	svc.On("Get", mock.Anything, missing).Return(nil, errors.New(errors.ErrCodeClaimNotFound, "claim not found"))
	h := newTestRouter(svc, 0)

	resp := do(t, h, http.MethodGet, "/api/v1/claims/"+rec.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeEnvelope[claim.Record](t, resp)
	assert.Equal(t, rec.Text, body.Data.Text)

	resp = do(t, h, http.MethodGet, "/api/v1/claims/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(t, h, http.MethodGet, "/api/v1/claims/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestClaimHandler_View(t *testing.T) {
	svc := new(MockService)
	id := uuid.New()
	view := &claim.View{Claim: claim.ViewBody{Words: []claim.WordRecord{{ID: 0, Word: "A", POS: "DT", NP: 1}}}}
	svc.On("View", mock.Anything, id).Return(view, nil)

	resp := do(t, newTestRouter(svc, 0), http.MethodGet, "/api/v1/claims/"+id.String()+"/view", "")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeEnvelope[claim.View](t, resp)
	require.Len(t, body.Data.Claim.Words, 1)
	assert.Equal(t, "DT", body.Data.Claim.Words[0].POS)
}

func TestClaimHandler_Search(t *testing.T) {
	svc := new(MockService)
	hits := []claim.SearchHit{{ID: uuid.New(), Text: "a heating element", Score: 2.5}}
	svc.On("SearchPhrase", mock.Anything, "heating element", 5).Return(hits, nil).Once()
	svc.On("SearchPhrase", mock.Anything, "water", maxLimit).Return([]claim.SearchHit{}, nil).Once()
	h := newTestRouter(svc, 0)

	resp := do(t, h, http.MethodGet, "/api/v1/claims/search?q=heating+element&limit=5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeEnvelope[[]claim.SearchHit](t, resp)
	require.Len(t, body.Data, 1)
	assert.Equal(t, 2.5, body.Data[0].Score)

	resp = do(t, h, http.MethodGet, "/api/v1/claims/search?q=water&limit=100000", "")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = do(t, h, http.MethodGet, "/api/v1/claims/search", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	svc.AssertExpectations(t)
}

func TestClaimHandler_Search_Disabled(t *testing.T) {
	svc := new(MockService)
	svc.On("SearchPhrase", mock.Anything, "x", defaultLimit).Return(nil, annotation.ErrSearchDisabled)

	resp := do(t, newTestRouter(svc, 0), http.MethodGet, "/api/v1/claims/search?q=x", "")
	assert.Equal(t, http.StatusNotImplemented, resp.Code)
}

func TestClaimHandler_GraphQueries(t *testing.T) {
	svc := new(MockService)
	id, dep := uuid.New(), uuid.New()
	svc.On("Dependents", mock.Anything, id).Return([]uuid.UUID{dep}, nil)
	svc.On("Mentioning", mock.Anything, "the water", defaultLimit).Return([]uuid.UUID{id}, nil)
	h := newTestRouter(svc, 0)

	resp := do(t, h, http.MethodGet, "/api/v1/claims/"+id.String()+"/dependents", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []uuid.UUID{dep}, decodeEnvelope[[]uuid.UUID](t, resp).Data)

	resp = do(t, h, http.MethodGet, "/api/v1/claims/mentioning?np=the+water", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []uuid.UUID{id}, decodeEnvelope[[]uuid.UUID](t, resp).Data)

	resp = do(t, h, http.MethodGet, "/api/v1/claims/mentioning", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int{
		"":            defaultLimit,
		"?limit=7":    7,
		"?limit=0":    defaultLimit,
		"?limit=-3":   defaultLimit,
		"?limit=abc":  defaultLimit,
		"?limit=9999": maxLimit,
	}
	for q, want := range cases {
		assert.Equal(t, want, parseLimit(httptest.NewRequest(http.MethodGet, "/"+q, nil)), q)
	}
}
