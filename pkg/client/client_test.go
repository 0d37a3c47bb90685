package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ClaimLens/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	c, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

func writeErrorEnvelope(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    false,
		"error":      map[string]string{"code": code, "message": message},
		"request_id": "server-req",
	})
}

type testLogger struct {
	count int32
}

func (l *testLogger) Debugf(string, ...interface{}) { atomic.AddInt32(&l.count, 1) }
func (l *testLogger) Infof(string, ...interface{})  { atomic.AddInt32(&l.count, 1) }
func (l *testLogger) Errorf(string, ...interface{}) { atomic.AddInt32(&l.count, 1) }

// ─────────────────────────────────────────────────────────────────────────────
// Constructor
// ─────────────────────────────────────────────────────────────────────────────

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Equal(t, 3, c.retryMax)
	assert.Equal(t, "claimlens-go-sdk/"+Version, c.userAgent)
	assert.Same(t, c.Claims(), c.Claims())
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "ftp://host", "not a url", "://bad"} {
		_, err := NewClient(u)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, u)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transport behavior
// ─────────────────────────────────────────────────────────────────────────────

func TestClient_Headers(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeEnvelope(w, http.StatusOK, nil)
	}, WithAPIKey("secret"), WithUserAgent("cli/1"))

	require.NoError(t, c.post(context.Background(), "x", map[string]string{"a": "b"}, nil))
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "cli/1", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	ids := make(chan string, 4)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get("X-Request-ID")
		if atomic.AddInt32(&calls, 1) < 3 {
			writeErrorEnvelope(w, http.StatusBadGateway, "INFRA_001", "search backend error")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]int{"n": 7})
	})

	var out struct{ N int }
	require.NoError(t, c.get(context.Background(), "/x", &out))
	assert.Equal(t, 7, out.N)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	first := <-ids
	assert.Equal(t, first, <-ids)
	assert.Equal(t, first, <-ids)
}

func TestClient_GivesUpAfterRetryMax(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeErrorEnvelope(w, http.StatusInternalServerError, "COMMON_001", "internal server error")
	}, WithRetryMax(2))

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, "COMMON_001", apiErr.Code)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeErrorEnvelope(w, http.StatusBadRequest, "CLAIM_001", "claim text is empty")
	})

	err := c.post(context.Background(), "/x", struct{}{}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsBadRequest())
	assert.Equal(t, "claim text is empty", apiErr.Message)
	assert.Equal(t, "server-req", apiErr.RequestID)
	assert.Contains(t, apiErr.Error(), "CLAIM_001")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_RateLimitedHonorsRetryAfter(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			writeErrorEnvelope(w, http.StatusTooManyRequests, "COMMON_007", "too many requests")
			return
		}
		writeEnvelope(w, http.StatusOK, nil)
	})

	start := time.Now()
	require.NoError(t, c.get(context.Background(), "/x", nil))
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_RateLimitedWithoutRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeErrorEnvelope(w, http.StatusTooManyRequests, "COMMON_007", "too many requests")
	})
	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimited())
}

func TestClient_NonEnvelopeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway says no", http.StatusNotFound)
	})
	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "gateway says no", apiErr.Message)
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeErrorEnvelope(w, http.StatusServiceUnavailable, "COMMON_008", "service unavailable")
	}, WithRetryWait(time.Second, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.get(ctx, "/x", nil), context.DeadlineExceeded)
}

func TestClient_TransportErrorRetried(t *testing.T) {
	logger := &testLogger{}
	c, err := NewClient("http://127.0.0.1:1", WithRetryMax(1),
		WithRetryWait(time.Millisecond, time.Millisecond), WithLogger(logger))
	require.NoError(t, err)

	assert.Error(t, c.get(context.Background(), "/x", nil))
	assert.Greater(t, atomic.LoadInt32(&logger.count), int32(1))
}

func TestCalculateBackoff(t *testing.T) {
	c := &Client{retryWaitMin: 100 * time.Millisecond, retryWaitMax: 300 * time.Millisecond}
	for attempt, base := range map[int]time.Duration{1: 100, 2: 200, 3: 300, 6: 300} {
		got := c.calculateBackoff(attempt)
		base *= time.Millisecond
		assert.GreaterOrEqual(t, got, base, fmt.Sprint(attempt))
		assert.Less(t, got, base+base/4+1, fmt.Sprint(attempt))
	}
}

func TestAPIError_Error(t *testing.T) {
	e := &APIError{StatusCode: 400, Code: "CLAIM_002", Message: "invalid override", Detail: "dependency -1", RequestID: "r1"}
	assert.Equal(t, "claimlens: CLAIM_002 (HTTP 400): invalid override: dependency -1 [request_id=r1]", e.Error())
	assert.False(t, errors.IsNotFound(e))
}
