package energyapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HerbHall/solarwatch/pkg/energy"
)

func newTestClient(t *testing.T, srv *httptest.Server, token string) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:      srv.URL + "/api",
		Token:        token,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		HTTPClient:   srv.Client(),
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return c
}

func TestWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/energy-generation-records/solar-unit/unit 7", r.URL.Path)
		assert.Equal(t, "date", r.URL.Query().Get("groupBy"))
		assert.Equal(t, "7", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "solarwatch/"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"_id": {"date": "2024-01-02"}, "totalEnergy": 34.8},
			{"_id": {"date": "2024-01-01T00:00:00.000Z"}, "totalEnergy": 35.2}
		]`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, "secret").Window(context.Background(), "unit 7", 7)
	require.NoError(t, err)

	want := []energy.Record{
		{Date: "2024-01-02", TotalEnergy: 34.8},
		{Date: "2024-01-01", TotalEnergy: 35.2},
	}
	assert.Equal(t, want, got)
}

func TestWindow_NoTokenNoAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, "").Window(context.Background(), "u1", 7)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWindow_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"_id": {"date": "2024-01-01"}, "totalEnergy": 1}]`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, "").Window(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWindow_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "").Window(context.Background(), "u1", 1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "slow down", apiErr.Message)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWindow_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "no such unit", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "").Window(context.Background(), "u1", 1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.IsRetryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestWindow_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>`},
		{name: "object instead of list", body: `{"records": []}`},
		{name: "missing energy", body: `[{"_id": {"date": "2024-01-01"}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv, "").Window(context.Background(), "u1", 1)
			require.Error(t, err)
			var apiErr *APIError
			assert.False(t, errors.As(err, &apiErr), "decode errors are not API errors")
		})
	}
}

func TestWindow_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, MaxRetries: 5, RetryBackoff: time.Hour, HTTPClient: srv.Client()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Window(ctx, "u1", 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_Validation(t *testing.T) {
	for _, base := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := New(Options{BaseURL: base}); err == nil {
			t.Errorf("New(%q) succeeded", base)
		}
	}
}

func TestAPIError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &APIError{Endpoint: "http://x", Message: "request failed", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.True(t, err.IsRetryable())
	assert.Contains(t, err.Error(), "connection refused")

	for code, want := range map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true, 400: false, 401: false, 404: false} {
		e := &APIError{StatusCode: code}
		if e.IsRetryable() != want {
			t.Errorf("IsRetryable(%d) = %v, want %v", code, !want, want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2024-01-02":                "2024-01-02",
		"2024-01-02T00:00:00Z":      "2024-01-02",
		"2024-01-02T00:00:00+05:00": "2024-01-02",
		"2024-01-02T23:30:00-08:00": "2024-01-02",
		"not a date":                "not a date",
	}
	for in, want := range tests {
		if got := normalizeDate(in); got != want {
			t.Errorf("normalizeDate(%q) = %q, want %q", in, got, want)
		}
	}
}
