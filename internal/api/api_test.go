package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "bot", r.Header.Get("User-Agent"))
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["text"]})
	}))
	defer srv.Close()

	c := NewClient(WithHeader("User-Agent", "bot"), WithLogging(true))
	resp, err := c.POST(context.Background(), srv.URL, map[string]string{"text": "hi"})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, resp.ParseJSON(&out))
	assert.Equal(t, "hi", out["echo"])
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient().POST(context.Background(), srv.URL, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestPostWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	_, err := NewClient().PostWithRetry(context.Background(), srv.URL, map[string]int{"a": 1}, cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostWithRetryStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient().PostWithRetry(context.Background(), srv.URL, nil, RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoWithRetryGet(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.Header.Get("Content-Type"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("a,b\n"))
	}))
	defer srv.Close()

	cfg := DefaultRetryConfig()
	cfg.InitialWait = time.Millisecond
	resp, err := NewClient().DoWithRetry(context.Background(), http.MethodGet, srv.URL, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(resp.Body))
	assert.Equal(t, int32(2), calls.Load())
}
