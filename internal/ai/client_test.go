package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rfpmanager/internal/config"

	"github.com/stretchr/testify/require"
)

func newTestClient(url, key string) *Client {
	c := NewClient(config.AIConfig{APIKey: key, Model: "gpt-test", BaseURL: url + "/", Timeout: time.Second})
	c.retryDelay = time.Millisecond
	return c
}

func TestClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello  "}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL, "sk-test").Complete(context.Background(), []Message{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "u"},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}

func TestClientRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL, "sk-test").Complete(context.Background(), []Message{{Role: "user", Content: "u"}})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.EqualValues(t, 2, calls.Load())
}

func TestClientDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "sk-test").Complete(context.Background(), []Message{{Role: "user", Content: "u"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad key")
	require.EqualValues(t, 1, calls.Load())
}

func TestClientGivesUpOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "sk-test").Complete(context.Background(), []Message{{Role: "user", Content: "u"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "max retries")
	require.EqualValues(t, maxRetries+1, calls.Load())
}

func TestClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "sk-test").Complete(context.Background(), []Message{{Role: "user", Content: "u"}})
	require.Error(t, err)
}

func TestClientWithoutKey(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1", "").Complete(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoAPIKey)
}
