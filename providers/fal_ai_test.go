package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFal(t *testing.T, handler http.Handler, useQueue bool) *FalAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewFalAIProvider("test-key")
	p.Client = srv.Client()
	p.RunURL = srv.URL + "/run"
	p.QueueURL = srv.URL + "/queue"
	p.UseQueue = useQueue
	p.PollInterval = time.Millisecond
	return p
}

func TestFalRunSync(t *testing.T) {
	var gotInput map[string]any
	p := newTestFal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/run/fal-ai/flux/dev", r.URL.Path)
		assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInput))

		w.Header().Set("x-fal-request-id", "req-sync")
		fmt.Fprint(w, `{"images":[{"url":"https://cdn/x.jpg","width":1024,"height":768,"content_type":"image/jpeg"}],"seed":42}`)
	}), false)

	out, err := p.Submit(context.Background(), "fal-ai/flux/dev", map[string]any{"prompt": "a cat"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a cat", gotInput["prompt"])
	assert.Equal(t, "req-sync", out.RequestID)
	assert.Equal(t, int64(42), out.Seed)

	img, err := out.First()
	require.NoError(t, err)
	assert.Equal(t, Image{URL: "https://cdn/x.jpg", Width: 1024, Height: 768, ContentType: "image/jpeg"}, img)
}

func TestFalQueueFlowReportsLogs(t *testing.T) {
	var mu sync.Mutex
	polls := 0

	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/queue/fal-ai/flux/dev", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprintf(w, `{"request_id":"req-1","status_url":"%s/status/req-1","response_url":"%s/result/req-1"}`, base, base)
	})
	mux.HandleFunc("/status/req-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("logs"))
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		switch n {
		case 1:
			fmt.Fprint(w, `{"status":"IN_QUEUE","queue_position":2}`)
		case 2:
			fmt.Fprint(w, `{"status":"IN_PROGRESS","logs":[{"message":"loading"}]}`)
		default:
			fmt.Fprint(w, `{"status":"COMPLETED","logs":[{"message":"loading"},{"message":"done"}]}`)
		}
	})
	mux.HandleFunc("/result/req-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"images":[{"url":"https://cdn/q.jpg","width":512,"height":512}],"seed":7}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	base = srv.URL

	p := NewFalAIProvider("k")
	p.Client = srv.Client()
	p.QueueURL = srv.URL + "/queue"
	p.PollInterval = time.Millisecond

	var updates []QueueUpdate
	out, err := p.Submit(context.Background(), "fal-ai/flux/dev", map[string]any{"prompt": "x"}, func(u QueueUpdate) {
		updates = append(updates, u)
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", out.RequestID)
	assert.Equal(t, int64(7), out.Seed)

	require.Len(t, updates, 4)
	assert.Equal(t, StatusInQueue, updates[0].Status)
	assert.Equal(t, 2, updates[1].Position)
	assert.Equal(t, []LogLine{{Message: "loading"}}, updates[2].Logs)
	assert.Equal(t, StatusCompleted, updates[3].Status)
	assert.Equal(t, []LogLine{{Message: "done"}}, updates[3].Logs)
}

func TestFalQueueResultError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/queue/fal-ai/flux/dev", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"request_id":"req-2"}`)
	})
	mux.HandleFunc("/queue/fal-ai/flux/dev/requests/req-2/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"COMPLETED"}`)
	})
	mux.HandleFunc("/queue/fal-ai/flux/dev/requests/req-2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail":[{"msg":"prompt too long"},{"msg":"bad ratio"}]}`)
	})
	p := newTestFal(t, mux, true)

	_, err := p.Submit(context.Background(), "fal-ai/flux/dev", map[string]any{"prompt": "x"}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.StatusCode)
	assert.Equal(t, "prompt too long; bad ratio", apiErr.Message)
	assert.Equal(t, "fal_ai", apiErr.Provider)
}

func TestFalSubmitErrorIsNotRetried(t *testing.T) {
	calls := 0
	p := newTestFal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"detail":"overloaded"}`)
	}), false)

	_, err := p.Submit(context.Background(), "fal-ai/flux/dev", map[string]any{"prompt": "x"}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "overloaded", apiErr.Message)
	assert.Equal(t, 1, calls)
}

func TestFalEmptyImagesIsNotSuccess(t *testing.T) {
	p := newTestFal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"images":[],"seed":1}`)
	}), false)

	out, err := p.Submit(context.Background(), "fal-ai/flux/dev", map[string]any{"prompt": "x"}, nil)
	require.NoError(t, err)
	_, err = out.First()
	assert.True(t, IsEmptyResult(err))
}

func TestFalPollingHonorsContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/queue/fal-ai/flux/dev", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"request_id":"req-3"}`)
	})
	mux.HandleFunc("/queue/fal-ai/flux/dev/requests/req-3/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"IN_QUEUE","queue_position":9}`)
	})
	p := newTestFal(t, mux, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := p.Submit(ctx, "fal-ai/flux/dev", map[string]any{"prompt": "x"}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://queue.fal.run/fal-ai/flux/dev/requests/abc", joinURL("https://queue.fal.run/", "/fal-ai/flux/dev", "requests", "abc"))
}
