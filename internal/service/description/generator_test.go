package description

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/breaker"
)

func modelServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func reply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
			},
		},
	})
}

func newGenerator(t *testing.T, endpoint string, cacheTTL time.Duration) *Generator {
	t.Helper()
	g, err := NewGenerator(Config{
		APIKey:   "key",
		Endpoint: endpoint,
		Model:    "gemini-3-flash-preview",
		Timeout:  time.Second,
		CacheTTL: cacheTTL,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGenerate(t *testing.T) {
	srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-3-flash-preview:generateContent", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))

		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Contents[0].Parts[0].Text, `named "Desk Lamp" in the category "Furniture"`)

		reply(w, "  Light up your desk. Work longer in comfort. ")
	})

	g := newGenerator(t, srv.URL, 0)
	assert.Equal(t, "Light up your desk. Work longer in comfort.", g.Generate(context.Background(), "Desk Lamp", "Furniture"))
}

func TestGenerate_Fallbacks(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		g, err := NewGenerator(Config{Endpoint: "http://127.0.0.1:1"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, MissingKeyText, g.Generate(context.Background(), "x", "y"))
	})

	t.Run("empty response", func(t *testing.T) {
		srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		})
		assert.Equal(t, EmptyText, newGenerator(t, srv.URL, 0).Generate(context.Background(), "x", "y"))
	})

	t.Run("server error", func(t *testing.T) {
		srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		})
		assert.Equal(t, UnavailableText, newGenerator(t, srv.URL, 0).Generate(context.Background(), "x", "y"))
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})
		assert.Equal(t, UnavailableText, newGenerator(t, srv.URL, 0).Generate(context.Background(), "x", "y"))
	})
}

func TestGenerate_OpenCircuitSkipsCall(t *testing.T) {
	var calls int32
	srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	cb := breaker.NewCircuitBreaker("description", breaker.Config{
		Timeout:     time.Minute,
		ReadyToTrip: func(c breaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	g, err := NewGenerator(Config{APIKey: "key", Endpoint: srv.URL, Model: "m"}, cb, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.Equal(t, UnavailableText, g.Generate(context.Background(), "x", "y"))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, breaker.StateOpen, cb.State())
}

func TestGenerate_Cached(t *testing.T) {
	var calls int32
	srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		reply(w, "Fresh copy.")
	})
	g := newGenerator(t, srv.URL, time.Minute)

	for i := 0; i < 3; i++ {
		assert.Equal(t, "Fresh copy.", g.Generate(context.Background(), "Tea", "Grocery"))
	}
	assert.Equal(t, "Fresh copy.", g.Generate(context.Background(), " tea ", "GROCERY"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	g.Generate(context.Background(), "Coffee", "Grocery")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerate_ConcurrentCallsCollapse(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		reply(w, "Shared.")
	})
	g := newGenerator(t, srv.URL, 0)

	var wg sync.WaitGroup
	results := make([]string, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Generate(context.Background(), "Watch", "Electronics")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "Shared.", r)
	}
}

func TestGenerate_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	var calls int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		started <- struct{}{}
		<-release
		reply(w, "Worth the wait.")
	})
	g := newGenerator(t, srv.URL, 0)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan string, 1)
	go func() { first <- g.Generate(ctx, "Chair", "Furniture") }()
	<-started

	second := make(chan string, 1)
	go func() { second <- g.Generate(context.Background(), "Chair", "Furniture") }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case text := <-first:
		assert.Equal(t, UnavailableText, text)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting on the shared call")
	}

	close(release)
	select {
	case text := <-second:
		assert.Equal(t, "Worth the wait.", text)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never received the shared result")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
