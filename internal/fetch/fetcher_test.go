package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient swaps the real sleep for one that records requested delays.
func testClient(cfg Config) (*Client, *[]time.Duration) {
	c := New(cfg, nil)
	delays := &[]time.Duration{}
	c.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return c, delays
}

func TestGetRetriesTransientStatusesWithLinearBackoff(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	base := 350 * time.Millisecond
	c, delays := testClient(Config{MaxRetries: 3, BaseDelay: base})

	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{base * 1, base * 2}, *delays)
}

func TestGetDoesNotRetryDefinitiveStatuses(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c, delays := testClient(Config{MaxRetries: 3})

	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, srv.URL, statusErr.URL)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, *delays)
}

func TestGetRetries429(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c, _ := testClient(Config{MaxRetries: 1})

	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestGetExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, delays := testClient(Config{MaxRetries: 2})

	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, *delays, 2)
}

func TestContextRetriesOverridesConfiguredBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, delays := testClient(Config{MaxRetries: 0})

	ctx := ContextWithRetries(context.Background(), 2)
	_, err := c.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, *delays, 2)
}

func TestContextRetriesCanDisableRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, delays := testClient(Config{MaxRetries: 3})

	ctx := ContextWithRetries(context.Background(), 0)
	_, err := c.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, *delays)

	// Negative budgets clamp to zero rather than skipping the request.
	calls.Store(0)
	_, err = c.Get(ContextWithRetries(context.Background(), -4), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetSendsHeaders(t *testing.T) {
	t.Parallel()

	var gotAccept, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := testClient(Config{UserAgent: "dexingest/1.0"})

	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "dexingest/1.0", gotUA)
}

func TestGetJSONDecodes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"pikachu","id":25}`))
	}))
	defer srv.Close()

	c, _ := testClient(Config{})

	var out struct {
		Name string `json:"name"`
		ID   int    `json:"id"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "pikachu", out.Name)
	assert.Equal(t, 25, out.ID)
}

func TestGetJSONRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c, _ := testClient(Config{})

	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestGetStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Config{MaxRetries: 5}, nil)
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Get(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}
