package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticToken string

func (s staticToken) Retrieve(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no secret")
	}
	return string(s), nil
}

// fakeClock продвигает время на каждое ожидание
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func newTestClient(t *testing.T, h http.Handler, clock *fakeClock) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, staticToken("tok"), zap.NewNop(),
		WithClock(clock.Now, clock.Sleep),
		WithJitter(func() time.Duration { return 0 }))
}

func writeResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "errors": []interface{}{}, "result": result})
}

func TestClient_RetryAfterRespectsBudget(t *testing.T) {
	tests := []struct {
		name       string
		budget     time.Duration
		wantErr    error
		wantSleeps []time.Duration
		wantHits   int32
	}{
		{"within budget", 15 * time.Second, ErrRateLimited, []time.Duration{2 * time.Second, 2 * time.Second}, 3},
		{"budget too small", 3 * time.Second, ErrBudgetExceeded, []time.Duration{2 * time.Second}, 2},
		{"unbounded", 0, ErrRateLimited, []time.Duration{2 * time.Second, 2 * time.Second}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			clock := newFakeClock()
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(http.StatusTooManyRequests)
			}), clock).WithBudget(tt.budget)

			_, err := c.ListRoutes(context.Background(), "zone")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantSleeps, clock.sleeps)
			assert.Equal(t, tt.wantHits, atomic.LoadInt32(&hits))
			if tt.budget > 0 {
				assert.LessOrEqual(t, clock.now.Sub(time.Unix(1700000000, 0)), tt.budget)
			}
		})
	}
}

func TestClient_ExponentialBackoff(t *testing.T) {
	var hits int32
	clock := newFakeClock()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeResult(w, []Route{{ID: "r1", Pattern: "e.com/go/*", Script: "w"}})
	}), clock)

	routes, err := c.ListRoutes(context.Background(), "zone")
	require.NoError(t, err)
	assert.Len(t, routes, 1)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.sleeps)
}

func TestClient_RetryAfterHeaders(t *testing.T) {
	clock := newFakeClock()
	c := NewClient("", staticToken("tok"), zap.NewNop(), WithClock(clock.Now, clock.Sleep))

	h := http.Header{}
	h.Set("Retry-After", clock.now.Add(5*time.Second).UTC().Format(http.TimeFormat))
	assert.Equal(t, 5*time.Second, c.retryAfter(h))

	h = http.Header{}
	h.Set("X-RateLimit-Reset", strconv.FormatInt(clock.now.Unix()+7, 10))
	assert.Equal(t, 7*time.Second, c.retryAfter(h))

	h = http.Header{}
	h.Set("Retry-After", "0")
	assert.Zero(t, c.retryAfter(h))

	assert.Zero(t, c.retryAfter(http.Header{}))
}

func TestClient_BackoffCap(t *testing.T) {
	c := NewClient("", staticToken("tok"), zap.NewNop(), WithJitter(func() time.Duration { return time.Second }))
	assert.Equal(t, 3*time.Second, c.backoff(1))
	assert.Equal(t, MaxBackoff, c.backoff(10))
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"joined provider errors", 400, `{"success":false,"errors":[{"code":1,"message":"first"},{"code":2,"message":"second"}]}`, "first; second"},
		{"no error array", 500, `oops`, "API error: HTTP 500"},
		{"not found", 404, `{"success":false,"errors":[]}`, "API error: HTTP 404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}), newFakeClock())

			_, err := c.ListZones(context.Background(), "")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "non-429 errors are not retried")
		})
	}
}

func TestClient_SuccessFalseOn2xx(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"provider errors", http.StatusOK, `{"success":false,"errors":[{"code":10021,"message":"script validation failed"}],"result":null}`, "script validation failed"},
		{"empty error list", http.StatusOK, `{"success":false,"errors":[],"result":{"id":"r1"}}`, "API error: HTTP 200"},
		{"missing success flag", http.StatusAccepted, `{"result":{"id":"r1"}}`, "API error: HTTP 202"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}), newFakeClock())

			_, err := c.CreateRoute(context.Background(), "z1", "e.com/go/*", "edgelink-worker")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.False(t, IsNotFound(err))
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""), zap.NewNop())
	_, err := c.ListZones(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestClient_VerifyTokenUsesGivenToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		assert.Equal(t, "/user/tokens/verify", r.URL.Path)
		writeResult(w, TokenInfo{ID: "t1", Status: "active"})
	}), newFakeClock())

	info, err := c.VerifyToken(context.Background(), "fresh")
	require.NoError(t, err)
	assert.True(t, info.Active())

	_, err = c.VerifyToken(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_FindZoneForHost(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		switch r.URL.Query().Get("name") {
		case "example.com":
			writeResult(w, []map[string]interface{}{{
				"id": "z1", "name": "example.com", "status": "active",
				"account": map[string]string{"id": "acc1"},
			}})
		default:
			writeResult(w, []interface{}{})
		}
	}), newFakeClock())

	m, err := c.FindZoneForHost(context.Background(), "www.example.com")
	require.NoError(t, err)
	assert.Equal(t, ZoneMatch{ZoneID: "z1", ZoneName: "example.com", AccountID: "acc1", Status: "active"}, m)

	_, err = c.FindZoneForHost(context.Background(), "other.org")
	assert.ErrorIs(t, err, ErrZoneNotFound)
}

func TestClient_CheckDNSProxied(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "CNAME" {
			writeResult(w, []DNSRecord{{ID: "d1", Type: "CNAME", Name: "e.com", Content: "origin.e.com", Proxied: true}})
			return
		}
		writeResult(w, []DNSRecord{})
	}), newFakeClock())

	st, err := c.CheckDNSProxied(context.Background(), "z1", "e.com")
	require.NoError(t, err)
	assert.Equal(t, DNSStatus{Found: true, Proxied: true, Type: "CNAME", Content: "origin.e.com"}, st)
}

func TestClient_CreateAndDeleteRoute(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "e.com/go/*", payload["pattern"])
			assert.Equal(t, "edgelink-worker", payload["script"])
			writeResult(w, map[string]string{"id": "r1"})
		case http.MethodDelete:
			assert.Equal(t, "/zones/z1/workers/routes/r1", r.URL.Path)
			writeResult(w, map[string]string{"id": "r1"})
		}
	}), newFakeClock())

	route, err := c.CreateRoute(context.Background(), "z1", "e.com/go/*", "edgelink-worker")
	require.NoError(t, err)
	assert.Equal(t, Route{ID: "r1", Pattern: "e.com/go/*", Script: "edgelink-worker"}, route)

	assert.NoError(t, c.DeleteRoute(context.Background(), "z1", "r1"))
}

func TestClient_UploadWorker(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/accounts/acc1/workers/scripts/edgelink-worker", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.JSONEq(t, `{"main_module":"worker.js"}`, r.FormValue("metadata"))

		f, hdr, err := r.FormFile("worker.js")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "application/javascript+module", hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		assert.Equal(t, "export default {}", string(data))
		writeResult(w, map[string]string{"id": "edgelink-worker"})
	}), newFakeClock())

	err := c.UploadWorker(context.Background(), "acc1", "edgelink-worker", []byte("export default {}"), "worker.js")
	assert.NoError(t, err)
}

func TestClient_GetWorkerNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acc1/workers/scripts/edgelink-worker/settings", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"errors":[{"code":10007,"message":"workers.api.error.script_not_found"}]}`)
	}), newFakeClock())

	_, err := c.GetWorker(context.Background(), "acc1", "edgelink-worker")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "script_not_found")
}

func TestFindRoute(t *testing.T) {
	routes := []Route{
		{ID: "1", Pattern: "e.com/a/*", Script: "other"},
		{ID: "2", Pattern: "e.com/go/*", Script: "edgelink-worker"},
	}
	r, ok := FindRouteByPattern(routes, "e.com/go/*")
	assert.True(t, ok)
	assert.Equal(t, "2", r.ID)

	r, ok = FindRouteByScript(routes, "other")
	assert.True(t, ok)
	assert.Equal(t, "1", r.ID)

	_, ok = FindRouteByScript(routes, "missing")
	assert.False(t, ok)
}
