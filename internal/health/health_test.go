package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/provider"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/secret"
)

type staticSettings config.Settings

func (s staticSettings) Settings(context.Context) (config.Settings, error) {
	return config.Settings(s), nil
}

// fakeAPI отвечает заранее заданными значениями
type fakeAPI struct {
	workerErr error
	routes    []provider.Route
	routesErr error
	calls     int32
	delay     time.Duration
}

func (f *fakeAPI) GetWorker(context.Context, string, string) (provider.WorkerSettings, error) {
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(f.delay)
	return provider.WorkerSettings{}, f.workerErr
}

func (f *fakeAPI) ListRoutes(context.Context, string) ([]provider.Route, error) {
	return f.routes, f.routesErr
}

func newReconciler(t *testing.T, api *fakeAPI, token string, st models.EdgeState) (*Reconciler, *repository.IntegrationStore) {
	t.Helper()
	store := repository.NewIntegrationStore(repository.NewMemoryRepository())
	require.NoError(t, store.SaveEdgeState(context.Background(), st))
	settings := staticSettings{Host: "example.com", Prefix: "go", WorkerName: "edgelink-worker"}
	return NewReconciler(api, store, secret.NewMemoryStore(token), settings, zap.NewNop()), store
}

func TestReconciler_Check(t *testing.T) {
	ready := models.EdgeState{ZoneID: "z", AccountID: "a", EdgeEnabled: true}
	ownRoute := []provider.Route{{ID: "r1", Pattern: "example.com/go/*", Script: "edgelink-worker"}}

	tests := []struct {
		name     string
		token    string
		state    models.EdgeState
		api      *fakeAPI
		expected models.HealthState
		message  string
		mismatch *models.RouteMismatch
	}{
		{name: "no token", token: "", state: ready, api: &fakeAPI{}, expected: models.HealthOriginOnly, message: MsgNotConfigured},
		{name: "edge disabled", token: "t", state: models.EdgeState{ZoneID: "z", AccountID: "a"}, api: &fakeAPI{}, expected: models.HealthOriginOnly, message: MsgNotEnabled},
		{name: "no account", token: "t", state: models.EdgeState{ZoneID: "z", EdgeEnabled: true}, api: &fakeAPI{}, expected: models.HealthDegraded, message: MsgNoAccount},
		{name: "worker missing", token: "t", state: ready, api: &fakeAPI{workerErr: &provider.APIError{Code: 404, Message: "not found"}}, expected: models.HealthDegraded, message: MsgWorkerNotFound},
		{name: "no zone", token: "t", state: models.EdgeState{AccountID: "a", EdgeEnabled: true}, api: &fakeAPI{}, expected: models.HealthDegraded, message: MsgNoZone},
		{name: "route missing", token: "t", state: ready, api: &fakeAPI{routes: []provider.Route{{ID: "x", Pattern: "example.com/go/*", Script: "other"}}}, expected: models.HealthDegraded, message: MsgRouteNotFound},
		{
			name: "route mismatch", token: "t", state: ready,
			api:      &fakeAPI{routes: []provider.Route{{ID: "r1", Pattern: "example.com/old/*", Script: "edgelink-worker"}}},
			expected: models.HealthDegraded, message: MsgRouteMismatch,
			mismatch: &models.RouteMismatch{Expected: "example.com/go/*", Actual: "example.com/old/*"},
		},
		{name: "active", token: "t", state: ready, api: &fakeAPI{routes: ownRoute}, expected: models.HealthActive, message: MsgActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			r, store := newReconciler(t, tt.api, tt.token, tt.state)

			rec, err := r.Check(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rec.State)
			assert.Equal(t, tt.message, rec.Message)
			assert.Equal(t, tt.mismatch, rec.RouteMismatch)
			assert.NotNil(t, rec.LastCheck)

			cached, ok, err := store.LoadHealth(ctx)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, cached.State)
		})
	}
}

func TestReconciler_CheckCoalescesConcurrentCalls(t *testing.T) {
	api := &fakeAPI{
		routes: []provider.Route{{ID: "r1", Pattern: "example.com/go/*", Script: "edgelink-worker"}},
		delay:  50 * time.Millisecond,
	}
	r, _ := newReconciler(t, api, "t", models.EdgeState{ZoneID: "z", AccountID: "a", EdgeEnabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Check(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, atomic.LoadInt32(&api.calls), int32(5))
}

func TestReconciler_GetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("pending when enabled", func(t *testing.T) {
		r, _ := newReconciler(t, &fakeAPI{}, "t", models.EdgeState{EdgeEnabled: true})
		rec, err := r.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.HealthDegraded, rec.State)
		assert.Equal(t, MsgPending, rec.Message)
		assert.Nil(t, rec.LastCheck)
	})

	t.Run("not configured", func(t *testing.T) {
		r, _ := newReconciler(t, &fakeAPI{}, "", models.EdgeState{})
		rec, err := r.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.HealthOriginOnly, rec.State)
	})

	t.Run("cached after SetStatus", func(t *testing.T) {
		r, _ := newReconciler(t, &fakeAPI{}, "t", models.EdgeState{})
		require.NoError(t, r.SetStatus(ctx, models.HealthActive, "Edge mode enabled."))
		rec, err := r.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.HealthActive, rec.State)
		assert.Equal(t, "Edge mode enabled.", rec.Message)
		assert.NotNil(t, rec.LastCheck)
	})
}

func TestReconciler_RoutesError(t *testing.T) {
	api := &fakeAPI{routesErr: errors.New("timeout")}
	r, _ := newReconciler(t, api, "t", models.EdgeState{ZoneID: "z", AccountID: "a", EdgeEnabled: true})

	rec, err := r.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.HealthDegraded, rec.State)
	assert.Contains(t, rec.Message, "timeout")
}
