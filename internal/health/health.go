// Package health вычисляет и кэширует состояние edge-интеграции.
package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/metrics"
	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/provider"
	"github.com/tempizhere/edgelink/internal/secret"
)

// Сообщения состояний
const (
	MsgNotConfigured   = "Edge mode not configured."
	MsgNotEnabled      = "Edge mode not enabled."
	MsgPending         = "Health check pending. Status will update shortly."
	MsgNoAccount       = "Account ID missing. Run diagnostics."
	MsgWorkerNotFound  = "Worker script not found. Origin fallback active."
	MsgNoZone          = "Zone ID missing. Run diagnostics."
	MsgRouteNotFound   = "Worker route not found. Origin fallback active."
	MsgRouteMismatch   = "Route pattern mismatch. Edge may not work correctly."
	MsgActive          = "Edge mode is active and healthy."
	MsgRoutesCheckFail = "Could not list worker routes: %v"
)

// API операции провайдера, нужные для проверки
type API interface {
	GetWorker(ctx context.Context, accountID, name string) (provider.WorkerSettings, error)
	ListRoutes(ctx context.Context, zoneID string) ([]provider.Route, error)
}

// Store хранилище состояния интеграции и кэша здоровья
type Store interface {
	LoadEdgeState(ctx context.Context) (models.EdgeState, error)
	LoadHealth(ctx context.Context) (models.HealthRecord, bool, error)
	SaveHealth(ctx context.Context, rec models.HealthRecord) error
}

// SettingsSource разрешает настройки сайта
type SettingsSource interface {
	Settings(ctx context.Context) (config.Settings, error)
}

// Reconciler сверяет желаемую конфигурацию с фактической у провайдера
type Reconciler struct {
	api      API
	store    Store
	secrets  secret.Store
	settings SettingsSource
	group    singleflight.Group
	now      func() time.Time
	logger   *zap.Logger
}

// NewReconciler создаёт новый экземпляр Reconciler.
// api должен быть клиентом без ограничения времени: проверка выполняется в фоне.
func NewReconciler(api API, store Store, secrets secret.Store, settings SettingsSource, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		api:      api,
		store:    store,
		secrets:  secrets,
		settings: settings,
		now:      time.Now,
		logger:   logger,
	}
}

// Check выполняет проверку и перезаписывает кэш. Одновременные вызовы объединяются.
func (r *Reconciler) Check(ctx context.Context) (models.HealthRecord, error) {
	v, err, _ := r.group.Do("check", func() (interface{}, error) {
		rec, err := r.evaluate(ctx)
		if err != nil {
			return models.HealthRecord{}, err
		}
		return rec, r.save(ctx, rec)
	})
	if err != nil {
		return models.HealthRecord{}, err
	}
	return v.(models.HealthRecord), nil
}

// evaluate проходит проверки по порядку до первой неудачной
func (r *Reconciler) evaluate(ctx context.Context) (models.HealthRecord, error) {
	if !r.secrets.Has(ctx) {
		return r.record(models.HealthOriginOnly, MsgNotConfigured), nil
	}
	st, err := r.store.LoadEdgeState(ctx)
	if err != nil {
		return models.HealthRecord{}, err
	}
	if !st.EdgeEnabled {
		return r.record(models.HealthOriginOnly, MsgNotEnabled), nil
	}
	if st.AccountID == "" {
		return r.record(models.HealthDegraded, MsgNoAccount), nil
	}

	s, err := r.settings.Settings(ctx)
	if err != nil {
		return models.HealthRecord{}, fmt.Errorf("resolve settings: %w", err)
	}
	if _, err := r.api.GetWorker(ctx, st.AccountID, s.WorkerName); err != nil {
		r.logger.Warn("Worker lookup failed", zap.Error(err))
		return r.record(models.HealthDegraded, MsgWorkerNotFound), nil
	}
	if st.ZoneID == "" {
		return r.record(models.HealthDegraded, MsgNoZone), nil
	}

	routes, err := r.api.ListRoutes(ctx, st.ZoneID)
	if err != nil {
		return r.record(models.HealthDegraded, fmt.Sprintf(MsgRoutesCheckFail, err)), nil
	}
	route, ok := provider.FindRouteByScript(routes, s.WorkerName)
	if !ok {
		return r.record(models.HealthDegraded, MsgRouteNotFound), nil
	}
	if expected := s.RoutePattern(); route.Pattern != expected {
		rec := r.record(models.HealthDegraded, MsgRouteMismatch)
		rec.RouteMismatch = &models.RouteMismatch{Expected: expected, Actual: route.Pattern}
		return rec, nil
	}
	return r.record(models.HealthActive, MsgActive), nil
}

func (r *Reconciler) record(state models.HealthState, message string) models.HealthRecord {
	now := r.now().UTC()
	return models.HealthRecord{State: state, Message: message, LastCheck: &now}
}

func (r *Reconciler) save(ctx context.Context, rec models.HealthRecord) error {
	if err := r.store.SaveHealth(ctx, rec); err != nil {
		return fmt.Errorf("save health: %w", err)
	}
	metrics.SetHealthState(string(rec.State))
	r.logger.Info("Health updated", zap.String("state", string(rec.State)), zap.String("message", rec.Message))
	return nil
}

// SetStatus записывает состояние без обращения к провайдеру
func (r *Reconciler) SetStatus(ctx context.Context, state models.HealthState, message string) error {
	return r.save(ctx, r.record(state, message))
}

// GetStatus возвращает кэшированное состояние без обращения к провайдеру
func (r *Reconciler) GetStatus(ctx context.Context) (models.HealthRecord, error) {
	rec, ok, err := r.store.LoadHealth(ctx)
	if err != nil {
		return models.HealthRecord{}, err
	}
	if ok {
		return rec, nil
	}
	st, err := r.store.LoadEdgeState(ctx)
	if err != nil {
		return models.HealthRecord{}, err
	}
	if st.EdgeEnabled {
		return models.HealthRecord{State: models.HealthDegraded, Message: MsgPending}, nil
	}
	return models.HealthRecord{State: models.HealthOriginOnly, Message: MsgNotConfigured}, nil
}
