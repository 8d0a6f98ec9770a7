// Package deploy управляет публикацией снимка правил и маршрутом воркера у edge-провайдера.
//
// Каждая операция идемпотентна и может быть безопасно повторена. Операции одного
// сайта сериализуются через ZoneLocker.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/metrics"
	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/provider"
	"github.com/tempizhere/edgelink/internal/secret"
)

//go:generate mockgen -destination=mock_edge_api.go -package=deploy github.com/tempizhere/edgelink/internal/deploy EdgeAPI

var (
	// ErrNoToken API-токен не сохранён
	ErrNoToken = errors.New("API token not configured")
	// ErrNotReady зона или аккаунт ещё не определены
	ErrNotReady = errors.New("missing required configuration, run diagnostics first")
	// ErrEdgeDisabled операция требует включённого edge-режима
	ErrEdgeDisabled = errors.New("edge mode is not enabled")
	// ErrTokenInactive провайдер сообщил, что токен не активен
	ErrTokenInactive = errors.New("API token is not active")
)

// ConflictError шаблон маршрута занят чужим скриптом
type ConflictError struct {
	Pattern string
	Script  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("route %s is already in use by another worker (%s)", e.Pattern, e.Script)
}

// EdgeAPI операции провайдера, которые использует оркестратор
type EdgeAPI interface {
	VerifyToken(ctx context.Context, token string) (provider.TokenInfo, error)
	FindZoneForHost(ctx context.Context, host string) (provider.ZoneMatch, error)
	CheckDNSProxied(ctx context.Context, zoneID, host string) (provider.DNSStatus, error)
	ListRoutes(ctx context.Context, zoneID string) ([]provider.Route, error)
	CreateRoute(ctx context.Context, zoneID, pattern, script string) (provider.Route, error)
	DeleteRoute(ctx context.Context, zoneID, routeID string) error
	UploadWorker(ctx context.Context, accountID, name string, script []byte, module string) error
	DeleteWorker(ctx context.Context, accountID, name string) error
}

// StateStore хранилище состояния интеграции и журнала операций
type StateStore interface {
	LoadEdgeState(ctx context.Context) (models.EdgeState, error)
	SaveEdgeState(ctx context.Context, st models.EdgeState) error
	AppendEvent(ctx context.Context, eventType, message string) error
}

// RuleSource источник включённых правил для снимка
type RuleSource interface {
	GetEnabledRulesForSnapshot(ctx context.Context) ([]models.Rule, error)
}

// HealthRecorder записывает состояние здоровья после операций
type HealthRecorder interface {
	SetStatus(ctx context.Context, state models.HealthState, message string) error
}

// SettingsSource разрешает настройки сайта на момент операции
type SettingsSource interface {
	Settings(ctx context.Context) (config.Settings, error)
}

// Deps зависимости оркестратора
type Deps struct {
	API      EdgeAPI
	Secrets  secret.Store
	State    StateStore
	Rules    RuleSource
	Health   HealthRecorder
	Settings SettingsSource
	Locker   ZoneLocker
	Logger   *zap.Logger
}

// Orchestrator выполняет операции развёртывания
type Orchestrator struct {
	api      EdgeAPI
	secrets  secret.Store
	state    StateStore
	rules    RuleSource
	health   HealthRecorder
	settings SettingsSource
	locker   ZoneLocker
	now      func() time.Time
	logger   *zap.Logger
}

// NewOrchestrator создаёт новый экземпляр Orchestrator
func NewOrchestrator(d Deps) *Orchestrator {
	if d.Locker == nil {
		d.Locker = NewLocalLocker()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Orchestrator{
		api:      d.API,
		secrets:  d.Secrets,
		state:    d.State,
		rules:    d.Rules,
		health:   d.Health,
		settings: d.Settings,
		locker:   d.Locker,
		now:      time.Now,
		logger:   d.Logger,
	}
}

// WithAPI возвращает копию оркестратора с другим клиентом провайдера
// (например, без ограничения времени для фоновых задач)
func (o *Orchestrator) WithAPI(api EdgeAPI) *Orchestrator {
	cp := *o
	cp.api = api
	return &cp
}

// guard разрешает настройки и выполняет fn под блокировкой сайта
func (o *Orchestrator) guard(ctx context.Context, op string, fn func(ctx context.Context, s config.Settings) error) error {
	s, err := o.settings.Settings(ctx)
	if err != nil {
		return fmt.Errorf("resolve settings: %w", err)
	}
	unlock, err := o.locker.TryLock(ctx, s.LockKey())
	if err != nil {
		metrics.DeployOperationsTotal.WithLabelValues(op, "busy").Inc()
		o.logger.Warn("Deployment operation rejected", zap.String("op", op), zap.Error(err))
		return err
	}
	defer unlock()

	start := o.now()
	err = fn(ctx, s)
	if err != nil {
		metrics.DeployOperationsTotal.WithLabelValues(op, "failed").Inc()
		o.logger.Error("Deployment operation failed",
			zap.String("op", op),
			zap.Duration("duration", o.now().Sub(start)),
			zap.Error(err))
		return err
	}
	metrics.DeployOperationsTotal.WithLabelValues(op, "success").Inc()
	o.logger.Info("Deployment operation completed",
		zap.String("op", op),
		zap.Duration("duration", o.now().Sub(start)))
	return nil
}

// audit добавляет запись в журнал; ошибка журнала не прерывает операцию
func (o *Orchestrator) audit(ctx context.Context, eventType, message string) {
	if err := o.state.AppendEvent(ctx, eventType, message); err != nil {
		o.logger.Warn("Failed to append audit event", zap.String("type", eventType), zap.Error(err))
	}
}

// setHealth записывает здоровье; ошибка записи только логируется
func (o *Orchestrator) setHealth(ctx context.Context, state models.HealthState, message string) {
	if o.health == nil {
		return
	}
	if err := o.health.SetStatus(ctx, state, message); err != nil {
		o.logger.Warn("Failed to store health status", zap.Error(err))
	}
}

// SetToken проверяет токен у провайдера и сохраняет его
func (o *Orchestrator) SetToken(ctx context.Context, token string) (provider.TokenInfo, error) {
	info, err := o.api.VerifyToken(ctx, token)
	if err != nil {
		o.audit(ctx, "token", "API token verification failed: "+err.Error())
		return info, err
	}
	if !info.Active() {
		o.audit(ctx, "token", "API token rejected: status "+info.Status)
		return info, fmt.Errorf("%w (status: %s)", ErrTokenInactive, info.Status)
	}
	if err := o.secrets.Store(ctx, token); err != nil {
		return info, fmt.Errorf("store token: %w", err)
	}
	o.audit(ctx, "token", "API token saved.")
	return info, nil
}

// DeleteToken отключает edge-режим, если он включён, и удаляет токен
func (o *Orchestrator) DeleteToken(ctx context.Context) error {
	st, err := o.state.LoadEdgeState(ctx)
	if err != nil {
		return err
	}
	if st.EdgeEnabled {
		if err := o.Disable(ctx); err != nil {
			o.logger.Warn("Disable before token removal failed", zap.Error(err))
		}
	}
	if err := o.secrets.Delete(ctx); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	o.setHealth(ctx, models.HealthOriginOnly, "API token removed.")
	o.audit(ctx, "token", "API token removed.")
	return nil
}

// Enable публикует снимок, создаёт маршрут и включает edge-режим.
// При ошибке любого шага флаг включения не выставляется.
func (o *Orchestrator) Enable(ctx context.Context) error {
	return o.guard(ctx, "enable", func(ctx context.Context, s config.Settings) error {
		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		if !o.secrets.Has(ctx) {
			return ErrNoToken
		}
		if !st.HasZone() {
			return ErrNotReady
		}

		if err := o.publish(ctx, &st, s); err != nil {
			o.audit(ctx, "enable", "Enable failed: "+err.Error())
			return err
		}
		if err := o.createRoute(ctx, &st, s.RoutePattern(), s.WorkerName); err != nil {
			o.audit(ctx, "enable", "Enable failed: "+err.Error())
			return err
		}

		st.EdgeEnabled = true
		if err := o.state.SaveEdgeState(ctx, st); err != nil {
			return err
		}
		o.setHealth(ctx, models.HealthActive, "Edge mode enabled.")
		o.audit(ctx, "enable", "Edge mode enabled successfully.")
		return nil
	})
}

// Disable снимает маршрут и сбрасывает edge-состояние. Отсутствие маршрута не ошибка.
func (o *Orchestrator) Disable(ctx context.Context) error {
	return o.guard(ctx, "disable", func(ctx context.Context, s config.Settings) error {
		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		routeErr := o.removeRoute(ctx, &st, s.RoutePattern(), s.WorkerName)
		if routeErr != nil {
			o.logger.Warn("Route removal failed during disable", zap.Error(routeErr))
		}

		st.ClearEdge()
		if err := o.state.SaveEdgeState(ctx, st); err != nil {
			return err
		}
		o.setHealth(ctx, models.HealthOriginOnly, "Edge mode disabled.")
		o.audit(ctx, "disable", "Edge mode disabled.")
		return routeErr
	})
}

// Republish пересобирает и загружает снимок, не трогая маршруты
func (o *Orchestrator) Republish(ctx context.Context) error {
	return o.guard(ctx, "republish", func(ctx context.Context, s config.Settings) error {
		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		if !st.EdgeEnabled {
			return ErrEdgeDisabled
		}
		if err := o.publish(ctx, &st, s); err != nil {
			o.audit(ctx, "republish", "Republish failed: "+err.Error())
			return err
		}
		o.audit(ctx, "republish", "Snapshot republished successfully.")
		return nil
	})
}

// PublishIfEnabled пересобирает снимок, если edge-режим включён; иначе ничего не делает
func (o *Orchestrator) PublishIfEnabled(ctx context.Context) error {
	st, err := o.state.LoadEdgeState(ctx)
	if err != nil {
		return err
	}
	if !st.EdgeEnabled {
		return nil
	}
	return o.Republish(ctx)
}

// CreateRoute создаёт маршрут воркера или принимает существующий свой
func (o *Orchestrator) CreateRoute(ctx context.Context) error {
	return o.guard(ctx, "create_route", func(ctx context.Context, s config.Settings) error {
		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		return o.createRoute(ctx, &st, s.RoutePattern(), s.WorkerName)
	})
}

// FixRoute удаляет любой маршрут этого воркера в зоне и создаёт маршрут заново
func (o *Orchestrator) FixRoute(ctx context.Context) error {
	return o.guard(ctx, "fix_route", func(ctx context.Context, s config.Settings) error {
		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		if !st.EdgeEnabled {
			return ErrEdgeDisabled
		}
		if st.ZoneID == "" {
			return ErrNotReady
		}

		routes, err := o.api.ListRoutes(ctx, st.ZoneID)
		if err != nil {
			return err
		}
		if existing, ok := provider.FindRouteByScript(routes, s.WorkerName); ok {
			if err := o.dropRoute(ctx, &st, existing.ID); err != nil {
				return err
			}
		}

		if err := o.createRoute(ctx, &st, s.RoutePattern(), s.WorkerName); err != nil {
			o.audit(ctx, "fix_route", "Route fix failed: "+err.Error())
			return err
		}
		o.audit(ctx, "fix_route", "Route pattern fixed successfully.")
		return nil
	})
}

// UpdatePrefix переносит маршрут со старого префикса на новый.
// Частичный сбой не откатывается: расхождение обнаружит проверка здоровья.
func (o *Orchestrator) UpdatePrefix(ctx context.Context, oldPrefix, newPrefix string) error {
	return o.guard(ctx, "update_prefix", func(ctx context.Context, s config.Settings) error {
		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		if !st.EdgeEnabled {
			return nil
		}
		if st.ZoneID == "" {
			return ErrNotReady
		}
		s.Prefix = newPrefix

		routes, err := o.api.ListRoutes(ctx, st.ZoneID)
		if err != nil {
			return err
		}
		oldRoute, ok := provider.FindRouteByPattern(routes, s.RoutePatternFor(oldPrefix))
		if ok && oldRoute.Script == s.WorkerName {
			if err := o.dropRoute(ctx, &st, oldRoute.ID); err != nil {
				return err
			}
		}

		if err := o.publish(ctx, &st, s); err != nil {
			o.audit(ctx, "prefix_change", "Prefix change failed: "+err.Error())
			return err
		}
		if err := o.createRoute(ctx, &st, s.RoutePattern(), s.WorkerName); err != nil {
			o.audit(ctx, "prefix_change", "Prefix change failed: "+err.Error())
			return err
		}
		o.audit(ctx, "prefix_change", fmt.Sprintf("Route updated: /%s/* → /%s/*", oldPrefix, newPrefix))
		return nil
	})
}

// RemoveRouteOnDeactivation снимает маршрут, сохраняя флаг edge-режима для повторной активации.
// Ошибки только логируются.
func (o *Orchestrator) RemoveRouteOnDeactivation(ctx context.Context) {
	err := o.guard(ctx, "deactivate", func(ctx context.Context, s config.Settings) error {
		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		if !st.EdgeEnabled {
			return nil
		}
		if err := o.removeRoute(ctx, &st, s.RoutePattern(), s.WorkerName); err != nil {
			o.audit(ctx, "deactivate", "Route removal on deactivation failed: "+err.Error())
			return err
		}
		if err := o.state.SaveEdgeState(ctx, st); err != nil {
			return err
		}
		o.audit(ctx, "deactivate", "Worker route removed on deactivation.")
		return nil
	})
	if err != nil {
		o.logger.Warn("Route removal on deactivation failed", zap.Error(err))
	}
}

// FullCleanup удаляет маршрут и скрипт воркера и сбрасывает состояние.
// Ошибки поглощаются, чтобы не блокировать удаление.
func (o *Orchestrator) FullCleanup(ctx context.Context) {
	err := o.guard(ctx, "cleanup", func(ctx context.Context, s config.Settings) error {
		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		if err := o.removeRoute(ctx, &st, s.RoutePattern(), s.WorkerName); err != nil {
			o.logger.Warn("Route removal failed during cleanup", zap.Error(err))
		}
		if st.AccountID != "" {
			if err := o.api.DeleteWorker(ctx, st.AccountID, s.WorkerName); err != nil && !provider.IsNotFound(err) {
				o.logger.Warn("Worker removal failed during cleanup", zap.Error(err))
			}
		}
		st.ClearEdge()
		if err := o.state.SaveEdgeState(ctx, st); err != nil {
			return err
		}
		o.audit(ctx, "cleanup", "Edge worker and route removed.")
		return nil
	})
	if err != nil {
		o.logger.Warn("Full cleanup failed", zap.Error(err))
	}
}
