// Package app содержит HTTP-обработчики origin-редиректа и административного API.
package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/deploy"
	"github.com/tempizhere/edgelink/internal/metrics"
	"github.com/tempizhere/edgelink/internal/middleware"
	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/provider"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/resolver"
	"github.com/tempizhere/edgelink/internal/service"
	"github.com/tempizhere/edgelink/internal/snapshot"
)

// DebugParam параметр запроса, включающий отладочный ответ для администратора
const DebugParam = "elr_debug"

// HandledByOrigin значение заголовка X-Handled-By для редиректов origin
const HandledByOrigin = "edgelink-origin"

// EdgeManager операции развёртывания, доступные через API
type EdgeManager interface {
	SetToken(ctx context.Context, token string) (provider.TokenInfo, error)
	DeleteToken(ctx context.Context) error
	MatchZone(ctx context.Context) (deploy.Diagnostics, error)
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Republish(ctx context.Context) error
	FixRoute(ctx context.Context) error
	UpdatePrefix(ctx context.Context, oldPrefix, newPrefix string) error
}

// HealthChecker чтение и принудительная проверка состояния edge
type HealthChecker interface {
	GetStatus(ctx context.Context) (models.HealthRecord, error)
	Check(ctx context.Context) (models.HealthRecord, error)
}

// EventLog журнал операций развёртывания
type EventLog interface {
	Events(ctx context.Context) ([]models.AuditEvent, error)
}

// Deps зависимости приложения
type Deps struct {
	Service       *service.Service
	Settings      *service.SettingsResolver
	Resolver      *resolver.Resolver
	Edge          EdgeManager
	Health        HealthChecker
	Events        EventLog
	DB            repository.Database
	JWTSecret     string
	TrustedSubnet string
	Logger        *zap.Logger
}

// App содержит хендлеры и зависимости
type App struct {
	svc           *service.Service
	settings      *service.SettingsResolver
	resolver      *resolver.Resolver
	edge          EdgeManager
	health        HealthChecker
	events        EventLog
	db            repository.Database
	jwtSecret     string
	trustedSubnet string
	now           func() time.Time
	logger        *zap.Logger
}

// NewApp создаёт новое приложение
func NewApp(d Deps) *App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &App{
		svc:           d.Service,
		settings:      d.Settings,
		resolver:      d.Resolver,
		edge:          d.Edge,
		health:        d.Health,
		events:        d.Events,
		db:            d.DB,
		jwtSecret:     d.JWTSecret,
		trustedSubnet: d.TrustedSubnet,
		now:           time.Now,
		logger:        d.Logger,
	}
}

// HandleRedirect обрабатывает GET /{prefix}/{slug}
func (a *App) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	a.serveRedirect(w, r, models.MatchRewrite)
}

// HandleRedirectFallback обрабатывает GET /{prefix}/{slug}/ с завершающим слешем
func (a *App) HandleRedirectFallback(w http.ResponseWriter, r *http.Request) {
	a.serveRedirect(w, r, models.MatchFallback)
}

func (a *App) serveRedirect(w http.ResponseWriter, r *http.Request, matchedBy models.MatchSource) {
	ctx := r.Context()
	prefix, err := a.settings.Prefix(ctx)
	if err != nil {
		a.logger.Error("Failed to resolve prefix", zap.Error(err))
		http.NotFound(w, r)
		return
	}
	if !strings.EqualFold(chi.URLParam(r, "prefix"), prefix) {
		http.NotFound(w, r)
		return
	}

	slug := chi.URLParam(r, "slug")
	_, debug := r.URL.Query()[DebugParam]
	decision := a.resolver.Resolve(ctx, slug, matchedBy, stripParam(r.URL.RawQuery, DebugParam))

	if debug && middleware.IsAdmin(r) {
		a.writeJSONResponse(w, http.StatusOK, models.NewDebugResponse(decision, slug, a.now()))
		return
	}

	if !decision.ShouldRedirect {
		metrics.RedirectsTotal.WithLabelValues("not_found", string(matchedBy)).Inc()
		http.NotFound(w, r)
		return
	}

	a.svc.RecordClick(decision.LinkID)
	metrics.RedirectsTotal.WithLabelValues("redirect", string(matchedBy)).Inc()

	w.Header().Set("Location", decision.TargetURL)
	w.Header().Set(snapshot.HeaderHandledBy, HandledByOrigin)
	w.Header().Set("X-Redirect-By", "edgelink")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(decision.StatusCode)
}

// stripParam удаляет параметр из строки запроса, сохраняя порядок остальных
func stripParam(rawQuery, name string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		key := part
		if i := strings.IndexByte(part, '='); i >= 0 {
			key = part[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil && k == name {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

// HandlePing обрабатывает GET-запросы на "/ping"
func (a *App) HandlePing(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		http.Error(w, "Database not configured", http.StatusInternalServerError)
		return
	}
	if err := a.db.PingContext(r.Context()); err != nil {
		a.logger.Warn("Database ping failed", zap.Error(err))
		http.Error(w, "Database connection failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeJSONResponse пишет JSON-ответ с проверкой ошибок
func (a *App) writeJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to encode JSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		a.logger.Warn("Failed to write response", zap.Error(err))
	}
}
