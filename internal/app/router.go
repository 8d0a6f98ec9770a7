package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tempizhere/edgelink/internal/middleware"
)

// Router собирает маршрутизатор origin: редиректы, служебные маршруты и административное API
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware(a.logger))

	r.Get("/ping", a.HandlePing)
	r.With(middleware.TrustedSubnetMiddleware(a.trustedSubnet, a.logger)).
		Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.GzipMiddleware)
		r.Use(middleware.AdminAuth(a.jwtSecret, a.logger))

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", a.HandleListRules)
			r.Post("/", a.HandleCreateRule)
			r.Get("/export", a.HandleExportRules)
			r.Post("/import", a.HandleImportRules)
			r.Get("/{id}", a.HandleGetRule)
			r.Put("/{id}", a.HandleUpdateRule)
			r.Delete("/{id}", a.HandleDeleteRule)
		})
		r.Post("/resolve", a.HandleResolve)
		r.Get("/stats", a.HandleStats)
		r.Put("/settings/prefix", a.HandleChangePrefix)

		r.Route("/edge", func(r chi.Router) {
			r.Post("/token", a.HandleSetToken)
			r.Delete("/token", a.HandleDeleteToken)
			r.Post("/diagnostics", a.HandleDiagnostics)
			r.Post("/enable", a.HandleEnable)
			r.Post("/disable", a.HandleDisable)
			r.Post("/republish", a.HandleRepublish)
			r.Post("/fix-route", a.HandleFixRoute)
			r.Get("/health", a.HandleHealth)
			r.Post("/health/check", a.HandleHealthCheck)
			r.Get("/events", a.HandleEvents)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAdmin(a.jwtSecret))
		r.Get("/{prefix}/{slug}", a.HandleRedirect)
		r.Get("/{prefix}/{slug}/", a.HandleRedirectFallback)
	})
	return r
}
