package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/app"
	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/middleware"
	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/resolver"
	"github.com/tempizhere/edgelink/internal/service"
)

func exampleApp() (*app.App, *repository.MemoryRepository) {
	repo := repository.NewMemoryRepository()
	store := repository.NewIntegrationStore(repo)
	cfg := &config.Config{BaseURL: "https://example.com", Prefix: "go", WorkerName: config.DefaultWorkerName}
	settings := service.NewSettingsResolver(cfg, store, zap.NewNop())

	a := app.NewApp(app.Deps{
		Service:   service.NewService(repo, repo, settings, zap.NewNop()),
		Settings:  settings,
		Resolver:  resolver.NewResolver(repo, zap.NewNop()),
		Events:    store,
		JWTSecret: "example-secret",
		Logger:    zap.NewNop(),
	})
	return a, repo
}

// ExampleApp_HandleRedirect демонстрирует редирект origin с передачей строки запроса и UTM
func ExampleApp_HandleRedirect() {
	a, repo := exampleApp()
	_, _ = repo.Create(context.Background(), models.Rule{
		Slug:       "docs",
		TargetURL:  "https://docs.example.com/start",
		StatusCode: 301,
		Enabled:    true,
		Options: models.RuleOptions{
			PassthroughQuery: true,
			AppendUTM:        models.UTMParams{{Key: "utm_source", Value: "site"}},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/go/docs?ref=footer", nil)
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)

	fmt.Printf("Статус код: %d\n", w.Code)
	fmt.Printf("Location: %s\n", w.Header().Get("Location"))
	fmt.Printf("X-Handled-By: %s\n", w.Header().Get("X-Handled-By"))

	// Output:
	// Статус код: 301
	// Location: https://docs.example.com/start?ref=footer&utm_source=site
	// X-Handled-By: edgelink-origin
}

// ExampleApp_HandleCreateRule демонстрирует создание правила через административное API
func ExampleApp_HandleCreateRule() {
	a, _ := exampleApp()
	token, _ := middleware.GenerateAdminToken("example-secret", "admin", time.Hour)

	body, _ := json.Marshal(models.Rule{Slug: "Summer Sale", TargetURL: "https://shop.example.com/sale", Enabled: true})
	req := httptest.NewRequest(http.MethodPost, "/api/rules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)

	var rule models.Rule
	_ = json.Unmarshal(w.Body.Bytes(), &rule)
	fmt.Printf("Статус код: %d\n", w.Code)
	fmt.Printf("Slug: %s\n", rule.Slug)
	fmt.Printf("Код редиректа: %d\n", rule.StatusCode)

	// Output:
	// Статус код: 201
	// Slug: summer-sale
	// Код редиректа: 302
}

// ExampleApp_HandleRedirect_notFound демонстрирует ответ для неизвестного slug
func ExampleApp_HandleRedirect_notFound() {
	a, _ := exampleApp()

	req := httptest.NewRequest(http.MethodGet, "/go/missing", nil)
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)

	fmt.Printf("Статус код: %d\n", w.Code)

	// Output:
	// Статус код: 404
}
