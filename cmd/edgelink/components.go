package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/app"
	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/deploy"
	"github.com/tempizhere/edgelink/internal/health"
	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/provider"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/resolver"
	"github.com/tempizhere/edgelink/internal/scheduler"
	"github.com/tempizhere/edgelink/internal/secret"
	"github.com/tempizhere/edgelink/internal/service"
)

// components собранные зависимости процесса
type components struct {
	cfg        *config.Config
	db         *sql.DB
	redis      *redis.Client
	store      repository.Store
	rules      *repository.CachedRuleRepository
	state      *repository.IntegrationStore
	secrets    secret.Store
	settings   *service.SettingsResolver
	svc        *service.Service
	resolver   *resolver.Resolver
	orch       *deploy.Orchestrator
	background *deploy.Orchestrator
	reconciler *health.Reconciler
	publisher  *scheduler.Debouncer
	logger     *zap.Logger
}

// newStore возвращает хранилище PostgreSQL при заданном DSN, иначе хранилище в памяти
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, *sql.DB, error) {
	if cfg.DatabaseDSN == "" {
		logger.Info("Using in-memory storage")
		return repository.NewMemoryRepository(), nil, nil
	}
	db, err := repository.NewDB(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("Using PostgreSQL storage")
	return repository.NewPostgresRepository(db, logger), db, nil
}

// newSecretStore создаёт хранилище API-токена по конфигурации
func newSecretStore(cfg *config.Config) (secret.Store, error) {
	switch cfg.SecretBackend {
	case "file":
		return secret.NewFileStore(cfg.SecretPath)
	case "vault":
		return secret.NewVaultStore(cfg.VaultPath)
	case "memory", "":
		return secret.NewMemoryStore(""), nil
	}
	return nil, fmt.Errorf("unknown secret backend %q", cfg.SecretBackend)
}

// newLocker возвращает распределённую блокировку при заданном адресе Redis
func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (deploy.ZoneLocker, *redis.Client, error) {
	if cfg.RedisAddr == "" {
		return deploy.NewLocalLocker(), nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("Using Redis deploy locks", zap.String("addr", cfg.RedisAddr))
	return deploy.NewRedisLocker(client, deploy.DefaultLockTTL), client, nil
}

// buildComponents собирает зависимости; ctx ограничивает время жизни фоновой публикации
func buildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{cfg: cfg, logger: logger}
	var err error

	c.store, c.db, err = newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.rules, err = repository.NewCachedRuleRepository(c.store, cfg.RuleCacheSize, cfg.RuleCacheTTL)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create rule cache: %w", err)
	}
	c.state = repository.NewIntegrationStore(c.store)

	c.secrets, err = newSecretStore(cfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create secret store: %w", err)
	}
	if cfg.ProviderToken != "" && !c.secrets.Has(ctx) {
		if err := c.secrets.Store(ctx, cfg.ProviderToken); err != nil {
			c.Close()
			return nil, fmt.Errorf("store bootstrap token: %w", err)
		}
	}

	locker, redisClient, err := newLocker(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.redis = redisClient

	c.settings = service.NewSettingsResolver(cfg, c.state, logger)
	c.svc = service.NewService(c.rules, c.store, c.settings, logger)
	c.resolver = resolver.NewResolver(c.rules, logger)

	api := provider.NewClient(cfg.ProviderAPIBase, c.secrets, logger,
		provider.WithRateLimit(cfg.ProviderRPS, 1)).WithBudget(cfg.UIBudget)
	backgroundAPI := api.WithBudget(0)

	c.reconciler = health.NewReconciler(backgroundAPI, c.state, c.secrets, c.settings, logger)
	c.orch = deploy.NewOrchestrator(deploy.Deps{
		API:      api,
		Secrets:  c.secrets,
		State:    c.state,
		Rules:    c.rules,
		Health:   c.reconciler,
		Settings: c.settings,
		Locker:   locker,
		Logger:   logger,
	})
	c.background = c.orch.WithAPI(backgroundAPI)

	c.publisher = scheduler.NewDebouncer(ctx, "publish", cfg.PublishDebounce, c.publishIfEnabled, logger)
	c.svc.SetPublisher(c.publisher)
	return c, nil
}

// publishIfEnabled фоновая публикация; занятая блокировка означает, что публикует другая операция
func (c *components) publishIfEnabled(ctx context.Context) error {
	err := c.background.PublishIfEnabled(ctx)
	if errors.Is(err, deploy.ErrBusy) {
		c.logger.Info("Publish skipped, another operation is in progress")
		c.publisher.Trigger()
		return nil
	}
	return err
}

// newApp собирает HTTP-приложение origin
func (c *components) newApp() *app.App {
	deps := app.Deps{
		Service:       c.svc,
		Settings:      c.settings,
		Resolver:      c.resolver,
		Edge:          c.orch,
		Health:        c.reconciler,
		Events:        c.state,
		JWTSecret:     c.cfg.JWTSecret,
		TrustedSubnet: c.cfg.TrustedSubnet,
		Logger:        c.logger,
	}
	if c.db != nil {
		deps.DB = c.db
	}
	return app.NewApp(deps)
}

// jobs периодические задачи: сверка с провайдером и очистка статистики
func (c *components) jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     "reconcile",
			Schedule: c.cfg.ReconcileSchedule,
			Timeout:  2 * time.Minute,
			Run: func(ctx context.Context) error {
				rec, err := c.reconciler.Check(ctx)
				if err != nil {
					return err
				}
				if rec.State == models.HealthDegraded {
					c.auditReconcile(ctx, "Reconcile found a problem: "+rec.Message)
				}
				return nil
			},
		},
		{
			Name:     "stats_cleanup",
			Schedule: c.cfg.StatsCleanupSchedule,
			Timeout:  10 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := c.svc.CleanupStats(ctx, c.cfg.StatsRetentionDays)
				return err
			},
		},
	}
}

func (c *components) auditReconcile(ctx context.Context, message string) {
	if err := c.state.AppendEvent(ctx, "reconcile", message); err != nil {
		c.logger.Warn("Failed to append audit event", zap.Error(err))
	}
}

// Close освобождает ресурсы; безопасен для частично собранных компонентов
func (c *components) Close() {
	if c.publisher != nil {
		c.publisher.Stop()
	}
	if c.rules != nil {
		c.rules.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}
