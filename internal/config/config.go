// Package config загружает конфигурацию сервиса из файла, окружения и флагов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	zxcvbn "github.com/ccojocar/zxcvbn-go"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

// weakSecretScore оценка zxcvbn, ниже которой секрет считается слабым
const weakSecretScore = 3

// Config содержит настройки приложения
type Config struct {
	RunAddr              string        `koanf:"run_addr" validate:"required"`
	GRPCAddr             string        `koanf:"grpc_addr"`
	BaseURL              string        `koanf:"base_url" validate:"required,url"`
	Prefix               string        `koanf:"prefix" validate:"required"`
	DatabaseDSN          string        `koanf:"database_dsn"`
	RedisAddr            string        `koanf:"redis_addr"`
	JWTSecret            string        `koanf:"jwt_secret" validate:"required"`
	TrustedSubnet        string        `koanf:"trusted_subnet" validate:"omitempty,cidr"`
	LogFile              string        `koanf:"log_file"`
	ProviderAPIBase      string        `koanf:"provider_api_base" validate:"required,url"`
	ProviderToken        string        `koanf:"provider_token"`
	WorkerName           string        `koanf:"worker_name" validate:"required"`
	UIBudget             time.Duration `koanf:"ui_budget" validate:"min=0"`
	PublishDebounce      time.Duration `koanf:"publish_debounce" validate:"min=0"`
	ReconcileSchedule    string        `koanf:"reconcile_schedule"`
	StatsCleanupSchedule string        `koanf:"stats_cleanup_schedule"`
	StatsRetentionDays   int           `koanf:"stats_retention_days" validate:"min=0"`
	ProviderRPS          float64       `koanf:"provider_rps" validate:"gt=0"`
	SecretBackend        string        `koanf:"secret_backend" validate:"oneof=memory file vault"`
	SecretPath           string        `koanf:"secret_path" validate:"required_if=SecretBackend file"`
	VaultPath            string        `koanf:"vault_path" validate:"required_if=SecretBackend vault"`
	RuleCacheTTL         time.Duration `koanf:"rule_cache_ttl" validate:"min=0"`
	RuleCacheSize        int           `koanf:"rule_cache_size" validate:"min=1"`
}

// envKeys сопоставляет переменные окружения ключам конфигурации
var envKeys = map[string]string{
	"SERVER_ADDRESS":         "run_addr",
	"GRPC_ADDRESS":           "grpc_addr",
	"BASE_URL":               "base_url",
	"EDGE_PREFIX":            "prefix",
	"DATABASE_DSN":           "database_dsn",
	"REDIS_ADDR":             "redis_addr",
	"JWT_SECRET":             "jwt_secret",
	"TRUSTED_SUBNET":         "trusted_subnet",
	"LOG_FILE":               "log_file",
	"PROVIDER_API_BASE":      "provider_api_base",
	"PROVIDER_TOKEN":         "provider_token",
	"WORKER_NAME":            "worker_name",
	"UI_BUDGET":              "ui_budget",
	"PUBLISH_DEBOUNCE":       "publish_debounce",
	"RECONCILE_SCHEDULE":     "reconcile_schedule",
	"STATS_CLEANUP_SCHEDULE": "stats_cleanup_schedule",
	"STATS_RETENTION_DAYS":   "stats_retention_days",
	"PROVIDER_RPS":           "provider_rps",
	"SECRET_BACKEND":         "secret_backend",
	"SECRET_PATH":            "secret_path",
	"VAULT_PATH":             "vault_path",
	"RULE_CACHE_TTL":         "rule_cache_ttl",
	"RULE_CACHE_SIZE":        "rule_cache_size",
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		RunAddr:              ":8080",
		GRPCAddr:             ":3200",
		BaseURL:              "http://localhost:8080",
		Prefix:               DefaultPrefix,
		JWTSecret:            "default_jwt_secret",
		ProviderAPIBase:      "https://api.cloudflare.com/client/v4",
		WorkerName:           DefaultWorkerName,
		UIBudget:             15 * time.Second,
		PublishDebounce:      10 * time.Second,
		ReconcileSchedule:    "@hourly",
		StatsCleanupSchedule: "@daily",
		StatsRetentionDays:   90,
		ProviderRPS:          4,
		SecretBackend:        "memory",
		VaultPath:            "secret/edgelink",
		RuleCacheTTL:         30 * time.Second,
		RuleCacheSize:        10000,
	}
}

// Load собирает конфигурацию по слоям: значения по умолчанию, YAML-файл, .env,
// переменные окружения и явно заданные флаги. Каждый следующий слой важнее предыдущего.
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("edgelink", flag.ContinueOnError)
	configFile := fs.String("c", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flagRunAddr := fs.String("a", cfg.RunAddr, "address and port to run server")
	flagGRPCAddr := fs.String("g", cfg.GRPCAddr, "address and port to run gRPC server")
	flagBaseURL := fs.String("b", cfg.BaseURL, "base URL of the origin site")
	flagPrefix := fs.String("p", cfg.Prefix, "redirect path prefix")
	flagDatabaseDSN := fs.String("d", cfg.DatabaseDSN, "database DSN for PostgreSQL")
	flagRedisAddr := fs.String("r", cfg.RedisAddr, "redis address for deploy locks")
	flagJWTSecret := fs.String("j", cfg.JWTSecret, "JWT secret key")
	flagTrustedSubnet := fs.String("t", cfg.TrustedSubnet, "trusted subnet in CIDR notation")
	flagLogFile := fs.String("l", cfg.LogFile, "path to rotated log file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// .env не обязателен
	_ = godotenv.Load()

	k := koanf.New(".")
	if *configFile != "" {
		if err := k.Load(file.Provider(*configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", *configFile, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Флаги применяются, только если заданы явно
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			cfg.RunAddr = *flagRunAddr
		case "g":
			cfg.GRPCAddr = *flagGRPCAddr
		case "b":
			cfg.BaseURL = *flagBaseURL
		case "p":
			cfg.Prefix = *flagPrefix
		case "d":
			cfg.DatabaseDSN = *flagDatabaseDSN
		case "r":
			cfg.RedisAddr = *flagRedisAddr
		case "j":
			cfg.JWTSecret = *flagJWTSecret
		case "t":
			cfg.TrustedSubnet = *flagTrustedSubnet
		case "l":
			cfg.LogFile = *flagLogFile
		}
	})

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey возвращает ключ конфигурации для переменной окружения; неизвестные переменные пропускаются
func envKey(name string) string {
	return envKeys[name]
}

// normalize приводит адреса и префикс к каноническому виду
func (c *Config) normalize() {
	if c.RunAddr != "" && !strings.Contains(c.RunAddr, ":") {
		c.RunAddr = ":" + c.RunAddr
	}
	if c.GRPCAddr != "" && !strings.Contains(c.GRPCAddr, ":") {
		c.GRPCAddr = ":" + c.GRPCAddr
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		c.BaseURL = "http://" + c.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.Prefix = strings.ToLower(strings.Trim(c.Prefix, "/ "))
}

// Validate проверяет конфигурацию по тегам validate
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// Host возвращает хост сайта в нижнем регистре
func (c *Config) Host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// WeakJWTSecret сообщает, что секрет для подписи токенов администратора легко подобрать
func (c *Config) WeakJWTSecret() bool {
	if c.JWTSecret == "" {
		return false
	}
	return zxcvbn.PasswordStrength(c.JWTSecret, nil).Score < weakSecretScore
}
