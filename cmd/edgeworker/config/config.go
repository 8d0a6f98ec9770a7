// Package config содержит настройки edge-воркера.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config содержит настройки edge-воркера
type Config struct {
	RunAddr        string        `koanf:"run_addr" validate:"required"`
	OriginURL      string        `koanf:"origin_url" validate:"required,url"`
	SnapshotFile   string        `koanf:"snapshot_file" validate:"required"`
	ReloadInterval time.Duration `koanf:"reload_interval" validate:"min=0"`
}

// envKeys переменные окружения воркера
var envKeys = map[string]string{
	"EDGE_ADDRESS":    "run_addr",
	"ORIGIN_URL":      "origin_url",
	"SNAPSHOT_FILE":   "snapshot_file",
	"RELOAD_INTERVAL": "reload_interval",
}

// Load читает флаги и переменные окружения; переменные окружения важнее значений по умолчанию,
// явно заданные флаги важнее переменных окружения
func Load(args []string) (*Config, error) {
	cfg := &Config{
		RunAddr:        ":8081",
		OriginURL:      "http://localhost:8080",
		SnapshotFile:   "snapshot.json",
		ReloadInterval: 30 * time.Second,
	}

	fs := flag.NewFlagSet("edgeworker", flag.ContinueOnError)
	flagRunAddr := fs.String("a", cfg.RunAddr, "address and port to run edge worker")
	flagOrigin := fs.String("o", cfg.OriginURL, "origin URL for pass-through requests")
	flagSnapshot := fs.String("s", cfg.SnapshotFile, "path to snapshot file")
	flagReload := fs.Duration("i", cfg.ReloadInterval, "snapshot reload interval, 0 disables polling")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return envKeys[s] }), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			cfg.RunAddr = *flagRunAddr
		case "o":
			cfg.OriginURL = *flagOrigin
		case "s":
			cfg.SnapshotFile = *flagSnapshot
		case "i":
			cfg.ReloadInterval = *flagReload
		}
	})

	if cfg.RunAddr != "" && !strings.Contains(cfg.RunAddr, ":") {
		cfg.RunAddr = ":" + cfg.RunAddr
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
