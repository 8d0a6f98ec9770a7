// Команда edgelink запускает origin-сервис редиректов и управляет edge-развёртыванием.
//
// Подкоманды:
//
//	serve            HTTP и gRPC серверы, фоновые задачи (по умолчанию)
//	deactivate       снять маршрут воркера, сохранив флаг edge-режима
//	uninstall        удалить маршрут и скрипт воркера, сбросить состояние
//	export-snapshot  записать текущий снимок правил в файл или stdout
//	token            выпустить JWT администратора
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/log"
	"github.com/tempizhere/edgelink/internal/middleware"
	"github.com/tempizhere/edgelink/internal/snapshot"
)

// Подкоманды
const (
	cmdServe          = "serve"
	cmdDeactivate     = "deactivate"
	cmdUninstall      = "uninstall"
	cmdExportSnapshot = "export-snapshot"
	cmdToken          = "token"
)

// cleanupTimeout ограничивает deactivate и uninstall
const cleanupTimeout = time.Minute

// adminTokenTTL срок действия токена, выпущенного подкомандой token
const adminTokenTTL = 24 * time.Hour

// splitCommand отделяет подкоманду от флагов конфигурации
func splitCommand(args []string) (string, []string, error) {
	if len(args) == 0 || len(args[0]) > 0 && args[0][0] == '-' {
		return cmdServe, args, nil
	}
	switch args[0] {
	case cmdServe, cmdDeactivate, cmdUninstall, cmdExportSnapshot, cmdToken:
		return args[0], args[1:], nil
	}
	return "", nil, fmt.Errorf("unknown command %q", args[0])
}

func main() {
	command, args, err := splitCommand(os.Args[1:])
	if err != nil {
		panic(err)
	}

	var outPath string
	if command == cmdExportSnapshot {
		fs := flag.NewFlagSet(cmdExportSnapshot, flag.ContinueOnError)
		fs.StringVar(&outPath, "o", "", "output file (stdout if empty)")
		// Флаги подкоманды идут до флагов конфигурации: export-snapshot -o file -- -d dsn
		if err := fs.Parse(args); err != nil {
			panic(err)
		}
		args = fs.Args()
	}

	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		panic(err)
	}

	logger, err := log.NewFileLogger(cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.WeakJWTSecret() {
		logger.Warn("JWT secret is weak, set a stronger JWT_SECRET")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, command, cfg, outPath, os.Stdout, logger); err != nil {
		logger.Fatal("Command failed", zap.String("command", command), zap.Error(err))
	}
}

// run выполняет подкоманду
func run(ctx context.Context, command string, cfg *config.Config, outPath string, stdout io.Writer, logger *zap.Logger) error {
	if command == cmdToken {
		token, err := middleware.GenerateAdminToken(cfg.JWTSecret, "admin", adminTokenTTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, token)
		return err
	}

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	switch command {
	case cmdDeactivate:
		opCtx, cancel := context.WithTimeout(ctx, cleanupTimeout)
		defer cancel()
		c.background.RemoveRouteOnDeactivation(opCtx)
		return nil
	case cmdUninstall:
		opCtx, cancel := context.WithTimeout(ctx, cleanupTimeout)
		defer cancel()
		c.background.FullCleanup(opCtx)
		return nil
	case cmdExportSnapshot:
		return exportSnapshot(ctx, c, outPath, stdout)
	}
	return serve(ctx, c)
}

// exportSnapshot пишет снимок включённых правил в файл или stdout
func exportSnapshot(ctx context.Context, c *components, outPath string, stdout io.Writer) error {
	rules, err := c.rules.GetEnabledRulesForSnapshot(ctx)
	if err != nil {
		return err
	}
	prefix, err := c.settings.Prefix(ctx)
	if err != nil {
		return err
	}
	snap := snapshot.Build(rules, prefix, time.Now())
	if _, err := snapshot.CheckSize(snap.Links); err != nil {
		return err
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}

	if outPath == "" {
		_, err = stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	c.logger.Info("Snapshot exported", zap.String("path", outPath), zap.Int("links", len(snap.Links)))
	return nil
}
