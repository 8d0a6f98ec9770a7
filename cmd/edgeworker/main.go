// Команда edgeworker обслуживает редиректы по файлу снимка и проксирует
// остальные запросы на origin. Снимок перечитывается по SIGHUP и по таймеру.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tempizhere/edgelink/cmd/edgeworker/config"
	"github.com/tempizhere/edgelink/internal/edge"
	"github.com/tempizhere/edgelink/internal/log"
	"github.com/tempizhere/edgelink/internal/middleware"
	"github.com/tempizhere/edgelink/internal/snapshot"
)

// shutdownTimeout время на завершение активных запросов
const shutdownTimeout = 10 * time.Second

// newOriginProxy создаёт обратный прокси на origin
func newOriginProxy(rawURL string, logger *zap.Logger) (*httputil.ReverseProxy, error) {
	origin, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin url: %w", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(origin)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("Origin request failed", zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}

// newWorker собирает обработчик и загрузчик снимка.
// Отсутствующий или повреждённый файл не мешает старту: все запросы уходят на origin.
func newWorker(cfg *config.Config, logger *zap.Logger) (*edge.Handler, *loader, error) {
	proxy, err := newOriginProxy(cfg.OriginURL, logger)
	if err != nil {
		return nil, nil, err
	}
	handler := edge.NewHandler(snapshot.Snapshot{Version: snapshot.Version}, proxy, logger)
	l := &loader{path: cfg.SnapshotFile, handler: handler, logger: logger}
	if _, err := l.Reload(true); err != nil {
		logger.Warn("Snapshot not loaded, passing all requests to origin", zap.Error(err))
	}
	return handler, l, nil
}

// watch перечитывает снимок по SIGHUP и по таймеру до отмены ctx
func watch(ctx context.Context, l *loader, interval time.Duration, hup <-chan os.Signal, logger *zap.Logger) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := l.Reload(true); err != nil {
				logger.Error("Snapshot reload failed", zap.Error(err))
			}
		case <-tick:
			if _, err := l.Reload(false); err != nil {
				logger.Warn("Snapshot poll failed", zap.Error(err))
			}
		}
	}
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		panic(err)
	}

	logger := log.NewLogger()
	defer func() { _ = logger.Sync() }()

	handler, l, err := newWorker(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create edge worker", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	server := &http.Server{
		Addr:              cfg.RunAddr,
		Handler:           middleware.LoggingMiddleware(logger)(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting edge worker",
			zap.String("address", cfg.RunAddr),
			zap.String("origin", cfg.OriginURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		watch(gctx, l, cfg.ReloadInterval, hup, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down edge worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Edge worker failed", zap.Error(err))
	}
}
