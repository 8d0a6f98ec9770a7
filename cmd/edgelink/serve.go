package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	edgegrpc "github.com/tempizhere/edgelink/internal/grpc"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/scheduler"
)

// shutdownTimeout время на завершение активных запросов
const shutdownTimeout = 10 * time.Second

// serve запускает HTTP и gRPC серверы и периодические задачи до отмены ctx
func serve(ctx context.Context, c *components) error {
	periodic := scheduler.NewPeriodic(c.logger)
	for _, job := range c.jobs() {
		if err := periodic.Register(job); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              c.cfg.RunAddr,
		Handler:           c.newApp().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var db repository.Database
	if c.db != nil {
		db = c.db
	}
	grpcServer := edgegrpc.NewGRPCServer(
		edgegrpc.NewServer(c.resolver, c.reconciler, c.orch, db, c.logger),
		c.cfg.JWTSecret, c.cfg.TrustedSubnet, c.logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.logger.Info("Starting HTTP server", zap.String("address", c.cfg.RunAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", c.cfg.GRPCAddr)
		if err != nil {
			return err
		}
		c.logger.Info("Starting gRPC server", zap.String("address", c.cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		periodic.Start()
		<-gctx.Done()
		periodic.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
