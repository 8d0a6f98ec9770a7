// Package grpc содержит реализацию gRPC сервера управления редиректами
package grpc

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tempizhere/edgelink/internal/deploy"
	"github.com/tempizhere/edgelink/internal/grpc/proto"
	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/provider"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/snapshot"
)

// SlugResolver разрешает slug в решение о редиректе
type SlugResolver interface {
	Resolve(ctx context.Context, rawSlug string, matchedBy models.MatchSource, rawQuery string) models.RedirectDecision
}

// HealthChecker чтение и принудительная проверка состояния edge
type HealthChecker interface {
	GetStatus(ctx context.Context) (models.HealthRecord, error)
	Check(ctx context.Context) (models.HealthRecord, error)
}

// Republisher пересобирает и загружает снимок
type Republisher interface {
	Republish(ctx context.Context) error
}

// Server реализует gRPC сервис управления
type Server struct {
	proto.UnimplementedControlServiceServer
	resolver  SlugResolver
	health    HealthChecker
	publisher Republisher
	db        repository.Database
	logger    *zap.Logger
}

// NewServer создаёт новый gRPC сервер
func NewServer(resolver SlugResolver, health HealthChecker, publisher Republisher, db repository.Database, logger *zap.Logger) *Server {
	return &Server{
		resolver:  resolver,
		health:    health,
		publisher: publisher,
		db:        db,
		logger:    logger,
	}
}

// Resolve разрешает slug без редиректа и учёта клика
func (s *Server) Resolve(ctx context.Context, req *proto.ResolveRequest) (*proto.ResolveResponse, error) {
	if strings.TrimSpace(req.Slug) == "" {
		return nil, status.Error(codes.InvalidArgument, "slug is required")
	}
	d := s.resolver.Resolve(ctx, req.Slug, models.MatchTest, strings.TrimPrefix(req.Query, "?"))
	return &proto.ResolveResponse{
		ShouldRedirect: d.ShouldRedirect,
		TargetURL:      d.TargetURL,
		StatusCode:     int32(d.StatusCode),
		LinkID:         d.LinkID,
		MatchedBy:      string(d.MatchedBy),
	}, nil
}

// GetHealth возвращает кэшированное состояние
func (s *Server) GetHealth(ctx context.Context, _ *proto.HealthRequest) (*proto.HealthResponse, error) {
	rec, err := s.health.GetStatus(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return healthResponse(rec), nil
}

// CheckHealth выполняет проверку у провайдера
func (s *Server) CheckHealth(ctx context.Context, _ *proto.HealthRequest) (*proto.HealthResponse, error) {
	rec, err := s.health.Check(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return healthResponse(rec), nil
}

// Republish пересобирает снимок и возвращает состояние после операции
func (s *Server) Republish(ctx context.Context, _ *proto.RepublishRequest) (*proto.RepublishResponse, error) {
	if err := s.publisher.Republish(ctx); err != nil {
		return nil, s.mapError(err)
	}
	resp := &proto.RepublishResponse{}
	if rec, err := s.health.GetStatus(ctx); err == nil {
		resp.Health = healthResponse(rec)
	}
	return resp, nil
}

// Ping проверяет состояние сервиса
func (s *Server) Ping(ctx context.Context, _ *proto.PingRequest) (*proto.PingResponse, error) {
	if s.db == nil {
		return &proto.PingResponse{DatabaseAvailable: false}, nil
	}

	err := s.db.PingContext(ctx)
	return &proto.PingResponse{
		DatabaseAvailable: err == nil,
	}, nil
}

func healthResponse(rec models.HealthRecord) *proto.HealthResponse {
	resp := &proto.HealthResponse{
		State:   string(rec.State),
		Message: rec.Message,
	}
	if rec.LastCheck != nil {
		resp.LastCheckUnix = rec.LastCheck.Unix()
	}
	if rec.RouteMismatch != nil {
		resp.ExpectedPattern = rec.RouteMismatch.Expected
		resp.ActualPattern = rec.RouteMismatch.Actual
	}
	return resp
}

// mapError преобразует ошибки развёртывания в gRPC статусы
func (s *Server) mapError(err error) error {
	var (
		conflict *deploy.ConflictError
		size     *snapshot.SizeLimitError
		apiErr   *provider.APIError
	)
	switch {
	case errors.Is(err, deploy.ErrBusy), errors.As(err, &conflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, deploy.ErrEdgeDisabled),
		errors.Is(err, deploy.ErrNoToken),
		errors.Is(err, deploy.ErrNotReady),
		errors.Is(err, provider.ErrNotConfigured):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &size):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, provider.ErrRateLimited):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, provider.ErrBudgetExceeded), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &apiErr):
		return status.Error(codes.Unavailable, err.Error())
	default:
		s.logger.Error("Unexpected error", zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
}
