package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/tempizhere/edgelink/internal/grpc/proto"
	"github.com/tempizhere/edgelink/internal/middleware"
)

// contextKey определяет тип для ключей контекста
type contextKey string

const adminKey contextKey = "admin"

// publicMethods доступны без токена администратора
var publicMethods = map[string]bool{
	proto.MethodPing: true,
}

// AdminFromContext возвращает subject администратора, проверенного интерцептором
func AdminFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(adminKey).(string)
	return sub, ok && sub != ""
}

// AuthInterceptor создаёт интерцептор, проверяющий JWT администратора в метаданных authorization
func AuthInterceptor(secret string, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 || !strings.HasPrefix(authHeaders[0], "Bearer ") {
			return nil, status.Error(codes.Unauthenticated, "missing admin token")
		}

		claims, err := middleware.ParseAdminToken(secret, strings.TrimPrefix(authHeaders[0], "Bearer "))
		if err != nil {
			logger.Warn("Invalid admin token", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "invalid admin token")
		}

		ctx = context.WithValue(ctx, adminKey, claims.Subject)
		return handler(ctx, req)
	}
}

// TrustedSubnetInterceptor создаёт интерцептор для проверки доверенной подсети.
// Проверяется только Republish; без подсети метод недоступен.
func TrustedSubnetInterceptor(trustedSubnet string, logger *zap.Logger) grpc.UnaryServerInterceptor {
	subnet := middleware.NewTrustedSubnet(trustedSubnet)
	if errors.Is(subnet.Err(), middleware.ErrInvalidSubnet) {
		logger.Error("Invalid trusted subnet", zap.Error(subnet.Err()))
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if info.FullMethod != proto.MethodRepublish {
			return handler(ctx, req)
		}

		p, ok := peer.FromContext(ctx)
		if !ok {
			return nil, status.Error(codes.PermissionDenied, "failed to get peer info")
		}
		clientIP := p.Addr.String()
		if tcpAddr, ok := p.Addr.(*net.TCPAddr); ok {
			clientIP = tcpAddr.IP.String()
		}

		switch err := subnet.Check(clientIP); {
		case err == nil:
			return handler(ctx, req)
		case errors.Is(err, middleware.ErrInvalidSubnet):
			return nil, status.Error(codes.Internal, "invalid trusted subnet configuration")
		case errors.Is(err, middleware.ErrSubnetNotConfigured):
			return nil, status.Error(codes.PermissionDenied, "trusted subnet not configured")
		default:
			logger.Warn("Access denied from untrusted IP",
				zap.String("ip", clientIP),
				zap.Stringer("subnet", subnet))
			return nil, status.Error(codes.PermissionDenied, "access denied")
		}
	}
}

// LoggingInterceptor создаёт интерцептор для логирования gRPC запросов
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		var clientIP string
		if p, ok := peer.FromContext(ctx); ok {
			clientIP = p.Addr.String()
		}

		code := status.Code(err)

		logger.Info("gRPC request",
			zap.String("method", info.FullMethod),
			zap.String("client_ip", clientIP),
			zap.String("status_code", code.String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		return resp, err
	}
}

// NewGRPCServer собирает grpc.Server с цепочкой интерцепторов и зарегистрированным сервисом
func NewGRPCServer(srv proto.ControlServiceServer, secret, trustedSubnet string, logger *zap.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(logger),
		TrustedSubnetInterceptor(trustedSubnet, logger),
		AuthInterceptor(secret, logger),
	))
	proto.RegisterControlServiceServer(s, srv)
	return s
}
