// Package middleware содержит HTTP middleware сервиса редиректов.
// Включает авторизацию администратора, логирование, сжатие ответов и проверку доверенных подсетей.
package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrSubnetNotConfigured доверенная подсеть не задана, служебный доступ закрыт
	ErrSubnetNotConfigured = errors.New("trusted subnet is not configured")
	// ErrInvalidSubnet доверенная подсеть задана с ошибкой
	ErrInvalidSubnet = errors.New("invalid trusted subnet")
	// ErrUntrustedIP адрес клиента вне доверенной подсети или не распознан
	ErrUntrustedIP = errors.New("ip is not in trusted subnet")
)

// TrustedSubnet проверяет принадлежность адреса доверенной подсети.
// Используется HTTP middleware и gRPC интерцептором.
type TrustedSubnet struct {
	cidr    string
	network *net.IPNet
	err     error
}

// NewTrustedSubnet разбирает CIDR; ошибка разбора возвращается при каждой проверке
func NewTrustedSubnet(cidr string) *TrustedSubnet {
	s := &TrustedSubnet{cidr: cidr}
	switch {
	case cidr == "":
		s.err = ErrSubnetNotConfigured
	default:
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			s.err = fmt.Errorf("%w %q: %v", ErrInvalidSubnet, cidr, err)
		}
		s.network = network
	}
	return s
}

// String возвращает исходную запись подсети
func (s *TrustedSubnet) String() string {
	return s.cidr
}

// Err возвращает ошибку конфигурации подсети
func (s *TrustedSubnet) Err() error {
	return s.err
}

// Check проверяет адрес в текстовом виде
func (s *TrustedSubnet) Check(rawIP string) error {
	if s.err != nil {
		return s.err
	}
	ip := net.ParseIP(strings.TrimSpace(rawIP))
	if ip == nil || !s.network.Contains(ip) {
		return ErrUntrustedIP
	}
	return nil
}

// clientIP адрес клиента из X-Real-IP, иначе первый адрес X-Forwarded-For
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return ""
}

// TrustedSubnetMiddleware закрывает служебные маршруты (например, /metrics) для адресов вне подсети.
// Адрес берётся из X-Real-IP или X-Forwarded-For, выставленных прокси.
func TrustedSubnetMiddleware(trustedSubnet string, logger *zap.Logger) func(http.Handler) http.Handler {
	subnet := NewTrustedSubnet(trustedSubnet)
	if errors.Is(subnet.Err(), ErrInvalidSubnet) {
		logger.Error("Invalid trusted_subnet CIDR", zap.Error(subnet.Err()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			err := subnet.Check(ip)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrInvalidSubnet):
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			default:
				logger.Warn("Access denied",
					zap.String("method", r.Method),
					zap.String("uri", r.RequestURI),
					zap.String("client_ip", ip),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err))
				http.Error(w, "Access denied", http.StatusForbidden)
			}
		})
	}
}
