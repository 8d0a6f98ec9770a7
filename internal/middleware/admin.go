package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// AdminCookie имя куки с токеном администратора
const AdminCookie = "admin_token"

// adminRole значение claim role у администратора
const adminRole = "admin"

// adminKey ключ контекста с именем администратора
type adminKey struct{}

// AdminClaims claims токена администратора
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GenerateAdminToken выпускает токен администратора, подписанный HS256
func GenerateAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: adminRole,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAdminToken проверяет подпись, срок действия и роль токена
func ParseAdminToken(secret, tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Role != adminRole {
		return nil, errors.New("token is not an admin token")
	}
	return claims, nil
}

// tokenFromRequest берёт токен из заголовка Authorization или из куки
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie(AdminCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// AdminAuth пропускает только запросы с действующим токеном администратора
func AdminAuth(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims, err := ParseAdminToken(secret, raw)
			if err != nil {
				logger.Warn("Invalid admin token",
					zap.String("uri", r.RequestURI),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), adminKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAdmin отмечает запрос администратора, но никогда не отклоняет запрос
func OptionalAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := tokenFromRequest(r); raw != "" {
				if claims, err := ParseAdminToken(secret, raw); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), adminKey{}, claims.Subject))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsAdmin сообщает, что запрос выполнен администратором
func IsAdmin(r *http.Request) bool {
	_, ok := AdminFromContext(r.Context())
	return ok
}

// AdminFromContext извлекает имя администратора из контекста
func AdminFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(adminKey{}).(string)
	return subject, ok
}
