package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test_secret"

func TestAdminToken_RoundTrip(t *testing.T) {
	token, err := GenerateAdminToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	claims, err := ParseAdminToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = ParseAdminToken("other_secret", token)
	assert.Error(t, err)

	expired, err := GenerateAdminToken(testSecret, "alice", -time.Minute)
	require.NoError(t, err)
	_, err = ParseAdminToken(testSecret, expired)
	assert.Error(t, err)
}

func TestParseAdminToken_WrongRole(t *testing.T) {
	claims := AdminClaims{Role: "user"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseAdminToken(testSecret, token)
	assert.Error(t, err)
}

func TestAdminAuth(t *testing.T) {
	valid, err := GenerateAdminToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name           string
		header         string
		cookie         string
		expectedStatus int
	}{
		{name: "no token", expectedStatus: http.StatusUnauthorized},
		{name: "bearer token", header: "Bearer " + valid, expectedStatus: http.StatusOK},
		{name: "cookie token", cookie: valid, expectedStatus: http.StatusOK},
		{name: "garbage token", header: "Bearer garbage", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject, _ = AdminFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AdminCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()

			AdminAuth(testSecret, zap.NewNop())(handler).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "alice", subject)
			}
		})
	}
}

func TestOptionalAdmin(t *testing.T) {
	valid, err := GenerateAdminToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	var admin bool
	handler := OptionalAdmin(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin = IsAdmin(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/go/docs", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, admin)

	req = httptest.NewRequest(http.MethodGet, "/go/docs", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, admin)

	req = httptest.NewRequest(http.MethodGet, "/go/docs", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, admin)
}
