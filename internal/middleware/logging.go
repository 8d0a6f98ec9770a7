package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/metrics"
	"github.com/tempizhere/edgelink/internal/snapshot"
)

// statusRecorder запоминает код и размер ответа
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	size       int
}

// WriteHeader перехватывает код статуса
func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write перехватывает размер ответа
func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// isRedirect сообщает, что код относится к классу 3xx
func isRedirect(code int) bool {
	return code >= 300 && code < 400
}

// LoggingMiddleware логирует запросы и пишет длительность в гистограмму метрик.
// Для редиректов в лог попадают Location и уровень, выполнивший редирект.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, strconv.Itoa(rec.statusCode)).
				Observe(duration.Seconds())

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("uri", r.RequestURI),
				zap.Int("status", rec.statusCode),
				zap.Int("size", rec.size),
				zap.Duration("duration", duration),
			}
			if isRedirect(rec.statusCode) {
				fields = append(fields,
					zap.String("location", w.Header().Get("Location")),
					zap.String("handled_by", w.Header().Get(snapshot.HeaderHandledBy)))
			}
			logger.Info("HTTP request", fields...)
		})
	}
}
