package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

// minGzipSize ответы меньше этого размера не сжимаются
const minGzipSize = 1400

// compressibleTypes типы содержимого, которые имеет смысл сжимать
var compressibleTypes = []string{"application/json", "application/javascript", "text/csv", "text/html", "text/plain"}

// GzipMiddleware обрабатывает Gzip-сжатие для запросов и ответов административного API
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Обработка сжатого запроса
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, "Invalid gzip data", http.StatusBadRequest)
				return
			}
			defer gz.Close()
			r.Body = io.NopCloser(gz)
		}

		// Проверка, поддерживает ли клиент сжатие ответа
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")
		gw := &gzipResponseWriter{ResponseWriter: w}
		defer gw.Close()

		next.ServeHTTP(gw, r)
	})
}

// gzipResponseWriter оборачивает http.ResponseWriter для сжатия ответа
type gzipResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	isGzipValid bool
	// decided решение о сжатии принимается по первой записи
	decided bool
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.decided {
		w.decided = true
		if compressible(w.Header().Get("Content-Type")) && len(b) >= minGzipSize {
			w.gz = gzip.NewWriter(w.ResponseWriter)
			w.isGzipValid = true
			w.Header().Set("Content-Encoding", "gzip")
		}
	}
	if !w.isGzipValid {
		return w.ResponseWriter.Write(b)
	}
	return w.gz.Write(b)
}

func compressible(contentType string) bool {
	for _, t := range compressibleTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// Close закрывает gzip.Writer
func (w *gzipResponseWriter) Close() error {
	if w.gz != nil && w.isGzipValid {
		if err := w.gz.Close(); err != nil {
			return err
		}
	}
	return nil
}
