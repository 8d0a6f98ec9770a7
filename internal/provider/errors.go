package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured возвращается, если API-токен не сохранён
	ErrNotConfigured = errors.New("API token not configured")
	// ErrRateLimited лимит запросов не снялся за все попытки
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")
	// ErrBudgetExceeded очередное ожидание вышло бы за бюджет времени
	ErrBudgetExceeded = errors.New("request timed out, please try again later")
	// ErrZoneNotFound для хоста не нашлось зоны
	ErrZoneNotFound = errors.New("no matching zone found for this domain")
)

// APIError ошибка, возвращённая API провайдера
type APIError struct {
	Code    int
	Message string
}

// Error реализует интерфейс error
func (e *APIError) Error() string {
	return e.Message
}

// Is позволяет сравнивать 429 с ErrRateLimited через errors.Is
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}

// IsNotFound сообщает, что ресурс у провайдера отсутствует
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func newAPIError(code int, messages []string) *APIError {
	if len(messages) == 0 {
		return &APIError{Code: code, Message: fmt.Sprintf("API error: HTTP %d", code)}
	}
	msg := messages[0]
	for _, m := range messages[1:] {
		msg += "; " + m
	}
	return &APIError{Code: code, Message: msg}
}
