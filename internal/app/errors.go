package app

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/deploy"
	"github.com/tempizhere/edgelink/internal/provider"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/service"
	"github.com/tempizhere/edgelink/internal/snapshot"
	"github.com/tempizhere/edgelink/internal/validation"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// statusFor сопоставляет ошибку коду HTTP
func statusFor(err error) int {
	var (
		verrs    validation.Errors
		conflict *deploy.ConflictError
		size     *snapshot.SizeLimitError
		apiErr   *provider.APIError
	)
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, service.ErrInvalidPrefix),
		errors.Is(err, deploy.ErrTokenInactive):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, deploy.ErrBusy), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, deploy.ErrNoToken),
		errors.Is(err, deploy.ErrNotReady),
		errors.Is(err, deploy.ErrEdgeDisabled),
		errors.Is(err, provider.ErrNotConfigured),
		errors.Is(err, provider.ErrZoneNotFound):
		return http.StatusPreconditionFailed
	case errors.As(err, &size):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, provider.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, provider.ErrBudgetExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError пишет ошибку в JSON; внутренние ошибки скрываются от клиента
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		resp.Error = "validation failed"
		resp.Fields = verrs
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Error(err))
		resp.Error = "Internal server error"
	}
	a.writeJSONResponse(w, status, resp)
}
