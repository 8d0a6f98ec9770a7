package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/repository"
)

// maxImportSize предельный размер загружаемого CSV
const maxImportSize = 5 << 20

// RuleListResponse страница правил
type RuleListResponse struct {
	Items []models.Rule `json:"items"`
	Total int           `json:"total"`
}

// TokenRequest тело запроса сохранения токена
type TokenRequest struct {
	Token string `json:"token"`
}

// PrefixRequest тело запроса смены префикса
type PrefixRequest struct {
	Prefix string `json:"prefix"`
}

// PrefixResponse результат смены префикса
type PrefixResponse struct {
	Prefix  string `json:"prefix"`
	Warning string `json:"warning,omitempty"`
}

// ResolveRequest тело запроса проверки slug
type ResolveRequest struct {
	Slug  string `json:"slug"`
	Query string `json:"query"`
}

// StatusResponse ответ операций без собственного результата
type StatusResponse struct {
	Status string              `json:"status"`
	Health *models.HealthRecord `json:"health,omitempty"`
}

// decodeJSON читает JSON-тело запроса
func decodeJSON(r *http.Request, dst interface{}) error {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return errors.New("content type must be application/json")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func (a *App) badRequest(w http.ResponseWriter, msg string) {
	a.writeJSONResponse(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func ruleID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// HandleListRules обрабатывает GET /api/rules
func (a *App) HandleListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.RuleFilter{Search: q.Get("search")}
	if v := q.Get("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			a.badRequest(w, "Invalid enabled filter")
			return
		}
		filter.Enabled = &enabled
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	rules, total, err := a.svc.List(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, RuleListResponse{Items: rules, Total: total})
}

// HandleCreateRule обрабатывает POST /api/rules
func (a *App) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule models.Rule
	if err := decodeJSON(r, &rule); err != nil {
		a.badRequest(w, err.Error())
		return
	}
	created, err := a.svc.Create(r.Context(), rule)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusCreated, created)
}

// HandleGetRule обрабатывает GET /api/rules/{id}
func (a *App) HandleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(r)
	if !ok {
		a.badRequest(w, "Invalid rule ID")
		return
	}
	rule, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, rule)
}

// HandleUpdateRule обрабатывает PUT /api/rules/{id}
func (a *App) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(r)
	if !ok {
		a.badRequest(w, "Invalid rule ID")
		return
	}
	var rule models.Rule
	if err := decodeJSON(r, &rule); err != nil {
		a.badRequest(w, err.Error())
		return
	}
	rule.ID = id
	updated, err := a.svc.Update(r.Context(), rule)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, updated)
}

// HandleDeleteRule обрабатывает DELETE /api/rules/{id}
func (a *App) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(r)
	if !ok {
		a.badRequest(w, "Invalid rule ID")
		return
	}
	if err := a.svc.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExportRules обрабатывает GET /api/rules/export
func (a *App) HandleExportRules(w http.ResponseWriter, r *http.Request) {
	filename := "edgelink-export-" + a.now().UTC().Format(time.DateOnly) + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	if err := a.svc.ExportCSV(r.Context(), w); err != nil {
		a.logger.Error("CSV export failed", zap.Error(err))
	}
}

// HandleImportRules обрабатывает POST /api/rules/import с CSV в теле запроса
func (a *App) HandleImportRules(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.ImportCSV(r.Context(), http.MaxBytesReader(w, r.Body, maxImportSize))
	if err != nil {
		a.badRequest(w, err.Error())
		return
	}
	a.writeJSONResponse(w, http.StatusOK, res)
}

// HandleResolve обрабатывает POST /api/resolve: проверка slug без редиректа и учёта клика
func (a *App) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		a.badRequest(w, err.Error())
		return
	}
	decision := a.resolver.Resolve(r.Context(), req.Slug, models.MatchTest, strings.TrimPrefix(req.Query, "?"))
	a.writeJSONResponse(w, http.StatusOK, decision)
}

// HandleStats обрабатывает GET /api/stats?from=YYYY-MM-DD&to=YYYY-MM-DD (по умолчанию последние 30 дней)
func (a *App) HandleStats(w http.ResponseWriter, r *http.Request) {
	to := repository.Day(a.now())
	from := to.AddDate(0, 0, -29)
	for name, dst := range map[string]*time.Time{"from": &from, "to": &to} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			a.badRequest(w, "Invalid "+name+" date")
			return
		}
		*dst = t
	}

	stats, err := a.svc.Stats(r.Context(), from, to)
	if err != nil {
		a.badRequest(w, err.Error())
		return
	}
	if stats == nil {
		stats = []models.DailyClicks{}
	}
	a.writeJSONResponse(w, http.StatusOK, stats)
}

// HandleSetToken обрабатывает POST /api/edge/token
func (a *App) HandleSetToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		a.badRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		a.badRequest(w, "Token is required")
		return
	}
	info, err := a.edge.SetToken(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, info)
}

// HandleDeleteToken обрабатывает DELETE /api/edge/token
func (a *App) HandleDeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := a.edge.DeleteToken(r.Context()); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDiagnostics обрабатывает POST /api/edge/diagnostics
func (a *App) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	diag, err := a.edge.MatchZone(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, diag)
}

// edgeOperation оборачивает операцию оркестратора в обработчик, отвечающий текущим здоровьем
func (a *App) edgeOperation(op func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r); err != nil {
			a.writeError(w, r, err)
			return
		}
		resp := StatusResponse{Status: "ok"}
		if rec, err := a.health.GetStatus(r.Context()); err == nil {
			resp.Health = &rec
		}
		a.writeJSONResponse(w, http.StatusOK, resp)
	}
}

// HandleEnable обрабатывает POST /api/edge/enable
func (a *App) HandleEnable(w http.ResponseWriter, r *http.Request) {
	a.edgeOperation(func(r *http.Request) error { return a.edge.Enable(r.Context()) })(w, r)
}

// HandleDisable обрабатывает POST /api/edge/disable
func (a *App) HandleDisable(w http.ResponseWriter, r *http.Request) {
	a.edgeOperation(func(r *http.Request) error { return a.edge.Disable(r.Context()) })(w, r)
}

// HandleRepublish обрабатывает POST /api/edge/republish
func (a *App) HandleRepublish(w http.ResponseWriter, r *http.Request) {
	a.edgeOperation(func(r *http.Request) error { return a.edge.Republish(r.Context()) })(w, r)
}

// HandleFixRoute обрабатывает POST /api/edge/fix-route
func (a *App) HandleFixRoute(w http.ResponseWriter, r *http.Request) {
	a.edgeOperation(func(r *http.Request) error { return a.edge.FixRoute(r.Context()) })(w, r)
}

// HandleChangePrefix обрабатывает PUT /api/settings/prefix.
// Если перенос маршрута не удался, префикс всё равно сохраняется, а в ответе есть предупреждение.
func (a *App) HandleChangePrefix(w http.ResponseWriter, r *http.Request) {
	var req PrefixRequest
	if err := decodeJSON(r, &req); err != nil {
		a.badRequest(w, err.Error())
		return
	}
	prefix, err := a.settings.ChangePrefix(r.Context(), req.Prefix, a.edge)
	if err != nil && prefix == "" {
		a.writeError(w, r, err)
		return
	}
	resp := PrefixResponse{Prefix: prefix}
	if err != nil {
		resp.Warning = err.Error()
	}
	a.writeJSONResponse(w, http.StatusOK, resp)
}

// HandleHealth обрабатывает GET /api/edge/health
func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	rec, err := a.health.GetStatus(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, rec)
}

// HandleHealthCheck обрабатывает POST /api/edge/health/check
func (a *App) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	rec, err := a.health.Check(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, rec)
}

// HandleEvents обрабатывает GET /api/edge/events
func (a *App) HandleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.events.Events(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, events)
}
