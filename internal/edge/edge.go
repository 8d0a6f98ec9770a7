// Package edge реализует обработчик edge-уровня поверх встроенного снимка.
// Любая неоднозначность или ошибка передаёт запрос дальше, к origin.
package edge

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/resolver"
	"github.com/tempizhere/edgelink/internal/snapshot"
	"github.com/tempizhere/edgelink/internal/validation"
)

var targetSchemeRe = regexp.MustCompile(`(?i)^https?://`)

// Decision результат обработки запроса на edge
type Decision struct {
	Redirect   bool
	TargetURL  string
	StatusCode int
}

// Handler отвечает редиректом по снимку или передаёт запрос в next
type Handler struct {
	snap   atomic.Pointer[snapshot.Snapshot]
	next   http.Handler
	logger *zap.Logger
}

// NewHandler создаёт новый экземпляр Handler
func NewHandler(s snapshot.Snapshot, next http.Handler, logger *zap.Logger) *Handler {
	h := &Handler{next: next, logger: logger}
	h.Swap(s)
	return h
}

// Swap атомарно заменяет снимок целиком
func (h *Handler) Swap(s snapshot.Snapshot) {
	h.snap.Store(&s)
}

// Snapshot возвращает текущий снимок
func (h *Handler) Snapshot() snapshot.Snapshot {
	return *h.snap.Load()
}

// ServeHTTP реализует http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := h.snap.Load()
	d, ok := h.safeDecide(s, r.URL)
	if !ok || !d.Redirect {
		h.next.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Location", d.TargetURL)
	w.Header().Set(snapshot.HeaderHandledBy, snapshot.HandledByEdge)
	w.Header().Set(snapshot.HeaderSnapshotVersion, strconv.Itoa(s.Version))
	w.Header().Set(snapshot.HeaderSnapshotUpdated, snapshot.UpdatedHeader(*s))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(d.StatusCode)
}

func (h *Handler) safeDecide(s *snapshot.Snapshot, u *url.URL) (d Decision, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Edge handler panic, passing to origin", zap.Any("panic", rec))
			d, ok = Decision{}, false
		}
	}()
	return Decide(*s, u), true
}

// Decide чистая функция решения по снимку и URL запроса
func Decide(s snapshot.Snapshot, u *url.URL) Decision {
	prefix := "/" + s.Prefix + "/"
	path := u.EscapedPath()
	if !strings.HasPrefix(path, prefix) {
		return Decision{}
	}

	slugRaw := strings.TrimRight(path[len(prefix):], "/")
	if slugRaw == "" || len(slugRaw) > models.MaxSlugLength*3 {
		return Decision{}
	}

	slug, err := resolver.NormalizeSlug(slugRaw)
	if err != nil || len(slug) > models.MaxSlugLength {
		return Decision{}
	}

	link, ok := s.Links[slug]
	if !ok {
		return Decision{}
	}

	target := strings.TrimSpace(link.TargetURL)
	if target == "" || !targetSchemeRe.MatchString(target) {
		return Decision{}
	}

	var utm models.UTMParams
	for _, kv := range link.Options.AppendUTM {
		if validation.ValidUTMKey(kv.Key) && validation.ValidUTMValue(kv.Value) {
			utm = append(utm, kv)
		}
	}

	final := resolver.BuildTarget(target, link.Options.PassthroughQuery, utm, u.RawQuery)

	status := link.StatusCode
	if !models.IsAllowedStatus(status) {
		status = models.DefaultStatusCode
	}
	return Decision{Redirect: true, TargetURL: final, StatusCode: status}
}
