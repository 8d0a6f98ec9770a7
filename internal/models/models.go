// Package models содержит доменные типы правил редиректа, состояния edge-интеграции и здоровья.
package models

import (
	"time"
)

// Допустимые коды статуса редиректа
const (
	StatusMovedPermanently  = 301
	StatusFound             = 302
	StatusTemporaryRedirect = 307
	StatusPermanentRedirect = 308
)

// DefaultStatusCode используется, когда код правила вне белого списка
const DefaultStatusCode = StatusFound

// Ограничения на поля правила
const (
	MaxSlugLength     = 200
	MaxTargetURLLen   = 2048
	MaxUTMKeyLength   = 50
	MaxUTMValueLength = 200
)

// IsAllowedStatus проверяет код статуса по белому списку
func IsAllowedStatus(code int) bool {
	switch code {
	case StatusMovedPermanently, StatusFound, StatusTemporaryRedirect, StatusPermanentRedirect:
		return true
	}
	return false
}

// MatchSource описывает, каким путём был сопоставлен slug
type MatchSource string

const (
	MatchRewrite  MatchSource = "rewrite"
	MatchFallback MatchSource = "fallback"
	MatchTest     MatchSource = "test"
)

// RuleOptions содержит необязательные преобразования редиректа
type RuleOptions struct {
	PassthroughQuery bool      `json:"passthrough_query"`
	AppendUTM        UTMParams `json:"append_utm"`
	Notes            string    `json:"notes"`
}

// Rule описывает одно правило редиректа slug -> URL
type Rule struct {
	ID         int64       `json:"id"`
	Slug       string      `json:"slug" validate:"required,max=200"`
	TargetURL  string      `json:"target_url" validate:"required,max=2048"`
	StatusCode int         `json:"status_code" validate:"oneof=301 302 307 308"`
	Enabled    bool        `json:"enabled"`
	Options    RuleOptions `json:"options"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// RuleFilter задаёт выборку правил для списка и подсчёта
type RuleFilter struct {
	Search  string
	Enabled *bool
	Limit   int
	Offset  int
}

// RedirectDecision результат разрешения slug
type RedirectDecision struct {
	ShouldRedirect bool        `json:"should_redirect"`
	TargetURL      string      `json:"target_url"`
	StatusCode     int         `json:"status_code"`
	LinkID         int64       `json:"link_id"`
	MatchedBy      MatchSource `json:"matched_by"`
	Options        RuleOptions `json:"options"`
}

// NotFound возвращает решение "без редиректа"
func NotFound() RedirectDecision {
	return RedirectDecision{StatusCode: DefaultStatusCode}
}

// DebugResponse ответ отладочного режима для привилегированных клиентов
type DebugResponse struct {
	Handler    string       `json:"handler"`
	Slug       string       `json:"slug"`
	TargetURL  string       `json:"target_url,omitempty"`
	StatusCode int          `json:"status_code,omitempty"`
	Options    *RuleOptions `json:"options,omitempty"`
	MatchedBy  MatchSource  `json:"matched_by,omitempty"`
	Found      *bool        `json:"found,omitempty"`
	Message    string       `json:"message,omitempty"`
	Timestamp  string       `json:"timestamp"`
}

// NewDebugResponse строит отладочный ответ по решению резолвера
func NewDebugResponse(d RedirectDecision, slug string, now time.Time) DebugResponse {
	resp := DebugResponse{
		Handler:   "wp",
		Slug:      slug,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	if !d.ShouldRedirect {
		found := false
		resp.Found = &found
		resp.Message = "Slug not found or disabled"
		return resp
	}
	opts := d.Options
	resp.TargetURL = d.TargetURL
	resp.StatusCode = d.StatusCode
	resp.Options = &opts
	resp.MatchedBy = d.MatchedBy
	return resp
}

// DailyClicks агрегат кликов по правилу за день
type DailyClicks struct {
	Day    time.Time `json:"day"`
	RuleID int64     `json:"rule_id"`
	Clicks int64     `json:"clicks"`
}
