package models

import "time"

// EdgeState идентификаторы на стороне провайдера и флаг включения edge-режима
type EdgeState struct {
	ZoneID      string     `json:"zone_id,omitempty"`
	AccountID   string     `json:"account_id,omitempty"`
	ZoneName    string     `json:"zone_name,omitempty"`
	RouteID     string     `json:"route_id,omitempty"`
	EdgeEnabled bool       `json:"edge_enabled"`
	LastPublish *time.Time `json:"last_publish,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasZone сообщает, были ли зона и аккаунт определены
func (s EdgeState) HasZone() bool {
	return s.ZoneID != "" && s.AccountID != ""
}

// ClearEdge сбрасывает edge-состояние, сохраняя данные зоны
func (s *EdgeState) ClearEdge() {
	s.EdgeEnabled = false
	s.RouteID = ""
	s.LastPublish = nil
}

// HealthState одно из трёх состояний edge-интеграции
type HealthState string

const (
	HealthOriginOnly HealthState = "wp-only"
	HealthActive     HealthState = "active"
	HealthDegraded   HealthState = "degraded"
)

// RouteMismatch расхождение ожидаемого и фактического шаблона маршрута
type RouteMismatch struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// HealthRecord кэшированный результат последней проверки
type HealthRecord struct {
	State         HealthState    `json:"state"`
	Message       string         `json:"message"`
	LastCheck     *time.Time     `json:"last_check"`
	RouteMismatch *RouteMismatch `json:"route_mismatch,omitempty"`
}

// AuditEvent запись журнала операций
type AuditEvent struct {
	Time    time.Time `json:"time"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
}
