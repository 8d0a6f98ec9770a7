// Package proto содержит определения типов для gRPC сервиса управления редиректами
package proto

// ResolveRequest представляет запрос на разрешение slug без редиректа
type ResolveRequest struct {
	Slug  string `json:"slug"`
	Query string `json:"query"`
}

// ResolveResponse представляет решение резолвера
type ResolveResponse struct {
	ShouldRedirect bool   `json:"should_redirect"`
	TargetURL      string `json:"target_url"`
	StatusCode     int32  `json:"status_code"`
	LinkID         int64  `json:"link_id"`
	MatchedBy      string `json:"matched_by"`
}

// HealthRequest представляет запрос состояния edge-интеграции
type HealthRequest struct{}

// HealthResponse представляет запись здоровья edge-интеграции
type HealthResponse struct {
	State           string `json:"state"`
	Message         string `json:"message"`
	LastCheckUnix   int64  `json:"last_check_unix,omitempty"`
	ExpectedPattern string `json:"expected_pattern,omitempty"`
	ActualPattern   string `json:"actual_pattern,omitempty"`
}

// RepublishRequest представляет запрос на пересборку снимка
type RepublishRequest struct{}

// RepublishResponse представляет результат пересборки снимка
type RepublishResponse struct {
	Health *HealthResponse `json:"health,omitempty"`
}

// PingRequest представляет запрос проверки состояния
type PingRequest struct{}

// PingResponse представляет ответ проверки состояния
type PingResponse struct {
	DatabaseAvailable bool `json:"database_available"`
}
