package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// TokenInfo ответ проверки токена
type TokenInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Active сообщает, что токен действителен
func (t TokenInfo) Active() bool {
	return t.Status == "active"
}

// Zone зона DNS у провайдера
type Zone struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"account"`
}

// ZoneMatch найденная для хоста зона
type ZoneMatch struct {
	ZoneID    string `json:"zone_id"`
	ZoneName  string `json:"zone_name"`
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
}

// DNSRecord запись DNS
type DNSRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
}

// DNSStatus результат проверки проксирования хоста
type DNSStatus struct {
	Found   bool   `json:"found"`
	Proxied bool   `json:"proxied"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
}

// Route маршрут воркера в зоне
type Route struct {
	ID      string `json:"id"`
	Pattern string `json:"pattern"`
	Script  string `json:"script"`
}

// WorkerSettings настройки загруженного скрипта
type WorkerSettings struct {
	CompatibilityDate string          `json:"compatibility_date,omitempty"`
	UsageModel        string          `json:"usage_model,omitempty"`
	Bindings          json.RawMessage `json:"bindings,omitempty"`
}

// VerifyToken проверяет переданный токен, не обращаясь к хранилищу
func (c *Client) VerifyToken(ctx context.Context, token string) (TokenInfo, error) {
	var info TokenInfo
	if strings.TrimSpace(token) == "" {
		return info, ErrNotConfigured
	}
	err := c.do(ctx, token, http.MethodGet, "/user/tokens/verify", nil, nil, &info)
	return info, err
}

// ListZones возвращает активные зоны, опционально по имени
func (c *Client) ListZones(ctx context.Context, name string) ([]Zone, error) {
	q := url.Values{"per_page": {"50"}, "status": {"active"}}
	if name != "" {
		q.Set("name", name)
	}
	var zones []Zone
	err := c.Request(ctx, http.MethodGet, "/zones", q, nil, &zones)
	return zones, err
}

// FindZoneForHost ищет зону по точному имени хоста, затем по родительскому домену
func (c *Client) FindZoneForHost(ctx context.Context, host string) (ZoneMatch, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	candidates := []string{host}
	if parts := strings.Split(host, "."); len(parts) > 2 {
		candidates = append(candidates, strings.Join(parts[1:], "."))
	}
	for _, name := range candidates {
		zones, err := c.ListZones(ctx, name)
		if err != nil {
			return ZoneMatch{}, err
		}
		if len(zones) > 0 {
			z := zones[0]
			return ZoneMatch{ZoneID: z.ID, ZoneName: z.Name, AccountID: z.Account.ID, Status: z.Status}, nil
		}
	}
	return ZoneMatch{}, ErrZoneNotFound
}

// ListDNSRecords возвращает записи DNS зоны с фильтрами по имени и типу
func (c *Client) ListDNSRecords(ctx context.Context, zoneID, name, recordType string) ([]DNSRecord, error) {
	q := url.Values{"per_page": {"100"}}
	if name != "" {
		q.Set("name", name)
	}
	if recordType != "" {
		q.Set("type", recordType)
	}
	var records []DNSRecord
	err := c.Request(ctx, http.MethodGet, "/zones/"+url.PathEscape(zoneID)+"/dns_records", q, nil, &records)
	return records, err
}

// CheckDNSProxied проверяет первую найденную запись A, AAAA или CNAME хоста
func (c *Client) CheckDNSProxied(ctx context.Context, zoneID, host string) (DNSStatus, error) {
	for _, t := range []string{"A", "AAAA", "CNAME"} {
		records, err := c.ListDNSRecords(ctx, zoneID, host, t)
		if err != nil {
			return DNSStatus{}, err
		}
		if len(records) > 0 {
			r := records[0]
			return DNSStatus{Found: true, Proxied: r.Proxied, Type: r.Type, Content: r.Content}, nil
		}
	}
	return DNSStatus{}, nil
}

// ListRoutes возвращает маршруты воркеров зоны
func (c *Client) ListRoutes(ctx context.Context, zoneID string) ([]Route, error) {
	var routes []Route
	err := c.Request(ctx, http.MethodGet, "/zones/"+url.PathEscape(zoneID)+"/workers/routes", nil, nil, &routes)
	return routes, err
}

// CreateRoute создаёт маршрут pattern -> script
func (c *Client) CreateRoute(ctx context.Context, zoneID, pattern, script string) (Route, error) {
	var route Route
	payload := map[string]string{"pattern": pattern, "script": script}
	err := c.Request(ctx, http.MethodPost, "/zones/"+url.PathEscape(zoneID)+"/workers/routes", nil, payload, &route)
	if err == nil && route.Pattern == "" {
		route.Pattern, route.Script = pattern, script
	}
	return route, err
}

// DeleteRoute удаляет маршрут
func (c *Client) DeleteRoute(ctx context.Context, zoneID, routeID string) error {
	return c.Request(ctx, http.MethodDelete,
		"/zones/"+url.PathEscape(zoneID)+"/workers/routes/"+url.PathEscape(routeID), nil, nil, nil)
}

// UploadWorker загружает скрипт как ES-модуль multipart-запросом
func (c *Client) UploadWorker(ctx context.Context, accountID, name string, script []byte, module string) error {
	b := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		meta, err := json.Marshal(map[string]string{"main_module": module})
		if err != nil {
			return nil, "", err
		}
		if err := w.WriteField("metadata", string(meta)); err != nil {
			return nil, "", err
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+module+`"; filename="`+module+`"`)
		h.Set("Content-Type", "application/javascript+module")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(script); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
	return c.do(ctx, "", http.MethodPut, c.scriptPath(accountID, name), nil, b, nil)
}

// GetWorker возвращает настройки скрипта; 404 означает, что скрипта нет
func (c *Client) GetWorker(ctx context.Context, accountID, name string) (WorkerSettings, error) {
	var settings WorkerSettings
	err := c.Request(ctx, http.MethodGet, c.scriptPath(accountID, name)+"/settings", nil, nil, &settings)
	return settings, err
}

// DeleteWorker удаляет скрипт
func (c *Client) DeleteWorker(ctx context.Context, accountID, name string) error {
	return c.Request(ctx, http.MethodDelete, c.scriptPath(accountID, name), nil, nil, nil)
}

func (c *Client) scriptPath(accountID, name string) string {
	return "/accounts/" + url.PathEscape(accountID) + "/workers/scripts/" + url.PathEscape(name)
}

// FindRouteByPattern ищет маршрут с точным совпадением шаблона
func FindRouteByPattern(routes []Route, pattern string) (Route, bool) {
	for _, r := range routes {
		if r.Pattern == pattern {
			return r, true
		}
	}
	return Route{}, false
}

// FindRouteByScript ищет первый маршрут, указывающий на скрипт
func FindRouteByScript(routes []Route, script string) (Route, bool) {
	for _, r := range routes {
		if r.Script == script {
			return r, true
		}
	}
	return Route{}, false
}
