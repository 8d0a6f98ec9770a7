package repository

import (
	"context"
	"sync"
	"time"

	"github.com/tempizhere/edgelink/internal/models"
)

// Ключи опций интеграции
const (
	KeyEdgeState = "integration:edge_state"
	KeyHealth    = "integration:health"
	KeyEvents    = "integration:events"
	KeyPrefix    = "settings:prefix"
)

// MaxEvents размер журнала операций
const MaxEvents = 50

// IntegrationStore типизированный доступ к состоянию edge-интеграции поверх OptionStore
type IntegrationStore struct {
	opts OptionStore
	now  func() time.Time
	mu   sync.Mutex
}

// NewIntegrationStore создаёт новый экземпляр IntegrationStore
func NewIntegrationStore(opts OptionStore) *IntegrationStore {
	return &IntegrationStore{opts: opts, now: time.Now}
}

// LoadEdgeState возвращает сохранённое состояние или пустое
func (s *IntegrationStore) LoadEdgeState(ctx context.Context) (models.EdgeState, error) {
	var st models.EdgeState
	_, err := s.opts.GetOption(ctx, KeyEdgeState, &st)
	return st, err
}

// SaveEdgeState сохраняет состояние
func (s *IntegrationStore) SaveEdgeState(ctx context.Context, st models.EdgeState) error {
	st.UpdatedAt = s.now().UTC()
	return s.opts.SetOption(ctx, KeyEdgeState, st)
}

// LoadHealth возвращает кэшированную запись здоровья; false, если проверок не было
func (s *IntegrationStore) LoadHealth(ctx context.Context) (models.HealthRecord, bool, error) {
	var rec models.HealthRecord
	ok, err := s.opts.GetOption(ctx, KeyHealth, &rec)
	return rec, ok, err
}

// SaveHealth перезаписывает запись здоровья
func (s *IntegrationStore) SaveHealth(ctx context.Context, rec models.HealthRecord) error {
	return s.opts.SetOption(ctx, KeyHealth, rec)
}

// ClearHealth удаляет кэшированную запись здоровья
func (s *IntegrationStore) ClearHealth(ctx context.Context) error {
	return s.opts.DeleteOption(ctx, KeyHealth)
}

// AppendEvent добавляет запись в журнал, оставляя последние MaxEvents
func (s *IntegrationStore) AppendEvent(ctx context.Context, eventType, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []models.AuditEvent
	if _, err := s.opts.GetOption(ctx, KeyEvents, &events); err != nil {
		return err
	}
	events = append(events, models.AuditEvent{
		Time:    s.now().UTC(),
		Type:    eventType,
		Message: message,
	})
	if len(events) > MaxEvents {
		events = events[len(events)-MaxEvents:]
	}
	return s.opts.SetOption(ctx, KeyEvents, events)
}

// Events возвращает журнал, старые записи первыми
func (s *IntegrationStore) Events(ctx context.Context) ([]models.AuditEvent, error) {
	events := make([]models.AuditEvent, 0)
	_, err := s.opts.GetOption(ctx, KeyEvents, &events)
	return events, err
}

// Prefix возвращает сохранённый префикс или def
func (s *IntegrationStore) Prefix(ctx context.Context, def string) (string, error) {
	var prefix string
	ok, err := s.opts.GetOption(ctx, KeyPrefix, &prefix)
	if err != nil || !ok || prefix == "" {
		return def, err
	}
	return prefix, nil
}

// SetPrefix сохраняет префикс
func (s *IntegrationStore) SetPrefix(ctx context.Context, prefix string) error {
	return s.opts.SetOption(ctx, KeyPrefix, prefix)
}
