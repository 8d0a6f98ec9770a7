package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tempizhere/edgelink/internal/models"
)

type clickKey struct {
	day    time.Time
	ruleID int64
}

// MemoryRepository реализует Store в памяти процесса
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	rules   map[int64]models.Rule
	clicks  map[clickKey]int64
	options map[string][]byte
	now     func() time.Time
}

// NewMemoryRepository создаёт новый экземпляр MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rules:   make(map[int64]models.Rule),
		clicks:  make(map[clickKey]int64),
		options: make(map[string][]byte),
		now:     time.Now,
	}
}

// Find возвращает правило по ID
func (r *MemoryRepository) Find(_ context.Context, id int64) (models.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return models.Rule{}, ErrNotFound
	}
	return rule, nil
}

// FindBySlug возвращает правило по slug
func (r *MemoryRepository) FindBySlug(_ context.Context, slug string) (models.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		if rule.Slug == slug {
			return rule, nil
		}
	}
	return models.Rule{}, ErrNotFound
}

// GetAll возвращает правила по фильтру, новые первыми
func (r *MemoryRepository) GetAll(_ context.Context, filter models.RuleFilter) ([]models.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filter(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []models.Rule{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count возвращает количество правил по фильтру
func (r *MemoryRepository) Count(_ context.Context, filter models.RuleFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filter(filter)), nil
}

func (r *MemoryRepository) filter(filter models.RuleFilter) []models.Rule {
	search := strings.ToLower(filter.Search)
	out := make([]models.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if filter.Enabled != nil && rule.Enabled != *filter.Enabled {
			continue
		}
		if search != "" &&
			!strings.Contains(rule.Slug, search) &&
			!strings.Contains(strings.ToLower(rule.TargetURL), search) {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// Create сохраняет новое правило
func (r *MemoryRepository) Create(_ context.Context, rule models.Rule) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rules {
		if existing.Slug == rule.Slug {
			return 0, ErrSlugExists
		}
	}
	r.nextID++
	now := r.now().UTC()
	rule.ID = r.nextID
	rule.CreatedAt = now
	rule.UpdatedAt = now
	r.rules[rule.ID] = rule
	return rule.ID, nil
}

// Update обновляет правило
func (r *MemoryRepository) Update(_ context.Context, rule models.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rules[rule.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range r.rules {
		if id != rule.ID && other.Slug == rule.Slug {
			return ErrSlugExists
		}
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = r.now().UTC()
	r.rules[rule.ID] = rule
	return nil
}

// Delete удаляет правило и его клики
func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return ErrNotFound
	}
	delete(r.rules, id)
	for k := range r.clicks {
		if k.ruleID == id {
			delete(r.clicks, k)
		}
	}
	return nil
}

// GetEnabledRulesForSnapshot возвращает включённые правила по возрастанию ID
func (r *MemoryRepository) GetEnabledRulesForSnapshot(_ context.Context) ([]models.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.Enabled {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SlugExists проверяет занятость slug
func (r *MemoryRepository) SlugExists(_ context.Context, slug string, excludeID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, rule := range r.rules {
		if id != excludeID && rule.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// RecordClick увеличивает счётчик кликов
func (r *MemoryRepository) RecordClick(_ context.Context, ruleID int64, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks[clickKey{day: Day(day), ruleID: ruleID}]++
	return nil
}

// ClicksByRule возвращает агрегаты за период
func (r *MemoryRepository) ClicksByRule(_ context.Context, from, to time.Time) ([]models.DailyClicks, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	from, to = Day(from), Day(to)
	out := make([]models.DailyClicks, 0)
	for k, n := range r.clicks {
		if k.day.Before(from) || k.day.After(to) {
			continue
		}
		out = append(out, models.DailyClicks{Day: k.day, RuleID: k.ruleID, Clicks: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out, nil
}

// Cleanup удаляет агрегаты старше before
func (r *MemoryRepository) Cleanup(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before = Day(before)
	var n int64
	for k := range r.clicks {
		if k.day.Before(before) {
			delete(r.clicks, k)
			n++
		}
	}
	return n, nil
}

// GetOption читает значение опции
func (r *MemoryRepository) GetOption(_ context.Context, key string, dst interface{}) (bool, error) {
	r.mu.RLock()
	data, ok := r.options[key]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

// SetOption сохраняет значение опции
func (r *MemoryRepository) SetOption(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.options[key] = data
	r.mu.Unlock()
	return nil
}

// DeleteOption удаляет опцию
func (r *MemoryRepository) DeleteOption(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.options, key)
	r.mu.Unlock()
	return nil
}
