package repository

import (
	"context"
	"errors"
	"time"

	"github.com/maypok86/otter"

	"github.com/tempizhere/edgelink/internal/models"
)

type cachedRule struct {
	rule  models.Rule
	found bool
}

// CachedRuleRepository кэширует FindBySlug для горячего пути редиректа.
// Любая запись сбрасывает кэш целиком.
type CachedRuleRepository struct {
	RuleRepository
	cache otter.Cache[string, cachedRule]
}

// NewCachedRuleRepository создаёт кэш на capacity slug с временем жизни ttl
func NewCachedRuleRepository(inner RuleRepository, capacity int, ttl time.Duration) (*CachedRuleRepository, error) {
	cache, err := otter.MustBuilder[string, cachedRule](capacity).
		Cost(func(_ string, _ cachedRule) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &CachedRuleRepository{RuleRepository: inner, cache: cache}, nil
}

// FindBySlug возвращает правило из кэша, в том числе кэшированный промах
func (c *CachedRuleRepository) FindBySlug(ctx context.Context, slug string) (models.Rule, error) {
	if v, ok := c.cache.Get(slug); ok {
		if !v.found {
			return models.Rule{}, ErrNotFound
		}
		return v.rule, nil
	}
	rule, err := c.RuleRepository.FindBySlug(ctx, slug)
	switch {
	case errors.Is(err, ErrNotFound):
		c.cache.Set(slug, cachedRule{})
	case err == nil:
		c.cache.Set(slug, cachedRule{rule: rule, found: true})
	}
	return rule, err
}

// Create сохраняет правило и сбрасывает кэш
func (c *CachedRuleRepository) Create(ctx context.Context, rule models.Rule) (int64, error) {
	id, err := c.RuleRepository.Create(ctx, rule)
	c.cache.Clear()
	return id, err
}

// Update обновляет правило и сбрасывает кэш
func (c *CachedRuleRepository) Update(ctx context.Context, rule models.Rule) error {
	err := c.RuleRepository.Update(ctx, rule)
	c.cache.Clear()
	return err
}

// Delete удаляет правило и сбрасывает кэш
func (c *CachedRuleRepository) Delete(ctx context.Context, id int64) error {
	err := c.RuleRepository.Delete(ctx, id)
	c.cache.Clear()
	return err
}

// Close освобождает ресурсы кэша
func (c *CachedRuleRepository) Close() {
	c.cache.Close()
}
