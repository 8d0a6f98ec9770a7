package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempizhere/edgelink/internal/models"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	// Проверяем, что MemoryRepository реализует интерфейс Store
	var _ Store = (*MemoryRepository)(nil)

	// Тест 1: создание и получение правила
	id, err := repo.Create(ctx, models.Rule{Slug: "docs", TargetURL: "https://docs.example.com", StatusCode: 301, Enabled: true})
	require.NoError(t, err)
	rule, err := repo.FindBySlug(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, id, rule.ID)
	assert.False(t, rule.CreatedAt.IsZero())

	// Тест 2: повтор slug
	_, err = repo.Create(ctx, models.Rule{Slug: "docs", TargetURL: "https://other.example.com"})
	assert.ErrorIs(t, err, ErrSlugExists)

	// Тест 3: проверка занятости slug с исключением собственного ID
	exists, err := repo.SlugExists(ctx, "docs", id)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = repo.SlugExists(ctx, "docs", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	// Тест 4: обновление
	rule.TargetURL = "https://new.example.com"
	require.NoError(t, repo.Update(ctx, rule))
	got, err := repo.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", got.TargetURL)

	// Тест 5: обновление несуществующего
	assert.ErrorIs(t, repo.Update(ctx, models.Rule{ID: 999, Slug: "x"}), ErrNotFound)

	// Тест 6: удаление вместе с кликами
	require.NoError(t, repo.RecordClick(ctx, id, time.Now()))
	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.Find(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	clicks, err := repo.ClicksByRule(ctx, time.Now().AddDate(0, 0, -1), time.Now())
	require.NoError(t, err)
	assert.Empty(t, clicks)
	assert.ErrorIs(t, repo.Delete(ctx, id), ErrNotFound)
}

func TestMemoryRepository_Filter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	for _, r := range []models.Rule{
		{Slug: "a", TargetURL: "https://alpha.example.com", Enabled: true},
		{Slug: "b", TargetURL: "https://beta.example.com", Enabled: false},
		{Slug: "c", TargetURL: "https://gamma.example.com", Enabled: true},
	} {
		_, err := repo.Create(ctx, r)
		require.NoError(t, err)
	}

	enabled := true
	n, err := repo.Count(ctx, models.RuleFilter{Enabled: &enabled})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rules, err := repo.GetAll(ctx, models.RuleFilter{Search: "BETA"})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "b", rules[0].Slug)

	rules, err = repo.GetAll(ctx, models.RuleFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "b", rules[0].Slug)

	rules, err = repo.GetAll(ctx, models.RuleFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, rules)

	snap, err := repo.GetEnabledRulesForSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Slug)
	assert.Equal(t, "c", snap[1].Slug)
}

func TestMemoryRepository_ConcurrentClicks(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	day := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.RecordClick(ctx, 1, day)
		}()
	}
	wg.Wait()

	clicks, err := repo.ClicksByRule(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, int64(100), clicks[0].Clicks)
	assert.Equal(t, Day(day), clicks[0].Day)
}

func TestMemoryRepository_Cleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordClick(ctx, 1, now.AddDate(0, 0, -100)))
	require.NoError(t, repo.RecordClick(ctx, 1, now.AddDate(0, 0, -10)))

	n, err := repo.Cleanup(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	clicks, err := repo.ClicksByRule(ctx, now.AddDate(-1, 0, 0), now)
	require.NoError(t, err)
	assert.Len(t, clicks, 1)
}

func TestMemoryRepository_Options(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	var v string
	ok, err := repo.GetOption(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetOption(ctx, "k", "value"))
	ok, err = repo.GetOption(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	require.NoError(t, repo.DeleteOption(ctx, "k"))
	ok, _ = repo.GetOption(ctx, "k", &v)
	assert.False(t, ok)
}
