package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/models"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db, zap.NewNop()), mock
}

var ruleRowColumns = []string{"id", "slug", "target_url", "status_code", "enabled", "options", "created_at", "updated_at"}

func TestPostgresRepository_FindBySlug(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name        string
		setup       func(mock sqlmock.Sqlmock)
		expectedErr error
		expected    models.Rule
	}{
		{
			name: "found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT " + ruleColumns + " FROM rules WHERE slug = $1")).
					WithArgs("docs").
					WillReturnRows(sqlmock.NewRows(ruleRowColumns).
						AddRow(1, "docs", "https://docs.example.com", 301, true, []byte(`{"passthrough_query":true,"append_utm":{"utm_source":"website"},"notes":""}`), now, now))
			},
			expected: models.Rule{
				ID: 1, Slug: "docs", TargetURL: "https://docs.example.com", StatusCode: 301, Enabled: true,
				Options:   models.RuleOptions{PassthroughQuery: true, AppendUTM: models.UTMParams{{Key: "utm_source", Value: "website"}}},
				CreatedAt: now, UpdatedAt: now,
			},
		},
		{
			name: "not found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT " + ruleColumns + " FROM rules WHERE slug = $1")).
					WithArgs("docs").
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrNotFound,
		},
		{
			name: "db error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT " + ruleColumns + " FROM rules WHERE slug = $1")).
					WithArgs("docs").
					WillReturnError(errors.New("db error"))
			},
			expectedErr: errors.New("db error"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.setup(mock)

			rule, err := repo.FindBySlug(ctx, "docs")
			if tt.expectedErr != nil {
				assert.EqualError(t, err, tt.expectedErr.Error())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, rule)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_Create(t *testing.T) {
	ctx := context.Background()
	insert := regexp.QuoteMeta("INSERT INTO rules (slug, target_url, status_code, enabled, options) VALUES ($1, $2, $3, $4, $5) RETURNING id")
	rule := models.Rule{Slug: "docs", TargetURL: "https://docs.example.com", StatusCode: 302, Enabled: true}

	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(insert).
			WithArgs("docs", "https://docs.example.com", 302, true, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		id, err := repo.Create(ctx, rule)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate slug", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(insert).
			WithArgs("docs", "https://docs.example.com", 302, true, sqlmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation})

		_, err := repo.Create(ctx, rule)
		assert.ErrorIs(t, err, ErrSlugExists)
	})
}

func TestPostgresRepository_Update(t *testing.T) {
	ctx := context.Background()
	update := regexp.QuoteMeta("UPDATE rules SET slug = $1, target_url = $2, status_code = $3, enabled = $4, options = $5, updated_at = now() WHERE id = $6")

	repo, mock := newMockRepo(t)
	mock.ExpectExec(update).
		WithArgs("docs", "https://e.com", 301, false, sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).
		WithArgs("docs", "https://e.com", 301, false, sqlmock.AnyArg(), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Update(ctx, models.Rule{ID: 7, Slug: "docs", TargetURL: "https://e.com", StatusCode: 301}))
	assert.ErrorIs(t, repo.Update(ctx, models.Rule{ID: 8, Slug: "docs", TargetURL: "https://e.com", StatusCode: 301}), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteCascadesClicks(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rule_clicks WHERE rule_id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rules WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Delete(ctx, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteMissingRollsBack(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rule_clicks WHERE rule_id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rules WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete(ctx, 3), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetAllFilter(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	enabled := true

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + ruleColumns + " FROM rules WHERE (slug ILIKE $1 OR target_url ILIKE $1) AND enabled = $2 ORDER BY id DESC LIMIT $3 OFFSET $4")).
		WithArgs("%doc%", true, 10, 20).
		WillReturnRows(sqlmock.NewRows(ruleRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM rules WHERE (slug ILIKE $1 OR target_url ILIKE $1) AND enabled = $2")).
		WithArgs("%doc%", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	filter := models.RuleFilter{Search: "doc", Enabled: &enabled, Limit: 10, Offset: 20}
	rules, err := repo.GetAll(ctx, filter)
	require.NoError(t, err)
	assert.Empty(t, rules)

	n, err := repo.Count(ctx, filter)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RecordClickUpsert(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	day := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rule_clicks (day, rule_id, clicks) VALUES ($1, $2, 1) ON CONFLICT (day, rule_id) DO UPDATE SET clicks = rule_clicks.clicks + 1")).
		WithArgs(Day(day), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.RecordClick(ctx, 9, day))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Cleanup(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	before := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rule_clicks WHERE day < $1")).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.Cleanup(ctx, before)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestPostgresRepository_Options(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO options (name, value) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()")).
		WithArgs(KeyPrefix, []byte(`"go"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM options WHERE name = $1")).
		WithArgs(KeyPrefix).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`"go"`)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM options WHERE name = $1")).
		WithArgs(KeyHealth).
		WillReturnError(sql.ErrNoRows)

	require.NoError(t, repo.SetOption(ctx, KeyPrefix, "go"))

	var prefix string
	ok, err := repo.GetOption(ctx, KeyPrefix, &prefix)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "go", prefix)

	var rec models.HealthRecord
	ok, err = repo.GetOption(ctx, KeyHealth, &rec)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
