package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/models"
)

const uniqueViolation = "23505"

const ruleColumns = "id, slug, target_url, status_code, enabled, options, created_at, updated_at"

// PostgresRepository реализует Store с использованием PostgreSQL
type PostgresRepository struct {
	db     Database
	logger *zap.Logger
}

// NewPostgresRepository создаёт новый экземпляр PostgresRepository
func NewPostgresRepository(db Database, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (models.Rule, error) {
	var (
		rule    models.Rule
		options []byte
	)
	err := row.Scan(&rule.ID, &rule.Slug, &rule.TargetURL, &rule.StatusCode, &rule.Enabled, &options, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return models.Rule{}, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &rule.Options); err != nil {
			return models.Rule{}, err
		}
	}
	return rule, nil
}

// Find возвращает правило по ID
func (r *PostgresRepository) Find(ctx context.Context, id int64) (models.Rule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM rules WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Rule{}, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get rule from database", zap.Int64("id", id), zap.Error(err))
		return models.Rule{}, err
	}
	return rule, nil
}

// FindBySlug возвращает правило по slug
func (r *PostgresRepository) FindBySlug(ctx context.Context, slug string) (models.Rule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM rules WHERE slug = $1", slug))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Rule{}, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get rule by slug", zap.String("slug", slug), zap.Error(err))
		return models.Rule{}, err
	}
	return rule, nil
}

// whereClause строит условие выборки и аргументы по фильтру
func whereClause(filter models.RuleFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(slug ILIKE $"+n+" OR target_url ILIKE $"+n+")")
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		conds = append(conds, "enabled = $"+strconv.Itoa(len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetAll возвращает правила по фильтру
func (r *PostgresRepository) GetAll(ctx context.Context, filter models.RuleFilter) ([]models.Rule, error) {
	where, args := whereClause(filter)
	query := "SELECT " + ruleColumns + " FROM rules" + where + " ORDER BY id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}
	return r.queryRules(ctx, query, args...)
}

// Count возвращает количество правил по фильтру
func (r *PostgresRepository) Count(ctx context.Context, filter models.RuleFilter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rules"+where, args...).Scan(&n); err != nil {
		r.logger.Error("Failed to count rules", zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]models.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query rules", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			r.logger.Error("Failed to scan rule row", zap.Error(err))
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Create сохраняет новое правило
func (r *PostgresRepository) Create(ctx context.Context, rule models.Rule) (int64, error) {
	options, err := json.Marshal(rule.Options)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRowContext(ctx,
		"INSERT INTO rules (slug, target_url, status_code, enabled, options) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		rule.Slug, rule.TargetURL, rule.StatusCode, rule.Enabled, options).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrSlugExists
	}
	if err != nil {
		r.logger.Error("Failed to save rule to database", zap.String("slug", rule.Slug), zap.Error(err))
		return 0, err
	}
	return id, nil
}

// Update обновляет правило
func (r *PostgresRepository) Update(ctx context.Context, rule models.Rule) error {
	options, err := json.Marshal(rule.Options)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE rules SET slug = $1, target_url = $2, status_code = $3, enabled = $4, options = $5, updated_at = now() WHERE id = $6",
		rule.Slug, rule.TargetURL, rule.StatusCode, rule.Enabled, options, rule.ID)
	if isUniqueViolation(err) {
		return ErrSlugExists
	}
	if err != nil {
		r.logger.Error("Failed to update rule", zap.Int64("id", rule.ID), zap.Error(err))
		return err
	}
	return requireAffected(res)
}

// Delete удаляет правило и его клики в одной транзакции
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to start transaction", zap.Error(err))
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM rule_clicks WHERE rule_id = $1", id); err != nil {
		r.logger.Error("Failed to delete rule clicks", zap.Int64("id", id), zap.Error(err))
		tx.Rollback()
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM rules WHERE id = $1", id)
	if err != nil {
		r.logger.Error("Failed to delete rule", zap.Int64("id", id), zap.Error(err))
		tx.Rollback()
		return err
	}
	if err := requireAffected(res); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return err
	}
	return nil
}

// GetEnabledRulesForSnapshot возвращает все включённые правила
func (r *PostgresRepository) GetEnabledRulesForSnapshot(ctx context.Context) ([]models.Rule, error) {
	return r.queryRules(ctx, "SELECT "+ruleColumns+" FROM rules WHERE enabled = TRUE ORDER BY id")
}

// SlugExists проверяет занятость slug
func (r *PostgresRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM rules WHERE slug = $1 AND id <> $2)", slug, excludeID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check slug", zap.String("slug", slug), zap.Error(err))
		return false, err
	}
	return exists, nil
}

// RecordClick атомарно увеличивает счётчик
func (r *PostgresRepository) RecordClick(ctx context.Context, ruleID int64, day time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO rule_clicks (day, rule_id, clicks) VALUES ($1, $2, 1) ON CONFLICT (day, rule_id) DO UPDATE SET clicks = rule_clicks.clicks + 1",
		Day(day), ruleID)
	if err != nil {
		r.logger.Error("Failed to record click", zap.Int64("rule_id", ruleID), zap.Error(err))
	}
	return err
}

// ClicksByRule возвращает агрегаты за период
func (r *PostgresRepository) ClicksByRule(ctx context.Context, from, to time.Time) ([]models.DailyClicks, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT day, rule_id, clicks FROM rule_clicks WHERE day BETWEEN $1 AND $2 ORDER BY day, rule_id",
		Day(from), Day(to))
	if err != nil {
		r.logger.Error("Failed to query clicks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DailyClicks, 0)
	for rows.Next() {
		var c models.DailyClicks
		if err := rows.Scan(&c.Day, &c.RuleID, &c.Clicks); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Cleanup удаляет агрегаты старше before
func (r *PostgresRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM rule_clicks WHERE day < $1", Day(before))
	if err != nil {
		r.logger.Error("Failed to clean up clicks", zap.Error(err))
		return 0, err
	}
	return res.RowsAffected()
}

// GetOption читает значение опции
func (r *PostgresRepository) GetOption(ctx context.Context, key string, dst interface{}) (bool, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT value FROM options WHERE name = $1", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to read option", zap.String("name", key), zap.Error(err))
		return false, err
	}
	return true, json.Unmarshal(data, dst)
}

// SetOption сохраняет значение опции
func (r *PostgresRepository) SetOption(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO options (name, value) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()",
		key, data)
	if err != nil {
		r.logger.Error("Failed to write option", zap.String("name", key), zap.Error(err))
	}
	return err
}

// DeleteOption удаляет опцию
func (r *PostgresRepository) DeleteOption(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM options WHERE name = $1", key)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
