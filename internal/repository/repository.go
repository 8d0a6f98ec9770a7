package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tempizhere/edgelink/internal/models"
)

var (
	// ErrNotFound правило не найдено
	ErrNotFound = errors.New("rule not found")
	// ErrSlugExists slug уже занят другим правилом
	ErrSlugExists = errors.New("slug already exists")
)

// RuleRepository определяет интерфейс хранилища правил
type RuleRepository interface {
	// Find возвращает правило по ID
	Find(ctx context.Context, id int64) (models.Rule, error)
	// FindBySlug возвращает правило по нормализованному slug
	FindBySlug(ctx context.Context, slug string) (models.Rule, error)
	// GetAll возвращает правила по фильтру
	GetAll(ctx context.Context, filter models.RuleFilter) ([]models.Rule, error)
	// Count возвращает количество правил по фильтру
	Count(ctx context.Context, filter models.RuleFilter) (int, error)
	// Create сохраняет новое правило и возвращает его ID
	Create(ctx context.Context, rule models.Rule) (int64, error)
	// Update обновляет правило
	Update(ctx context.Context, rule models.Rule) error
	// Delete удаляет правило вместе с его статистикой кликов
	Delete(ctx context.Context, id int64) error
	// GetEnabledRulesForSnapshot возвращает все включённые правила
	GetEnabledRulesForSnapshot(ctx context.Context) ([]models.Rule, error)
	// SlugExists проверяет занятость slug, исключая правило excludeID
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
}

// ClickRepository определяет интерфейс хранилища статистики кликов
type ClickRepository interface {
	// RecordClick атомарно увеличивает счётчик правила за день
	RecordClick(ctx context.Context, ruleID int64, day time.Time) error
	// ClicksByRule возвращает дневные агрегаты за период включительно
	ClicksByRule(ctx context.Context, from, to time.Time) ([]models.DailyClicks, error)
	// Cleanup удаляет агрегаты старше before и возвращает число удалённых строк
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// OptionStore хранилище произвольных JSON-значений по ключу
type OptionStore interface {
	// GetOption читает значение в dst; false, если ключа нет
	GetOption(ctx context.Context, key string, dst interface{}) (bool, error)
	// SetOption сохраняет значение
	SetOption(ctx context.Context, key string, value interface{}) error
	// DeleteOption удаляет ключ
	DeleteOption(ctx context.Context, key string) error
}

// Store объединяет все хранилища одного бэкенда
type Store interface {
	RuleRepository
	ClickRepository
	OptionStore
}

// Database определяет интерфейс для работы с базой данных
type Database interface {
	// PingContext проверяет соединение с базой данных
	PingContext(ctx context.Context) error
	// Close закрывает соединение с базой данных
	Close() error
	// ExecContext выполняет SQL-команду без возврата результатов
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	// QueryContext выполняет SQL-запрос и возвращает результаты
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	// QueryRowContext выполняет SQL-запрос и возвращает одну строку результата
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	// BeginTx начинает новую транзакцию
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Day обрезает время до начала суток UTC
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
