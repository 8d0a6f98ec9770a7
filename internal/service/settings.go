package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/validation"
)

// ErrInvalidPrefix префикс пуст после нормализации или зарезервирован
var ErrInvalidPrefix = errors.New("invalid prefix")

// PrefixStore хранилище префикса, изменённого во время работы
type PrefixStore interface {
	Prefix(ctx context.Context, def string) (string, error)
	SetPrefix(ctx context.Context, prefix string) error
}

// PrefixUpdater переносит маршрут воркера на новый префикс
type PrefixUpdater interface {
	UpdatePrefix(ctx context.Context, oldPrefix, newPrefix string) error
}

// SettingsResolver разрешает настройки сайта: сохранённый префикс важнее значения из конфигурации
type SettingsResolver struct {
	host       string
	prefix     string
	workerName string
	store      PrefixStore
	logger     *zap.Logger
}

// NewSettingsResolver создаёт новый экземпляр SettingsResolver
func NewSettingsResolver(cfg *config.Config, store PrefixStore, logger *zap.Logger) *SettingsResolver {
	return &SettingsResolver{
		host:       cfg.Host(),
		prefix:     cfg.Prefix,
		workerName: cfg.WorkerName,
		store:      store,
		logger:     logger,
	}
}

// Host возвращает хост сайта
func (r *SettingsResolver) Host() string {
	return r.host
}

// DefaultPrefix возвращает префикс из конфигурации
func (r *SettingsResolver) DefaultPrefix() string {
	return r.prefix
}

// Prefix возвращает действующий префикс
func (r *SettingsResolver) Prefix(ctx context.Context) (string, error) {
	if r.store == nil {
		return r.prefix, nil
	}
	return r.store.Prefix(ctx, r.prefix)
}

// Settings возвращает настройки на момент вызова
func (r *SettingsResolver) Settings(ctx context.Context) (config.Settings, error) {
	prefix, err := r.Prefix(ctx)
	if err != nil {
		return config.Settings{}, err
	}
	return config.Settings{Host: r.host, Prefix: prefix, WorkerName: r.workerName}, nil
}

// ChangePrefix сохраняет новый префикс и переносит на него маршрут воркера.
// Префикс сохраняется, даже если перенос маршрута не удался.
func (r *SettingsResolver) ChangePrefix(ctx context.Context, newPrefix string, updater PrefixUpdater) (string, error) {
	prefix := validation.SanitizeSlug(strings.Trim(newPrefix, "/"))
	if prefix == "" || validation.IsReserved(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, newPrefix)
	}
	old, err := r.Prefix(ctx)
	if err != nil {
		return "", err
	}
	if old == prefix {
		return prefix, nil
	}
	if r.store == nil {
		return "", errors.New("prefix store is not configured")
	}
	if err := r.store.SetPrefix(ctx, prefix); err != nil {
		return "", err
	}
	r.logger.Info("Prefix changed", zap.String("old", old), zap.String("new", prefix))

	if updater != nil {
		if err := updater.UpdatePrefix(ctx, old, prefix); err != nil {
			return prefix, fmt.Errorf("prefix saved, but edge route update failed: %w", err)
		}
	}
	return prefix, nil
}
