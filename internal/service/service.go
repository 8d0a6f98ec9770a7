// Package service содержит бизнес-логику управления правилами редиректа.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/validation"
)

// DefaultPageSize размер страницы списка правил по умолчанию
const DefaultPageSize = 20

// clickTimeout ограничивает запись клика, выполняемую в фоне
const clickTimeout = 5 * time.Second

// Publisher планирует отложенную публикацию снимка
type Publisher interface {
	Trigger()
}

// Service реализует логику работы с правилами редиректа
type Service struct {
	rules     repository.RuleRepository
	clicks    repository.ClickRepository
	validator *validation.Validator
	settings  *SettingsResolver
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewService создаёт новый экземпляр Service
func NewService(rules repository.RuleRepository, clicks repository.ClickRepository, settings *SettingsResolver, logger *zap.Logger) *Service {
	return &Service{
		rules:     rules,
		clicks:    clicks,
		validator: validation.New(settings.Host(), settings.DefaultPrefix()),
		settings:  settings,
		now:       time.Now,
		logger:    logger,
	}
}

// SetPublisher подключает планировщик публикации; до вызова изменения не публикуются
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

func (s *Service) schedulePublish() {
	if s.publisher != nil {
		s.publisher.Trigger()
	}
}

// validate нормализует и проверяет правило с учётом текущего префикса и уникальности slug
func (s *Service) validate(ctx context.Context, rule *models.Rule) error {
	prefix, err := s.settings.Prefix(ctx)
	if err != nil {
		return err
	}
	if err := s.validator.WithPrefix(prefix).Validate(rule); err != nil {
		return err
	}
	exists, err := s.rules.SlugExists(ctx, rule.Slug, rule.ID)
	if err != nil {
		return err
	}
	if exists {
		return validation.Errors{{Field: "slug", Message: repository.ErrSlugExists.Error()}}
	}
	return nil
}

// Create проверяет и сохраняет новое правило
func (s *Service) Create(ctx context.Context, rule models.Rule) (models.Rule, error) {
	rule.ID = 0
	if err := s.validate(ctx, &rule); err != nil {
		return models.Rule{}, err
	}
	id, err := s.rules.Create(ctx, rule)
	if err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return models.Rule{}, validation.Errors{{Field: "slug", Message: err.Error()}}
		}
		return models.Rule{}, err
	}
	created, err := s.rules.Find(ctx, id)
	if err != nil {
		return models.Rule{}, err
	}
	s.logger.Info("Rule created", zap.Int64("id", id), zap.String("slug", created.Slug))
	s.schedulePublish()
	return created, nil
}

// Update проверяет и обновляет существующее правило
func (s *Service) Update(ctx context.Context, rule models.Rule) (models.Rule, error) {
	if _, err := s.rules.Find(ctx, rule.ID); err != nil {
		return models.Rule{}, err
	}
	if err := s.validate(ctx, &rule); err != nil {
		return models.Rule{}, err
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return models.Rule{}, validation.Errors{{Field: "slug", Message: err.Error()}}
		}
		return models.Rule{}, err
	}
	updated, err := s.rules.Find(ctx, rule.ID)
	if err != nil {
		return models.Rule{}, err
	}
	s.logger.Info("Rule updated", zap.Int64("id", rule.ID), zap.String("slug", updated.Slug))
	s.schedulePublish()
	return updated, nil
}

// Delete удаляет правило вместе со статистикой
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Rule deleted", zap.Int64("id", id))
	s.schedulePublish()
	return nil
}

// Get возвращает правило по ID
func (s *Service) Get(ctx context.Context, id int64) (models.Rule, error) {
	return s.rules.Find(ctx, id)
}

// List возвращает страницу правил и общее количество по фильтру
func (s *Service) List(ctx context.Context, filter models.RuleFilter) ([]models.Rule, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	rules, err := s.rules.GetAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.rules.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// RecordClick записывает клик в фоне; ошибки только логируются
func (s *Service) RecordClick(ruleID int64) {
	if ruleID == 0 || s.clicks == nil {
		return
	}
	day := s.now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), clickTimeout)
		defer cancel()
		if err := s.clicks.RecordClick(ctx, ruleID, day); err != nil {
			s.logger.Warn("Failed to record click", zap.Int64("rule_id", ruleID), zap.Error(err))
		}
	}()
}

// Stats возвращает дневную статистику кликов за период включительно
func (s *Service) Stats(ctx context.Context, from, to time.Time) ([]models.DailyClicks, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid period: %s is before %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return s.clicks.ClicksByRule(ctx, repository.Day(from), repository.Day(to))
}

// CleanupStats удаляет статистику старше retentionDays дней
func (s *Service) CleanupStats(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	before := repository.Day(s.now()).AddDate(0, 0, -retentionDays)
	n, err := s.clicks.Cleanup(ctx, before)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Click stats cleaned up", zap.Int64("rows", n), zap.Time("before", before))
	return n, nil
}
