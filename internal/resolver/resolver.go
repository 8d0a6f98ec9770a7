// Package resolver решает, куда перенаправить запрос по slug.
// Функции построения цели чистые и используются и на origin, и в edge-рантайме.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/models"
)

// RuleFinder источник правил для резолвера
type RuleFinder interface {
	FindBySlug(ctx context.Context, slug string) (models.Rule, error)
}

// Resolver разрешает slug в решение о редиректе
type Resolver struct {
	rules  RuleFinder
	logger *zap.Logger
}

// NewResolver создаёт новый экземпляр Resolver
func NewResolver(rules RuleFinder, logger *zap.Logger) *Resolver {
	return &Resolver{rules: rules, logger: logger}
}

// Resolve возвращает решение для slug. Любая ошибка превращается в "без редиректа".
func (r *Resolver) Resolve(ctx context.Context, rawSlug string, matchedBy models.MatchSource, rawQuery string) models.RedirectDecision {
	slug, err := NormalizeSlug(rawSlug)
	if err != nil {
		return models.NotFound()
	}

	rule, err := r.rules.FindBySlug(ctx, slug)
	if err != nil {
		r.logger.Debug("Rule lookup failed",
			zap.String("slug", slug),
			zap.Error(err))
		return models.NotFound()
	}
	if !rule.Enabled {
		return models.NotFound()
	}

	target := BuildTarget(rule.TargetURL, rule.Options.PassthroughQuery, rule.Options.AppendUTM, rawQuery)

	status := rule.StatusCode
	if !models.IsAllowedStatus(status) {
		status = models.DefaultStatusCode
	}

	return models.RedirectDecision{
		ShouldRedirect: true,
		TargetURL:      target,
		StatusCode:     status,
		LinkID:         rule.ID,
		MatchedBy:      matchedBy,
		Options:        rule.Options,
	}
}
