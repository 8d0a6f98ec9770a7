package deploy

import (
	"context"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/provider"
)

// createRoute ищет маршрут по точному шаблону: свой принимается, чужой даёт
// ConflictError, при отсутствии маршрут создаётся. Идентификатор сохраняется в st.
func (o *Orchestrator) createRoute(ctx context.Context, st *models.EdgeState, pattern, script string) error {
	if st.ZoneID == "" {
		return ErrNotReady
	}

	routes, err := o.api.ListRoutes(ctx, st.ZoneID)
	if err != nil {
		return err
	}
	if existing, ok := provider.FindRouteByPattern(routes, pattern); ok {
		if existing.Script != script {
			return &ConflictError{Pattern: pattern, Script: existing.Script}
		}
		if st.RouteID == existing.ID {
			return nil
		}
		st.RouteID = existing.ID
		return o.state.SaveEdgeState(ctx, *st)
	}

	route, err := o.api.CreateRoute(ctx, st.ZoneID, pattern, script)
	if err != nil {
		return err
	}
	st.RouteID = route.ID
	return o.state.SaveEdgeState(ctx, *st)
}

// removeRoute удаляет свой маршрут; отсутствие маршрута или зоны не ошибка
func (o *Orchestrator) removeRoute(ctx context.Context, st *models.EdgeState, pattern, script string) error {
	if st.ZoneID == "" {
		return nil
	}

	routeID := st.RouteID
	if routeID == "" {
		routes, err := o.api.ListRoutes(ctx, st.ZoneID)
		if err != nil {
			return err
		}
		if existing, ok := provider.FindRouteByPattern(routes, pattern); ok && existing.Script == script {
			routeID = existing.ID
		}
	}
	if routeID == "" {
		return nil
	}

	if err := o.api.DeleteRoute(ctx, st.ZoneID, routeID); err != nil && !provider.IsNotFound(err) {
		return err
	}
	st.RouteID = ""
	return nil
}

// dropRoute удаляет маршрут перед пересозданием. Сбой удаления только
// логируется: createRoute примет оставшийся свой маршрут или вернёт конфликт.
func (o *Orchestrator) dropRoute(ctx context.Context, st *models.EdgeState, routeID string) error {
	if err := o.api.DeleteRoute(ctx, st.ZoneID, routeID); err != nil && !provider.IsNotFound(err) {
		o.logger.Warn("Route delete failed, recreating anyway",
			zap.String("route_id", routeID),
			zap.Error(err))
		return nil
	}
	st.RouteID = ""
	return o.state.SaveEdgeState(ctx, *st)
}
