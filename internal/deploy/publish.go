package deploy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/metrics"
	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/snapshot"
)

// publish собирает снимок, проверяет размер до любого сетевого вызова
// и загружает скрипт воркера
func (o *Orchestrator) publish(ctx context.Context, st *models.EdgeState, s config.Settings) error {
	if st.AccountID == "" {
		return ErrNotReady
	}

	rules, err := o.rules.GetEnabledRulesForSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	links := snapshot.Links(rules)
	size, err := snapshot.CheckSize(links)
	if err != nil {
		return err
	}
	if len(links) > snapshot.SoftRuleLimit {
		msg := fmt.Sprintf("Snapshot contains %d links (recommended maximum %d). Consider disabling unused links.",
			len(links), snapshot.SoftRuleLimit)
		o.logger.Warn("Snapshot exceeds recommended link count", zap.Int("links", len(links)))
		o.audit(ctx, "publish_warning", msg)
	}

	now := o.now()
	snap := snapshot.Build(rules, s.Prefix, now)
	script, err := snapshot.RenderWorkerScript(snap, now)
	if err != nil {
		return err
	}
	if err := o.api.UploadWorker(ctx, st.AccountID, s.WorkerName, script, snapshot.ScriptModule); err != nil {
		return fmt.Errorf("upload worker: %w", err)
	}

	published := now.UTC()
	st.LastPublish = &published
	if err := o.state.SaveEdgeState(ctx, *st); err != nil {
		return err
	}
	metrics.SnapshotLinks.Set(float64(len(snap.Links)))
	metrics.SnapshotSizeBytes.Set(float64(size))
	o.logger.Info("Snapshot published",
		zap.Int("links", len(snap.Links)),
		zap.Int("estimated_size", size),
		zap.String("prefix", s.Prefix))
	return nil
}
