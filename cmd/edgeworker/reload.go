package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/edge"
	"github.com/tempizhere/edgelink/internal/snapshot"
)

// loader перечитывает файл снимка и подменяет его в обработчике
type loader struct {
	path    string
	handler *edge.Handler
	logger  *zap.Logger

	mu      sync.Mutex
	modTime time.Time
}

// readSnapshot читает и разбирает файл снимка
func readSnapshot(path string) (snapshot.Snapshot, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot.Snapshot{}, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot.Snapshot{}, time.Time{}, err
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		return snapshot.Snapshot{}, time.Time{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, info.ModTime(), nil
}

// Reload загружает снимок; при force файл читается даже без изменения времени модификации.
// При ошибке обработчик продолжает работать с прежним снимком.
func (l *loader) Reload(force bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !force {
		info, err := os.Stat(l.path)
		if err != nil {
			return false, err
		}
		if !info.ModTime().After(l.modTime) {
			return false, nil
		}
	}

	snap, modTime, err := readSnapshot(l.path)
	if err != nil {
		return false, err
	}
	l.handler.Swap(snap)
	l.modTime = modTime
	l.logger.Info("Snapshot loaded",
		zap.String("path", l.path),
		zap.Int("links", len(snap.Links)),
		zap.String("prefix", snap.Prefix))
	return true, nil
}
