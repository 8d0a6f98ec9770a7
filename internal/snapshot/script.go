package snapshot

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"time"

	"github.com/tempizhere/edgelink/internal/models"
)

// Заголовки ответа edge-редиректа
const (
	HeaderHandledBy       = "X-Handled-By"
	HeaderSnapshotVersion = "X-Edgelink-Snapshot-Version"
	HeaderSnapshotUpdated = "X-Edgelink-Snapshot-Updated"
	HandledByEdge         = "edgelink-edge"
)

// UpdatedLayout формат заголовка X-Edgelink-Snapshot-Updated
const UpdatedLayout = "2006-01-02T15:04:05-07:00"

// UpdatedHeader значение заголовка X-Edgelink-Snapshot-Updated
func UpdatedHeader(s Snapshot) string {
	return s.UpdatedAt.UTC().Format(UpdatedLayout)
}

// ScriptModule имя модуля воркера при загрузке
const ScriptModule = "worker.js"

//go:embed templates/worker.js.tmpl
var templates embed.FS

var workerTemplate = template.Must(template.ParseFS(templates, "templates/worker.js.tmpl"))

type scriptData struct {
	Generated         string
	LinksCount        int
	SnapshotJSON      string
	MaxSlugLength     int
	MaxUTMKeyLength   int
	MaxUTMValueLength int
	HandledBy         string
	UpdatedHeader     string
}

// RenderWorkerScript встраивает снимок в JS-модуль воркера
func RenderWorkerScript(s Snapshot, now time.Time) ([]byte, error) {
	data, err := Encode(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = workerTemplate.Execute(&buf, scriptData{
		Generated:         now.UTC().Format(time.RFC3339),
		LinksCount:        len(s.Links),
		SnapshotJSON:      string(data),
		MaxSlugLength:     models.MaxSlugLength,
		MaxUTMKeyLength:   models.MaxUTMKeyLength,
		MaxUTMValueLength: models.MaxUTMValueLength,
		HandledBy:         HandledByEdge,
		UpdatedHeader:     UpdatedHeader(s),
	})
	if err != nil {
		return nil, fmt.Errorf("render worker script: %w", err)
	}
	return buf.Bytes(), nil
}
