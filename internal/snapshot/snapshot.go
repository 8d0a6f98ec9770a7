// Package snapshot собирает версионированный снимок включённых правил,
// сериализует его и проверяет ограничения размера перед публикацией.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tempizhere/edgelink/internal/models"
)

// Version версия схемы снимка
const Version = 1

// Ограничения публикации
const (
	// SoftRuleLimit порог количества правил, после которого пишется предупреждение
	SoftRuleLimit = 2000
	// HardSizeLimit предельный оценочный размер скрипта (около 3 MiB после сжатия)
	HardSizeLimit = 9 * 1024 * 1024
	// BaseOverhead оценка размера кода воркера без данных
	BaseOverhead = 1024
)

// LinkOptions подмножество опций правила, попадающее в снимок
type LinkOptions struct {
	PassthroughQuery bool             `json:"passthrough_query,omitempty"`
	AppendUTM        models.UTMParams `json:"append_utm,omitempty"`
}

// Link данные одного slug в снимке
type Link struct {
	TargetURL  string      `json:"target_url"`
	StatusCode int         `json:"status_code"`
	Options    LinkOptions `json:"options"`
}

// Snapshot неизменяемый снимок всех включённых правил на момент UpdatedAt
type Snapshot struct {
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Prefix    string          `json:"prefix"`
	Links     map[string]Link `json:"links"`
}

// SizeLimitError возвращается, если оценка размера достигла предела
type SizeLimitError struct {
	Size  int
	Limit int
}

// Error реализует интерфейс error
func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("bundle size (%s) exceeds the limit (%s); reduce the number of links or URL lengths",
		formatSize(e.Size), formatSize(e.Limit))
}

// Links отбирает включённые правила и раскладывает их по slug.
// При повторе slug побеждает последнее правило.
func Links(rules []models.Rule) map[string]Link {
	links := make(map[string]Link, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		links[r.Slug] = Link{
			TargetURL:  r.TargetURL,
			StatusCode: r.StatusCode,
			Options: LinkOptions{
				PassthroughQuery: r.Options.PassthroughQuery,
				AppendUTM:        r.Options.AppendUTM,
			},
		}
	}
	return links
}

// EstimateSize оценивает размер скрипта до сборки
func EstimateSize(links map[string]Link) (int, error) {
	data, err := json.Marshal(links)
	if err != nil {
		return 0, err
	}
	return BaseOverhead + len(data), nil
}

// CheckSize возвращает *SizeLimitError, если оценка не меньше HardSizeLimit
func CheckSize(links map[string]Link) (int, error) {
	size, err := EstimateSize(links)
	if err != nil {
		return 0, err
	}
	if size >= HardSizeLimit {
		return size, &SizeLimitError{Size: size, Limit: HardSizeLimit}
	}
	return size, nil
}

// Build собирает снимок из правил
func Build(rules []models.Rule, prefix string, now time.Time) Snapshot {
	return Snapshot{
		Version:   Version,
		UpdatedAt: now.UTC().Truncate(time.Second),
		Prefix:    prefix,
		Links:     Links(rules),
	}
}

// Encode сериализует снимок в wire-формат
func Encode(s Snapshot) ([]byte, error) {
	if s.Links == nil {
		s.Links = map[string]Link{}
	}
	return json.Marshal(s)
}

// Decode разбирает снимок из wire-формата
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Links == nil {
		s.Links = map[string]Link{}
	}
	return s, nil
}

func formatSize(n int) string {
	const mib = 1024 * 1024
	if n >= mib {
		return fmt.Sprintf("%.1f MB", float64(n)/mib)
	}
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}
