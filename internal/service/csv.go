package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/models"
	"github.com/tempizhere/edgelink/internal/repository"
	"github.com/tempizhere/edgelink/internal/validation"
)

// CSVColumns колонки файла импорта и экспорта правил
var CSVColumns = []string{"slug", "target_url", "status_code", "enabled", "passthrough_query", "append_utm_json", "notes"}

// exportLimit максимум правил в одном экспорте
const exportLimit = 10000

// ImportResult итог импорта
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// ExportCSV пишет все правила в CSV
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	rules, err := s.rules.GetAll(ctx, models.RuleFilter{Limit: exportLimit})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(CSVColumns); err != nil {
		return err
	}
	for _, rule := range rules {
		utm := ""
		if len(rule.Options.AppendUTM) > 0 {
			data, err := json.Marshal(rule.Options.AppendUTM)
			if err != nil {
				return err
			}
			utm = string(data)
		}
		row := []string{
			rule.Slug,
			rule.TargetURL,
			strconv.Itoa(rule.StatusCode),
			boolFlag(rule.Enabled),
			boolFlag(rule.Options.PassthroughQuery),
			utm,
			rule.Options.Notes,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// ImportCSV создаёт или обновляет правила по slug. Ошибки строк собираются в результат,
// ошибка возвращается, только если файл нельзя прочитать.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	res := ImportResult{Errors: make([]string, 0)}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return res, errors.New("CSV file is empty or invalid")
		}
		return res, err
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"slug", "target_url"} {
		if _, ok := columns[required]; !ok {
			return res, fmt.Errorf("missing required column: %s", required)
		}
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", perr.StartLine, perr.Err))
				continue
			}
			return res, err
		}
		line, _ := cr.FieldPos(0)
		if emptyRow(row) {
			continue
		}
		rule, ok := parseRow(row, columns, line, &res)
		if !ok {
			continue
		}
		s.upsert(ctx, rule, line, &res)
	}

	if res.Created+res.Updated > 0 {
		s.logger.Info("Rules imported", zap.Int("created", res.Created), zap.Int("updated", res.Updated))
		s.schedulePublish()
	}
	return res, nil
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string, columns map[string]int, line int, res *ImportResult) (models.Rule, bool) {
	get := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rule := models.Rule{Slug: get("slug"), TargetURL: get("target_url")}
	if rule.Slug == "" || rule.TargetURL == "" {
		res.Errors = append(res.Errors, fmt.Sprintf("Row %d: slug and target_url are required", line))
		return rule, false
	}

	rule.StatusCode = models.DefaultStatusCode
	if raw := get("status_code"); raw != "" {
		code, _ := strconv.Atoi(raw)
		if models.IsAllowedStatus(code) {
			rule.StatusCode = code
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: invalid status code, using %d", line, models.DefaultStatusCode))
		}
	}

	enabled := strings.ToLower(get("enabled"))
	rule.Enabled = enabled == "" || enabled == "1" || enabled == "true"
	passthrough := strings.ToLower(get("passthrough_query"))
	rule.Options.PassthroughQuery = passthrough == "1" || passthrough == "true"
	rule.Options.Notes = get("notes")

	if raw := get("append_utm_json"); raw != "" {
		var utm models.UTMParams
		if err := json.Unmarshal([]byte(raw), &utm); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: invalid UTM JSON, skipping UTM parameters", line))
		} else {
			rule.Options.AppendUTM = utm
		}
	}
	return rule, true
}

// upsert обновляет правило с тем же slug или создаёт новое
func (s *Service) upsert(ctx context.Context, rule models.Rule, line int, res *ImportResult) {
	existing, err := s.rules.FindBySlug(ctx, validation.SanitizeSlug(rule.Slug))
	switch {
	case err == nil:
		rule.ID = existing.ID
	case !errors.Is(err, repository.ErrNotFound):
		res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", line, err))
		return
	}

	if err := s.validate(ctx, &rule); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", line, err))
		return
	}

	if rule.ID != 0 {
		err = s.rules.Update(ctx, rule)
	} else {
		_, err = s.rules.Create(ctx, rule)
	}
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", line, err))
		return
	}
	if rule.ID != 0 {
		res.Updated++
	} else {
		res.Created++
	}
}
