package snapshot

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tempizhere/edgelink/internal/models"
)

// UnmarshalJSON читает запись снимка без отказа на кривых данных:
// опции не-объект дают пустые опции, нестроковые значения UTM отбрасываются,
// код статуса принимается и числом, и строкой.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw struct {
		TargetURL  json.RawMessage `json:"target_url"`
		StatusCode json.RawMessage `json:"status_code"`
		Options    json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = Link{}
	_ = json.Unmarshal(raw.TargetURL, &l.TargetURL)
	l.StatusCode = looseInt(raw.StatusCode)
	l.Options = looseOptions(raw.Options)
	return nil
}

func looseInt(raw json.RawMessage) int {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := strconv.Atoi(n.String()); err == nil {
			return v
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

func looseOptions(raw json.RawMessage) LinkOptions {
	var opts LinkOptions
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return opts
	}
	_ = json.Unmarshal(fields["passthrough_query"], &opts.PassthroughQuery)
	opts.AppendUTM = looseUTM(fields["append_utm"])
	return opts
}

// looseUTM сохраняет порядок ключей и пропускает нестроковые значения
func looseUTM(raw json.RawMessage) models.UTMParams {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}
	var out models.UTMParams
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return out
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return out
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			continue
		}
		out = out.Set(key, s)
	}
	return out
}
