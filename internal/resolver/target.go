package resolver

import (
	"errors"
	"net/url"
	"strings"

	"github.com/tempizhere/edgelink/internal/models"
)

// ErrEmptySlug возвращается, если после нормализации slug пуст
var ErrEmptySlug = errors.New("empty slug")

// NormalizeSlug декодирует, обрезает и приводит slug к нижнему регистру.
// Некорректное процентное кодирование возвращает ошибку.
func NormalizeSlug(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", err
	}
	slug := strings.ToLower(strings.TrimSpace(decoded))
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}

// BuildTarget строит итоговый URL: сначала дописывает входящую строку запроса,
// затем накладывает UTM-параметры поверх существующих.
// Сегменты запроса с другими ключами остаются в исходном виде, поэтому
// строка запроса не обязана быть валидной для url.ParseQuery.
func BuildTarget(target string, passthrough bool, utm models.UTMParams, rawQuery string) string {
	final := target
	if passthrough && rawQuery != "" {
		sep := "?"
		if strings.Contains(final, "?") {
			sep = "&"
		}
		final += sep + rawQuery
	}
	if len(utm) == 0 {
		return final
	}

	base, fragment, hasFragment := strings.Cut(final, "#")
	base, query, _ := strings.Cut(base, "?")

	var segments []string
	for _, seg := range strings.Split(query, "&") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	for _, kv := range utm {
		segments = setQueryParam(segments, kv.Key, kv.Value)
	}

	final = base
	if len(segments) > 0 {
		final += "?" + strings.Join(segments, "&")
	}
	if hasFragment {
		final += "#" + fragment
	}
	return final
}

// setQueryParam заменяет первый сегмент с ключом key, удаляет остальные
// с тем же ключом, а при отсутствии ключа дописывает пару в конец.
func setQueryParam(segments []string, key, value string) []string {
	pair := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	out := segments[:0]
	replaced := false
	for _, seg := range segments {
		if segmentKey(seg) != key {
			out = append(out, seg)
			continue
		}
		if !replaced {
			out = append(out, pair)
			replaced = true
		}
	}
	if !replaced {
		out = append(out, pair)
	}
	return out
}

// segmentKey декодирует ключ сегмента; при ошибке декодирования ключ берётся как есть
func segmentKey(seg string) string {
	key, _, _ := strings.Cut(seg, "=")
	if decoded, err := url.QueryUnescape(key); err == nil {
		return decoded
	}
	return key
}
