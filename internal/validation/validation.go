// Package validation проверяет и нормализует правила редиректа перед сохранением.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tempizhere/edgelink/internal/models"
)

var (
	slugStripRe  = regexp.MustCompile(`[^a-z0-9_-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	utmKeyRe     = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// reservedSlugs нельзя использовать: они пересекаются со служебными маршрутами
var reservedSlugs = map[string]struct{}{
	"admin":       {},
	"api":         {},
	"metrics":     {},
	"ping":        {},
	"healthz":     {},
	"debug":       {},
	"static":      {},
	"assets":      {},
	"login":       {},
	"logout":      {},
	"favicon.ico": {},
	"robots.txt":  {},
}

// FieldError ошибка одного поля правила
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors набор ошибок валидации
type Errors []FieldError

// Error реализует интерфейс error
func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Errors) add(field, format string, args ...interface{}) {
	*e = append(*e, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validator проверяет правила относительно хоста и префикса сайта
type Validator struct {
	host     string
	prefix   string
	validate *validator.Validate
}

// New создаёт Validator; host и prefix нужны для обнаружения петель
func New(host, prefix string) *Validator {
	return &Validator{
		host:     strings.ToLower(host),
		prefix:   strings.Trim(prefix, "/"),
		validate: validator.New(),
	}
}

// WithPrefix возвращает копию с другим префиксом
func (v *Validator) WithPrefix(prefix string) *Validator {
	cp := *v
	cp.prefix = strings.Trim(prefix, "/")
	return &cp
}

// SanitizeSlug приводит slug к допустимому виду
func SanitizeSlug(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	slug = whitespaceRe.ReplaceAllString(slug, "-")
	return slugStripRe.ReplaceAllString(slug, "")
}

// IsReserved сообщает, зарезервирован ли slug
func IsReserved(slug string) bool {
	_, ok := reservedSlugs[strings.ToLower(slug)]
	return ok
}

// ValidUTMKey проверяет ключ UTM по набору символов и длине
func ValidUTMKey(key string) bool {
	return key != "" && len(key) <= models.MaxUTMKeyLength && utmKeyRe.MatchString(key)
}

// ValidUTMValue проверяет длину значения UTM
func ValidUTMValue(value string) bool {
	return len(value) <= models.MaxUTMValueLength
}

// Validate нормализует slug правила и проверяет все поля.
// Возвращает Errors, если хотя бы одно поле некорректно.
func (v *Validator) Validate(rule *models.Rule) error {
	var errs Errors

	rule.Slug = SanitizeSlug(rule.Slug)
	rule.TargetURL = strings.TrimSpace(rule.TargetURL)
	if rule.StatusCode == 0 {
		rule.StatusCode = models.DefaultStatusCode
	}

	if err := v.validate.Struct(rule); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs.add(jsonField(fe.Field()), "failed on %s", fe.Tag())
			}
		} else {
			return err
		}
	}

	if rule.Slug != "" && IsReserved(rule.Slug) {
		errs.add("slug", "slug %q is reserved", rule.Slug)
	}

	if rule.TargetURL != "" {
		u, err := url.Parse(rule.TargetURL)
		switch {
		case err != nil:
			errs.add("target_url", "invalid URL")
		case u.Scheme != "http" && u.Scheme != "https":
			errs.add("target_url", "scheme must be http or https")
		case u.Host == "":
			errs.add("target_url", "URL must be absolute")
		case v.isLoop(u, rule.Slug):
			errs.add("target_url", "target points back to this redirect")
		}
	}

	for _, kv := range rule.Options.AppendUTM {
		if !ValidUTMKey(kv.Key) {
			errs.add("options.append_utm", "invalid key %q", kv.Key)
		}
		if !ValidUTMValue(kv.Value) {
			errs.add("options.append_utm", "value for %q is longer than %d", kv.Key, models.MaxUTMValueLength)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// isLoop сообщает, ведёт ли цель на собственный адрес редиректа
func (v *Validator) isLoop(u *url.URL, slug string) bool {
	if v.host == "" || !strings.EqualFold(u.Hostname(), v.host) {
		return false
	}
	path := strings.TrimRight(u.Path, "/")
	return strings.EqualFold(path, "/"+v.prefix+"/"+slug)
}

func jsonField(name string) string {
	switch name {
	case "Slug":
		return "slug"
	case "TargetURL":
		return "target_url"
	case "StatusCode":
		return "status_code"
	}
	return strings.ToLower(name)
}
