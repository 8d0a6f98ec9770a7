package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempizhere/edgelink/internal/models"
)

func TestSanitizeSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Docs", "docs"},
		{"trim", "  docs  ", "docs"},
		{"spaces to hyphens", "my docs page", "my-docs-page"},
		{"strip symbols", "a!b@c#_d-e", "abc_d-e"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeSlug(tt.in))
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := New("example.com", "go")

	tests := []struct {
		name      string
		rule      models.Rule
		wantField string
	}{
		{
			name: "valid",
			rule: models.Rule{Slug: "docs", TargetURL: "https://docs.example.com", StatusCode: 301},
		},
		{
			name:      "empty slug",
			rule:      models.Rule{Slug: "!!!", TargetURL: "https://e.com"},
			wantField: "slug",
		},
		{
			name:      "reserved slug",
			rule:      models.Rule{Slug: "admin", TargetURL: "https://e.com"},
			wantField: "slug",
		},
		{
			name:      "bad scheme",
			rule:      models.Rule{Slug: "x", TargetURL: "ftp://e.com"},
			wantField: "target_url",
		},
		{
			name:      "relative url",
			rule:      models.Rule{Slug: "x", TargetURL: "https:///path"},
			wantField: "target_url",
		},
		{
			name:      "bad status",
			rule:      models.Rule{Slug: "x", TargetURL: "https://e.com", StatusCode: 303},
			wantField: "status_code",
		},
		{
			name:      "loop",
			rule:      models.Rule{Slug: "x", TargetURL: "https://Example.com/go/x/"},
			wantField: "target_url",
		},
		{
			name: "bad utm key",
			rule: models.Rule{Slug: "x", TargetURL: "https://e.com", Options: models.RuleOptions{
				AppendUTM: models.UTMParams{{Key: "utm-source", Value: "a"}},
			}},
			wantField: "options.append_utm",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			err := v.Validate(&rule)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verrs Errors
			require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidator_DefaultsStatus(t *testing.T) {
	rule := models.Rule{Slug: " My Link ", TargetURL: "https://e.com"}
	require.NoError(t, New("", "go").Validate(&rule))
	assert.Equal(t, "my-link", rule.Slug)
	assert.Equal(t, models.DefaultStatusCode, rule.StatusCode)
}

func TestValidUTM(t *testing.T) {
	assert.True(t, ValidUTMKey("utm_source"))
	assert.False(t, ValidUTMKey(""))
	assert.False(t, ValidUTMKey("utm source"))
	assert.False(t, ValidUTMKey(string(make([]byte, 51))))
	assert.True(t, ValidUTMValue("website"))
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidUTMValue(string(long)))
}
