package snapshot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempizhere/edgelink/internal/models"
)

func testRules() []models.Rule {
	return []models.Rule{
		{Slug: "docs", TargetURL: "https://docs.example.com", StatusCode: 301, Enabled: true,
			Options: models.RuleOptions{AppendUTM: models.UTMParams{{Key: "utm_source", Value: "website"}}, Notes: "internal"}},
		{Slug: "x", TargetURL: "https://e.com?a=1", StatusCode: 302, Enabled: true,
			Options: models.RuleOptions{PassthroughQuery: true}},
		{Slug: "off", TargetURL: "https://off.example.com", StatusCode: 302, Enabled: false},
	}
}

func TestBuild_OnlyEnabled(t *testing.T) {
	s := Build(testRules(), "go", time.Now())

	assert.Equal(t, Version, s.Version)
	assert.Equal(t, "go", s.Prefix)
	assert.Len(t, s.Links, 2)
	assert.NotContains(t, s.Links, "off")
	assert.Equal(t, "https://docs.example.com", s.Links["docs"].TargetURL)
}

func TestBuild_DuplicateSlugLastWins(t *testing.T) {
	rules := []models.Rule{
		{Slug: "a", TargetURL: "https://one.example.com", StatusCode: 302, Enabled: true},
		{Slug: "a", TargetURL: "https://two.example.com", StatusCode: 302, Enabled: true},
	}
	s := Build(rules, "go", time.Now())
	assert.Equal(t, "https://two.example.com", s.Links["a"].TargetURL)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	s := Build(testRules(), "go", time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))

	data, err := Encode(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "internal")
	assert.NotContains(t, string(data), "off.example.com")

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s.Version, got.Version)
	assert.Equal(t, s.Prefix, got.Prefix)
	assert.True(t, s.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, s.Links, got.Links)
}

func TestEncode_WireShape(t *testing.T) {
	s := Build(testRules()[:1], "go", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	data, err := Encode(s)
	require.NoError(t, err)

	assert.Equal(t,
		`{"version":1,"updated_at":"2024-05-01T00:00:00Z","prefix":"go","links":{"docs":{"target_url":"https://docs.example.com","status_code":301,"options":{"append_utm":{"utm_source":"website"}}}}}`,
		string(data))
}

func TestDecode_Lenient(t *testing.T) {
	data := `{"version":1,"updated_at":"2024-05-01T00:00:00Z","prefix":"go","links":{
		"a":{"target_url":"https://a.example.com","status_code":"301","options":[]},
		"b":{"target_url":"https://b.example.com","status_code":302,"options":{"passthrough_query":true,"append_utm":{"utm_source":"x","utm_medium":5}}},
		"c":{"target_url":5,"status_code":null,"options":"bad"}
	}}`
	s, err := Decode([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, 301, s.Links["a"].StatusCode)
	assert.Equal(t, LinkOptions{}, s.Links["a"].Options)

	assert.True(t, s.Links["b"].Options.PassthroughQuery)
	assert.Equal(t, models.UTMParams{{Key: "utm_source", Value: "x"}}, s.Links["b"].Options.AppendUTM)

	assert.Empty(t, s.Links["c"].TargetURL)
	assert.Zero(t, s.Links["c"].StatusCode)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestCheckSize(t *testing.T) {
	links := Links(testRules())
	size, err := CheckSize(links)
	require.NoError(t, err)
	assert.Greater(t, size, BaseOverhead)

	big := map[string]Link{
		"huge": {TargetURL: "https://e.com/" + strings.Repeat("a", HardSizeLimit), StatusCode: 302},
	}
	_, err = CheckSize(big)
	var sizeErr *SizeLimitError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, HardSizeLimit, sizeErr.Limit)
	assert.Contains(t, err.Error(), "exceeds the limit")
}

func TestRenderWorkerScript(t *testing.T) {
	s := Build(testRules(), "go", time.Now())
	script, err := RenderWorkerScript(s, time.Now())
	require.NoError(t, err)

	body := string(script)
	assert.Contains(t, body, `const SNAPSHOT = {"version":1`)
	assert.Contains(t, body, "Links count: 2")
	assert.Contains(t, body, "const MAX_SLUG_LENGTH = 200;")
	assert.Contains(t, body, "'X-Handled-By': 'edgelink-edge'")
	assert.Contains(t, body, "'X-Edgelink-Snapshot-Updated': '"+UpdatedHeader(s)+"'")
	assert.Contains(t, body, "export default")
}
