package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempizhere/edgelink/internal/models"
)

func TestService_ExportCSV(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Create(ctx, models.Rule{
		Slug:       "docs",
		TargetURL:  "https://docs.example.com/a,b",
		StatusCode: 301,
		Enabled:    true,
		Options: models.RuleOptions{
			PassthroughQuery: true,
			AppendUTM:        models.UTMParams{{Key: "utm_source", Value: "site"}},
			Notes:            "main docs",
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, &buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "slug,target_url,status_code,enabled,passthrough_query,append_utm_json,notes", lines[0])
	assert.Equal(t, `docs,"https://docs.example.com/a,b",301,1,1,"{""utm_source"":""site""}",main docs`, lines[1])
}

func TestService_ImportCSV(t *testing.T) {
	ctx := context.Background()
	svc, repo, pub := newTestService(t)

	existing, err := svc.Create(ctx, models.Rule{Slug: "docs", TargetURL: "https://old.example.com"})
	require.NoError(t, err)

	input := strings.Join([]string{
		"Slug,Target_URL,status_code,enabled,passthrough_query,append_utm_json,notes",
		"docs,https://new.example.com,308,1,0,,",
		"New Page,https://page.example.com,303,false,true,\"{\"\"utm_medium\"\":\"\"csv\"\"}\",imported",
		",https://missing-slug.example.com,,,,,",
		"",
		"admin,https://admin.example.com,,,,,",
		"bad-utm,https://u.example.com,,,,not-json,",
	}, "\n")

	res, err := svc.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Errors, 4)
	assert.Contains(t, res.Errors[0], "Row 3: invalid status code")
	assert.Contains(t, res.Errors[1], "Row 4: slug and target_url are required")
	assert.Contains(t, res.Errors[2], "Row 6")
	assert.Contains(t, res.Errors[2], "reserved")
	assert.Contains(t, res.Errors[3], "Row 7: invalid UTM JSON")

	updated, err := repo.Find(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", updated.TargetURL)
	assert.Equal(t, 308, updated.StatusCode)

	page, err := repo.FindBySlug(ctx, "new-page")
	require.NoError(t, err)
	assert.Equal(t, 302, page.StatusCode)
	assert.False(t, page.Enabled)
	assert.True(t, page.Options.PassthroughQuery)
	v, ok := page.Options.AppendUTM.Get("utm_medium")
	assert.True(t, ok)
	assert.Equal(t, "csv", v)

	// один Create до импорта и одна публикация после
	assert.Equal(t, int32(2), pub.count())
}

func TestService_ImportCSVHeaderErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t)

	_, err := svc.ImportCSV(ctx, strings.NewReader(""))
	assert.Error(t, err)

	_, err = svc.ImportCSV(ctx, strings.NewReader("slug,status_code\ndocs,301\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target_url")
	assert.Zero(t, pub.count())
}
