package post

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cydonia/internal/errors"
)

func writePost(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantSlug  string
		wantTitle string
		wantDate  string
		wantCode  string
	}{
		{
			name:      "simple",
			path:      "/site/posts/2024-01-01-hello-world.md",
			wantSlug:  "2024-01-01-hello-world",
			wantTitle: "Hello World",
			wantDate:  "2024-01-01",
		},
		{
			name:      "single word keeps inner case",
			path:      "2023-12-29-iOS.md",
			wantSlug:  "2023-12-29-iOS",
			wantTitle: "IOS",
			wantDate:  "2023-12-29",
		},
		{
			name:      "no extension",
			path:      "2020-02-29-leap-day",
			wantSlug:  "2020-02-29-leap-day",
			wantTitle: "Leap Day",
			wantDate:  "2020-02-29",
		},
		{name: "no date", path: "hello-world.md", wantCode: errors.ErrCodeBadFilename},
		{name: "missing title", path: "2024-01-01.md", wantCode: errors.ErrCodeBadFilename},
		{name: "empty title", path: "2024-01-01-.md", wantCode: errors.ErrCodeBadFilename},
		{name: "invalid day", path: "2023-02-29-not-leap.md", wantCode: errors.ErrCodeInvalidDate},
		{name: "short year", path: "24-01-01-hello.md", wantCode: errors.ErrCodeInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseFilename(tt.path)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Nil(t, info)
				assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSlug, info.Slug)
			assert.Equal(t, tt.wantTitle, info.Title)
			assert.Equal(t, tt.wantDate, info.Date.Format(DateLayout))
		})
	}
}

func TestParseMeta(t *testing.T) {
	meta, err := ParseMeta("a.md", []byte(`
title: Custom Title
date: 2022-05-06
author: clearloop
labels: [rust, go]
unknown: ignored
`))
	require.NoError(t, err)
	assert.Equal(t, "Custom Title", meta.Title)
	assert.Equal(t, "clearloop", meta.Author)
	assert.Equal(t, []string{"rust", "go"}, meta.Labels)
	assert.Equal(t, time.Date(2022, 5, 6, 0, 0, 0, 0, time.UTC), meta.Date)

	empty, err := ParseMeta("a.md", nil)
	require.NoError(t, err)
	assert.True(t, empty.Date.IsZero())

	_, err = ParseMeta("a.md", []byte("date: yesterday\n"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidDate))

	_, err = ParseMeta("a.md", []byte("title: [unterminated\n"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeBadMetadata))
}

func TestLoadDerivesFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := writePost(t, dir, "2024-01-01-hello-world.md", "---\nauthor: me\n---\n\nHello, *world*.\n")

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, p.Path)
	assert.Equal(t, "Hello World", p.Title)
	assert.Equal(t, "2024-01-01", p.Date.Format(DateLayout))
	assert.Equal(t, "Jan 01", p.Index.Date)
	assert.Equal(t, "posts/2024-01-01-hello-world.html", p.Index.Link)
	assert.Empty(t, p.Index.Year)
	assert.Contains(t, string(p.Content), "<em>world</em>")
	assert.Equal(t, "Hello, world.", p.Meta.Description)
}

func TestLoadMetadataWins(t *testing.T) {
	dir := t.TempDir()
	path := writePost(t, dir, "2024-01-01-hello-world.md",
		"---\ntitle: Something Else\ndate: 2023-06-15\ndescription: given\n---\n# Heading\n")

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Something Else", p.Title)
	assert.Equal(t, "2023-06-15", p.Date.Format(DateLayout))
	assert.Equal(t, "Jun 15", p.Index.Date)
	assert.Equal(t, "given", p.Meta.Description)
	assert.Contains(t, string(p.Content), `<h1 id="heading">Heading</h1>`)
	assert.Equal(t, "posts/2024-01-01-hello-world.html", p.Index.Link, "link always follows the filename")
}

func TestLoadBodyMayContainMarker(t *testing.T) {
	dir := t.TempDir()
	path := writePost(t, dir, "2024-01-01-rules.md", "---\n---\nabove\n\n---\n\nbelow\n")

	p, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, string(p.Content), "<hr>")
	assert.Contains(t, string(p.Content), "below")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{name: "no front matter", file: "2024-01-01-a.md", content: "# just markdown\n", code: errors.ErrCodeMalformedPost},
		{name: "one marker", file: "2024-01-01-a.md", content: "---\ntitle: x\n", code: errors.ErrCodeMalformedPost},
		{name: "text before marker", file: "2024-01-01-a.md", content: "intro\n---\n---\nbody", code: errors.ErrCodeMalformedPost},
		{name: "bad filename", file: "notes.md", content: "---\n---\nbody", code: errors.ErrCodeBadFilename},
		{name: "bad yaml", file: "2024-01-01-a.md", content: "---\n: : :\n  - [\n---\nbody", code: errors.ErrCodeBadMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePost(t, t.TempDir(), tt.file, tt.content)

			p, err := Load(path)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.IsLoadError(err))
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "2024-01-01-missing.md"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeReadFailed))
}

func TestMalformedMessageNamesFormat(t *testing.T) {
	_, err := Parse("2024-01-01-a.md", []byte("no markers"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date: YYYY-MM-DD")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "first para", Excerpt("<h1>T</h1><p>first\n  para</p><p>second</p>", 160))
	assert.Equal(t, "", Excerpt("<h1>only heading</h1>", 160))

	long := "<p>" + strings.Repeat("ab ", 100) + "</p>"
	got := Excerpt(long, 20)
	assert.LessOrEqual(t, len([]rune(got)), 20)
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestStarterTemplateParses(t *testing.T) {
	p, err := Parse("/site/posts/2024-05-06-hello-world.md", []byte(Template))
	require.NoError(t, err)

	assert.Equal(t, "Hello World", p.Title)
	assert.Equal(t, "cydonia", p.Meta.Author)
	assert.Equal(t, []string{"cydonia"}, p.Meta.Labels)
	assert.Contains(t, string(p.Content), "<code>YYYY-MM-DD-title.md</code>")
}
