package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cydonia/internal/errors"
)

func writeManifest(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		check    func(t *testing.T, root string, m *Manifest)
	}{
		{
			name:     "minimal manifest gets defaults",
			manifest: MinimalManifest,
			check: func(t *testing.T, root string, m *Manifest) {
				assert.Equal(t, "Cydonia", m.Title)
				assert.Equal(t, filepath.Join(root, "out"), m.Out)
				assert.Equal(t, filepath.Join(root, "posts"), m.Posts)
				assert.Equal(t, filepath.Join(root, "public"), m.Public)
				assert.Equal(t, filepath.Join(root, "templates"), m.Templates)
				assert.Equal(t, filepath.Join(root, "theme"), m.Theme)
				assert.Equal(t, filepath.Join(root, "favicon.svg"), m.Favicon)
			},
		},
		{
			name: "custom relative paths",
			manifest: `title = "Blog"
out = "dist"
posts = "content/posts"
theme = "style.css"
`,
			check: func(t *testing.T, root string, m *Manifest) {
				assert.Equal(t, "Blog", m.Title)
				assert.Equal(t, filepath.Join(root, "dist"), m.Out)
				assert.Equal(t, filepath.Join(root, "content", "posts"), m.Posts)
				assert.Equal(t, filepath.Join(root, "style.css"), m.Theme)
			},
		},
		{
			name: "absolute paths are kept",
			manifest: `title = "Blog"
out = "/var/www/blog"
`,
			check: func(t *testing.T, _ string, m *Manifest) {
				assert.Equal(t, "/var/www/blog", m.Out)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeManifest(t, root, tt.manifest)

			m, err := Load(root, nil)
			require.NoError(t, err)
			assert.Equal(t, root, m.Root)
			tt.check(t, root, m)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		code     string
	}{
		{name: "missing manifest", manifest: "", code: errors.ErrCodeConfigNotFound},
		{name: "malformed toml", manifest: "title = \n", code: errors.ErrCodeConfigInvalid},
		{name: "missing title", manifest: "out = \"out\"\n", code: errors.ErrCodeConfigInvalid},
		{name: "empty path", manifest: "title = \"x\"\nposts = \"\"\n", code: errors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.manifest != "" {
				writeManifest(t, root, tt.manifest)
			}

			m, err := Load(root, nil)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, errors.IsConfigError(err))
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)

			var cfgErr *errors.Error
			require.True(t, stderrors.As(err, &cfgErr))
			assert.Equal(t, filepath.Join(root, FileName), cfgErr.Path)
		})
	}
}

func TestLoadFlagOverride(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, MinimalManifest)

	flags := pflag.NewFlagSet("build", pflag.ContinueOnError)
	flags.String("out", "", "output directory")

	m, err := Load(root, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "out"), m.Out, "unset flag must not override the manifest")

	require.NoError(t, flags.Parse([]string{"--out", "public_html"}))
	m, err = Load(root, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "public_html"), m.Out)
}

func TestLoadEnvOverride(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, MinimalManifest)
	t.Setenv("CYDONIA_TITLE", "From Env")

	m, err := Load(root, nil)
	require.NoError(t, err)
	assert.Equal(t, "From Env", m.Title)
}

func TestTrackedRoots(t *testing.T) {
	m := Default().abs("/site")

	assert.Equal(t, []string{
		"/site/posts",
		"/site/theme",
		"/site/public",
		"/site/favicon.svg",
		"/site/templates",
	}, m.TrackedRoots())
	assert.Equal(t, "/site/out/posts/2024-01-01-hello.html", m.PostOutput("2024-01-01-hello"))
}
