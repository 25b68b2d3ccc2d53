package testutils

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cydonia/internal/config"
)

// HelloWorldPost is a post without front matter title or date.
const HelloWorldPost = "---\nauthor: tester\n---\n\nHello from **cydonia**.\n"

// CreateTempProject creates a project with a minimal manifest and the
// standard source directories.
func CreateTempProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	for _, dir := range []string{"posts", "public", "templates", "theme"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	WriteFile(t, root, config.FileName, config.MinimalManifest)

	return root
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WritePost writes a post into root/posts.
func WritePost(t *testing.T, root, name, content string) string {
	t.Helper()
	return WriteFile(t, root, filepath.Join("posts", name), content)
}

// LoadManifest loads the project's manifest.
func LoadManifest(t *testing.T, root string) *config.Manifest {
	t.Helper()
	m, err := config.Load(root, nil)
	require.NoError(t, err)
	return m
}

// Snapshot returns every regular file under dir keyed by its slash-separated
// relative path.
func Snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)

	return files
}

// ReadFile returns the content of root/rel.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	return string(data)
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v", timeout)
}
