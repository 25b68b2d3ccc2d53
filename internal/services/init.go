package services

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/errors"
	"github.com/conneroisu/cydonia/internal/post"
)

// InitService creates new projects.
type InitService struct {
	now func() time.Time
}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{now: time.Now}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string
	Title      string
}

// InitResult lists the files InitProject wrote.
type InitResult struct {
	Manifest string
	Post     string
}

// InitProject writes a minimal manifest and a starter post dated today into
// opts.ProjectDir, creating it when needed. An existing manifest is never
// overwritten.
func (s *InitService) InitProject(opts InitOptions) (*InitResult, error) {
	dir := opts.ProjectDir
	if dir == "" {
		dir = "."
	}
	title := opts.Title
	if title == "" {
		title = config.DefaultTitle
	}

	manifestPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(manifestPath); err == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigExists,
			"manifest already exists", nil).WithPath(manifestPath)
	}

	postsDir := filepath.Join(dir, config.DefaultPosts)
	if err := os.MkdirAll(postsDir, 0o755); err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeWriteFailed, postsDir, "failed to create posts directory", err)
	}

	data, err := encodeManifest(title)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "failed to encode manifest", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeWriteFailed, manifestPath, "failed to write manifest", err)
	}

	result := &InitResult{Manifest: manifestPath}

	postPath := filepath.Join(postsDir, s.now().Format(post.DateLayout)+"-hello-world.md")
	if _, err := os.Stat(postPath); err == nil {
		return result, nil
	}
	if err := os.WriteFile(postPath, []byte(post.Template), 0o644); err != nil {
		return result, errors.NewRenderError(errors.ErrCodeWriteFailed, postPath, "failed to write starter post", err)
	}
	result.Post = postPath

	return result, nil
}

func encodeManifest(title string) ([]byte, error) {
	m := config.Manifest{
		Title: title,
		Out:   config.DefaultOut,
		Posts: config.DefaultPosts,
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
