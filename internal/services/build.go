// Package services holds the command-level workflows of cydonia: one-shot
// builds, project initialization, watch sessions and the preview server.
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/cydonia/internal/build"
	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/errors"
	"github.com/conneroisu/cydonia/internal/logging"
	"github.com/conneroisu/cydonia/internal/post"
	"github.com/conneroisu/cydonia/internal/renderer"
	"github.com/conneroisu/cydonia/internal/theme"
)

// BuildService renders a complete site once.
type BuildService struct {
	manifest *config.Manifest
	logger   logging.Logger
	metrics  *build.BuildMetrics
}

// NewBuildService creates a new build service. metrics may be nil.
func NewBuildService(manifest *config.Manifest, logger logging.Logger, metrics *build.BuildMetrics) *BuildService {
	if metrics == nil {
		metrics = build.NewBuildMetrics()
	}
	return &BuildService{
		manifest: manifest,
		logger:   logger.WithComponent("build"),
		metrics:  metrics,
	}
}

// BuildOptions contains options for the build process
type BuildOptions struct {
	// Clean removes the output directory before rendering.
	Clean bool
	// LiveReload injects the reload client pointing at this path.
	LiveReload string
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Duration  time.Duration
	PostCount int
	Pages     int
	Success   bool
	Errors    []error
}

// Build performs the complete build process. The first error aborts it.
func (s *BuildService) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	op := logging.StartOperation(s.logger, "build")
	result := &BuildResult{}

	err := s.build(ctx, opts, result)
	result.Duration = op.Elapsed()
	result.Success = err == nil
	if err != nil {
		result.Errors = []error{err}
		op.EndWithError(ctx, err)
	} else {
		op.End(ctx)
	}

	s.metrics.RecordBuild(&build.Result{Pages: result.Pages, Duration: result.Duration}, err)

	return result, err
}

func (s *BuildService) build(ctx context.Context, opts BuildOptions, result *BuildResult) error {
	if opts.Clean {
		if err := s.clean(); err != nil {
			return err
		}
	}

	r, err := renderer.New(s.manifest, renderer.Options{LiveReload: opts.LiveReload})
	if err != nil {
		return err
	}

	posts, err := renderAll(s.manifest, r)
	if err != nil {
		return err
	}

	result.PostCount = len(posts)
	result.Pages = len(posts) + 1
	s.logger.Info(ctx, "Site rendered",
		"posts", len(posts),
		"out", s.manifest.Out)

	return nil
}

// clean removes the output directory. It refuses to remove the project root
// or any directory containing it.
func (s *BuildService) clean() error {
	out := filepath.Clean(s.manifest.Out)
	root := filepath.Clean(s.manifest.Root)
	if root != "" && (out == root || strings.HasPrefix(root, out+string(filepath.Separator))) {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("refusing to clean %s: it contains the project", out), nil)
	}

	if err := os.RemoveAll(out); err != nil {
		return errors.NewRenderError(errors.ErrCodeWriteFailed, out, "failed to clean output directory", err)
	}
	return nil
}

// renderAll loads every post and writes the whole output tree with r.
func renderAll(manifest *config.Manifest, r *renderer.Renderer) ([]*post.Post, error) {
	posts, err := post.LoadAll(manifest.Posts)
	if err != nil {
		return nil, err
	}

	if err := r.RenderFull(posts, theme.Load(manifest.Theme)); err != nil {
		return nil, err
	}

	return posts, nil
}
