package build

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/post"
	"github.com/conneroisu/cydonia/internal/renderer"
	"github.com/conneroisu/cydonia/internal/theme"
)

// Result describes what one Apply did.
type Result struct {
	Plan     Plan
	Pages    int
	Removed  int
	Duration time.Duration
}

// Executor runs plans against one renderer. It is not safe for concurrent
// use; the watch loop is its only caller.
type Executor struct {
	manifest *config.Manifest
	renderer *renderer.Renderer
}

// NewExecutor creates an executor.
func NewExecutor(manifest *config.Manifest, r *renderer.Renderer) *Executor {
	return &Executor{manifest: manifest, renderer: r}
}

// Apply executes plan. An empty plan does nothing. The post collection is
// reloaded from disk on every call, so a post that fails to load aborts the
// whole batch before anything is written.
func (e *Executor) Apply(plan Plan) (*Result, error) {
	start := time.Now()
	res := &Result{Plan: plan}
	if plan.Empty() {
		return res, nil
	}

	if plan.Templates {
		if err := e.renderer.ReloadTemplates(); err != nil {
			return res, err
		}
	}

	posts, err := post.LoadAll(e.manifest.Posts)
	if err != nil {
		return res, err
	}

	byPath := make(map[string]*post.Post, len(posts))
	for _, p := range posts {
		byPath[filepath.Clean(p.Path)] = p
	}

	if plan.Templates {
		for _, p := range posts {
			if err := e.renderer.RenderOne(p); err != nil {
				return res, err
			}
			res.Pages++
		}
	}

	for _, path := range plan.Posts {
		p, ok := byPath[path]
		if !ok {
			if err := e.renderer.RemovePost(slugOf(path)); err != nil {
				return res, err
			}
			res.Removed++
			continue
		}
		if plan.Templates {
			continue
		}
		if err := e.renderer.RenderOne(p); err != nil {
			return res, err
		}
		res.Pages++
	}

	if plan.Theme {
		if err := e.renderer.WriteTheme(theme.Load(e.manifest.Theme)); err != nil {
			return res, err
		}
	}
	if plan.Public {
		if err := e.renderer.CopyPublic(); err != nil {
			return res, err
		}
	}
	if plan.Favicon {
		if err := e.renderer.CopyFavicon(); err != nil {
			return res, err
		}
	}

	if err := e.renderer.RenderIndex(posts); err != nil {
		return res, err
	}
	res.Pages++
	res.Duration = time.Since(start)

	return res, nil
}

func slugOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
