// Package renderer turns posts, a theme and a template set into the output
// tree.
//
// Every output file is written as a whole-file replacement and skipped when
// its bytes are unchanged, so rendering the same input twice leaves the tree
// untouched and a concurrent reader never sees a partial page.
package renderer

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/errors"
	"github.com/conneroisu/cydonia/internal/fsutil"
	"github.com/conneroisu/cydonia/internal/post"
	"github.com/conneroisu/cydonia/internal/theme"
)

// Options tweak rendering.
type Options struct {
	// LiveReload is the websocket path pages connect to for reload signals.
	// Empty disables the client script.
	LiveReload string
}

// Site is the data shared by every page.
type Site struct {
	Title      string
	Favicon    string
	LiveReload string
}

// IndexData is passed to the index template.
type IndexData struct {
	Site  Site
	Posts []*post.Post
}

// PostData is passed to the post template.
type PostData struct {
	Site Site
	Post *post.Post
}

// Renderer writes pages for one manifest.
type Renderer struct {
	manifest  *config.Manifest
	opts      Options
	templates *template.Template
}

// New creates a renderer and loads the project's templates.
func New(manifest *config.Manifest, opts Options) (*Renderer, error) {
	r := &Renderer{manifest: manifest, opts: opts}
	if err := r.ReloadTemplates(); err != nil {
		return nil, err
	}
	return r, nil
}

// ReloadTemplates re-reads the template directory.
func (r *Renderer) ReloadTemplates() error {
	set, err := LoadTemplates(r.manifest.Templates)
	if err != nil {
		return err
	}
	r.templates = set
	return nil
}

// RenderFull builds the complete output tree. The first failure aborts the
// build; files already written stay in place.
func (r *Renderer) RenderFull(posts []*post.Post, th *theme.Theme) error {
	if err := os.MkdirAll(filepath.Join(r.manifest.Out, "posts"), 0o755); err != nil {
		return errors.NewRenderError(errors.ErrCodeWriteFailed, r.manifest.Out, "failed to create output directory", err)
	}

	if err := r.CopyPublic(); err != nil {
		return err
	}
	if err := r.WriteTheme(th); err != nil {
		return err
	}
	if err := r.CopyFavicon(); err != nil {
		return err
	}
	if err := r.RenderIndex(posts); err != nil {
		return err
	}
	for _, p := range posts {
		if err := r.RenderOne(p); err != nil {
			return err
		}
	}

	return nil
}

// RenderIndex writes out/index.html.
func (r *Renderer) RenderIndex(posts []*post.Post) error {
	return r.execute("index", filepath.Join(r.manifest.Out, "index.html"), IndexData{
		Site:  r.site(),
		Posts: posts,
	})
}

// RenderOne writes out/posts/<slug>.html.
func (r *Renderer) RenderOne(p *post.Post) error {
	return r.execute("post", r.manifest.PostOutput(p.Slug), PostData{
		Site: r.site(),
		Post: p,
	})
}

// RemovePost deletes the page of a post whose source is gone. A page that
// does not exist is not an error.
func (r *Renderer) RemovePost(slug string) error {
	path := r.manifest.PostOutput(slug)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewRenderError(errors.ErrCodeWriteFailed, path, "failed to remove stale page", err)
	}
	return nil
}

// CopyPublic copies the public directory to out/public when it exists.
func (r *Renderer) CopyPublic() error {
	if !fsutil.IsDir(r.manifest.Public) {
		return nil
	}

	dst := filepath.Join(r.manifest.Out, "public")
	if err := fsutil.CopyDir(r.manifest.Public, dst); err != nil {
		return errors.NewRenderError(errors.ErrCodeWriteFailed, dst, "failed to copy public directory", err)
	}
	return nil
}

// CopyFavicon copies the favicon into the output root when it exists.
func (r *Renderer) CopyFavicon() error {
	if !fsutil.IsFile(r.manifest.Favicon) {
		return nil
	}

	dst := filepath.Join(r.manifest.Out, filepath.Base(r.manifest.Favicon))
	if err := fsutil.CopyFile(r.manifest.Favicon, dst); err != nil {
		return errors.NewRenderError(errors.ErrCodeWriteFailed, dst, "failed to copy favicon", err)
	}
	return nil
}

// WriteTheme writes the composed stylesheets and highlight assets.
func (r *Renderer) WriteTheme(th *theme.Theme) error {
	if err := th.Write(r.manifest.Out); err != nil {
		return errors.NewRenderError(errors.ErrCodeWriteFailed, r.manifest.Out, "failed to write theme", err)
	}
	return nil
}

func (r *Renderer) site() Site {
	s := Site{
		Title:      r.manifest.Title,
		LiveReload: r.opts.LiveReload,
	}
	if fsutil.IsFile(r.manifest.Favicon) {
		s.Favicon = filepath.Base(r.manifest.Favicon)
	}
	return s
}

func (r *Renderer) execute(name, dst string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return errors.NewRenderError(errors.ErrCodeTemplate, dst,
			fmt.Sprintf("failed to execute template %q", name), err)
	}

	if _, err := fsutil.WriteFile(dst, buf.Bytes()); err != nil {
		return errors.NewRenderError(errors.ErrCodeWriteFailed, dst, "failed to write page", err)
	}
	return nil
}
