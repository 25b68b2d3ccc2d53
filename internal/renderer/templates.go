package renderer

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/cydonia/internal/errors"
	"github.com/conneroisu/cydonia/internal/post"
)

//go:embed defaults/*.html
var defaults embed.FS

// Required template names.
const (
	IndexTemplate = "index"
	PostTemplate  = "post"
)

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format(post.DateLayout) },
	"join": strings.Join,
}

// LoadTemplates builds the template set. The embedded defaults come first;
// a file in dir replaces the default with the same stem and any other file
// becomes a partial named by its stem. A missing dir leaves the defaults.
func LoadTemplates(dir string) (*template.Template, error) {
	sources, err := defaultSources()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.NewRenderError(errors.ErrCodeTemplate, dir, "failed to list templates", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		text, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.NewRenderError(errors.ErrCodeTemplate, p, "failed to read template", err)
		}
		sources[stem(entry.Name())] = source{path: p, text: string(text)}
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	set := template.New("").Funcs(funcs)
	for _, name := range names {
		src := sources[name]
		if _, err := set.New(name).Parse(src.text); err != nil {
			return nil, errors.NewRenderError(errors.ErrCodeTemplate, src.path,
				fmt.Sprintf("failed to parse template %q", name), err)
		}
	}

	for _, required := range []string{IndexTemplate, PostTemplate} {
		if set.Lookup(required) == nil {
			return nil, errors.NewRenderError(errors.ErrCodeTemplate, dir,
				fmt.Sprintf("template %q is missing", required), nil)
		}
	}

	return set, nil
}

type source struct {
	path string
	text string
}

func defaultSources() (map[string]source, error) {
	entries, err := defaults.ReadDir("defaults")
	if err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeTemplate, "defaults", "failed to list default templates", err)
	}

	sources := make(map[string]source, len(entries))
	for _, entry := range entries {
		p := path.Join("defaults", entry.Name())
		text, err := defaults.ReadFile(p)
		if err != nil {
			return nil, errors.NewRenderError(errors.ErrCodeTemplate, p, "failed to read default template", err)
		}
		sources[stem(entry.Name())] = source{path: p, text: string(text)}
	}
	return sources, nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
