// Package theme composes the stylesheets for the index and post pages.
package theme

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/cydonia/internal/fsutil"
)

// Recognized members of a theme directory.
const (
	BaseFile         = "theme.css"
	IndexFile        = "index.css"
	PostFile         = "post.css"
	HighlightCSSFile = "highlight.css"
	HighlightJSFile  = "highlight.js"
)

var (
	//go:embed assets/theme.css
	DefaultTheme string
	//go:embed assets/highlight.css
	DefaultHighlightCSS string
	//go:embed assets/highlight.js
	DefaultHighlightJS string
)

// Theme is the composed stylesheet text for both page kinds plus the syntax
// highlighting assets.
type Theme struct {
	Index        string
	Post         string
	HighlightCSS string
	HighlightJS  string
}

// Default returns the built-in theme.
func Default() *Theme {
	return &Theme{
		Index:        DefaultTheme,
		Post:         DefaultTheme,
		HighlightCSS: DefaultHighlightCSS,
		HighlightJS:  DefaultHighlightJS,
	}
}

// Load composes a theme from path, which may be absent, a single stylesheet
// or a directory. Missing optional files fall back to defaults or to nothing.
func Load(path string) *Theme {
	info, err := os.Stat(path)
	if err != nil {
		return Default()
	}

	if !info.IsDir() {
		css := readOr(path, DefaultTheme)
		t := Default()
		t.Index = css
		t.Post = css
		return t
	}

	base := readOr(filepath.Join(path, BaseFile), DefaultTheme)
	return &Theme{
		Index:        base + readOr(filepath.Join(path, IndexFile), ""),
		Post:         base + readOr(filepath.Join(path, PostFile), ""),
		HighlightCSS: readOr(filepath.Join(path, HighlightCSSFile), DefaultHighlightCSS),
		HighlightJS:  readOr(filepath.Join(path, HighlightJSFile), DefaultHighlightJS),
	}
}

func readOr(path, fallback string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	return string(data)
}

// Files maps output file names to their content.
func (t *Theme) Files() map[string]string {
	return map[string]string{
		IndexFile:        t.Index,
		PostFile:         t.Post,
		HighlightCSSFile: t.HighlightCSS,
		HighlightJSFile:  t.HighlightJS,
	}
}

// Write persists the theme into the output directory.
func (t *Theme) Write(out string) error {
	for _, name := range []string{IndexFile, PostFile, HighlightCSSFile, HighlightJSFile} {
		if _, err := fsutil.WriteFile(filepath.Join(out, name), []byte(t.Files()[name])); err != nil {
			return fmt.Errorf("writing theme: %w", err)
		}
	}
	return nil
}
