// Package build decides and executes the incremental work a batch of
// filesystem changes requires.
package build

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/post"
)

// Category is the tracked root a path belongs to.
type Category int

const (
	CategoryNone Category = iota
	CategoryPosts
	CategoryTheme
	CategoryPublic
	CategoryFavicon
	CategoryTemplates
)

// String returns the string representation of the Category
func (c Category) String() string {
	switch c {
	case CategoryPosts:
		return "posts"
	case CategoryTheme:
		return "theme"
	case CategoryPublic:
		return "public"
	case CategoryFavicon:
		return "favicon"
	case CategoryTemplates:
		return "templates"
	default:
		return "none"
	}
}

// Plan is the deduplicated set of actions for one batch.
type Plan struct {
	// Posts are changed post files, sorted and unique.
	Posts     []string
	Theme     bool
	Public    bool
	Favicon   bool
	Templates bool
	// Index is set when any tracked path changed; the index page is then
	// always re-rendered.
	Index bool
}

// Empty reports whether the batch touched nothing tracked.
func (p Plan) Empty() bool {
	return !p.Index
}

// String summarizes the plan, e.g. "posts(2),theme,index".
func (p Plan) String() string {
	if p.Empty() {
		return "none"
	}

	var parts []string
	if p.Templates {
		parts = append(parts, "templates")
	}
	if len(p.Posts) > 0 {
		parts = append(parts, "posts("+strconv.Itoa(len(p.Posts))+")")
	}
	if p.Theme {
		parts = append(parts, "theme")
	}
	if p.Public {
		parts = append(parts, "public")
	}
	if p.Favicon {
		parts = append(parts, "favicon")
	}
	parts = append(parts, "index")

	return strings.Join(parts, ",")
}

// CategoryOf returns the first tracked root containing path, checked in the
// order posts, theme, public, favicon, templates.
func CategoryOf(m *config.Manifest, path string) Category {
	path = filepath.Clean(path)

	switch {
	case within(m.Posts, path):
		return CategoryPosts
	case within(m.Theme, path):
		return CategoryTheme
	case within(m.Public, path):
		return CategoryPublic
	case within(m.Favicon, path):
		return CategoryFavicon
	case within(m.Templates, path):
		return CategoryTemplates
	default:
		return CategoryNone
	}
}

// Classify maps a batch of absolute paths to a Plan. Each category is
// recorded at most once; paths outside every tracked root are ignored.
func Classify(m *config.Manifest, paths []string) Plan {
	var plan Plan
	posts := map[string]struct{}{}

	for _, path := range paths {
		path = filepath.Clean(path)

		switch CategoryOf(m, path) {
		case CategoryPosts:
			if filepath.Dir(path) == filepath.Clean(m.Posts) {
				if !post.IsPostFile(filepath.Base(path)) {
					continue
				}
				posts[path] = struct{}{}
			}
		case CategoryTheme:
			plan.Theme = true
		case CategoryPublic:
			plan.Public = true
		case CategoryFavicon:
			plan.Favicon = true
		case CategoryTemplates:
			plan.Templates = true
		default:
			continue
		}

		plan.Index = true
	}

	for path := range posts {
		plan.Posts = append(plan.Posts, path)
	}
	sort.Strings(plan.Posts)

	return plan
}

func within(root, path string) bool {
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
