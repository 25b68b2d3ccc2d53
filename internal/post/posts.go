package post

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/conneroisu/cydonia/internal/errors"
)

// LoadAll loads every regular, non-hidden file directly inside dir, sorts the
// posts newest first and assigns year markers. The first failing post aborts
// the load. A missing directory yields no posts.
func LoadAll(dir string) ([]*Post, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewLoadError(errors.ErrCodeReadFailed, dir, "failed to list posts", err)
	}

	posts := make([]*Post, 0, len(entries))
	for _, entry := range entries {
		if !IsPostFile(entry.Name()) || !entry.Type().IsRegular() {
			continue
		}

		p, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	Sort(posts)
	AssignYears(posts)

	return posts, nil
}

// editorArtifacts are extensions editors leave next to the file being saved.
var editorArtifacts = map[string]bool{
	".swp": true,
	".swo": true,
	".swx": true,
	".tmp": true,
	".bak": true,
	".orig": true,
}

// IsPostFile reports whether a directory entry name is considered a post.
// Hidden files, backups ending in "~", emacs "#autosave#" files, swap and
// backup extensions and all-digit names (vim's write test file) are ignored.
func IsPostFile(name string) bool {
	switch {
	case name == "",
		strings.HasPrefix(name, "."),
		strings.HasSuffix(name, "~"),
		strings.HasPrefix(name, "#"),
		editorArtifacts[strings.ToLower(filepath.Ext(name))],
		allDigits(name):
		return false
	}
	return true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Sort orders posts by date, newest first. Posts with the same date are
// ordered by path.
func Sort(posts []*Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Date.After(posts[j].Date)
		}
		return posts[i].Path < posts[j].Path
	})
}

// AssignYears sets Index.Year on the first post of each calendar year and
// clears it everywhere else. posts must already be sorted newest first.
func AssignYears(posts []*Post) {
	if len(posts) == 0 {
		return
	}

	current := posts[0].Date.Year() + 1
	for _, p := range posts {
		p.Index.Year = ""
		if year := p.Date.Year(); year < current {
			p.Index.Year = strconv.Itoa(year)
			current = year
		}
	}
}
