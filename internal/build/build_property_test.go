//go:build property

package build

import (
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestClassifyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	m := testManifest()

	segment := gen.RegexMatch(`^[a-z0-9_.-]{1,12}$`)

	properties.Property("paths outside every tracked root yield an empty plan", prop.ForAll(
		func(segments []string) bool {
			paths := make([]string, len(segments))
			for i, s := range segments {
				paths[i] = filepath.Join("/site/out", s)
			}
			paths = append(paths, filepath.Join("/other", "x"))
			return Classify(m, paths).Empty()
		},
		gen.SliceOf(segment),
	))

	properties.Property("posts are unique and each category set once", prop.ForAll(
		func(names []string, repeat int) bool {
			var paths []string
			for r := 0; r < repeat; r++ {
				for _, n := range names {
					paths = append(paths, filepath.Join(m.Posts, "2024-01-01-"+n+".md"))
				}
				paths = append(paths, filepath.Join(m.Templates, "post.html"))
			}

			plan := Classify(m, paths)
			seen := map[string]bool{}
			for _, p := range plan.Posts {
				if seen[p] {
					return false
				}
				seen[p] = true
			}
			return plan.Templates && plan.Index && len(seen) <= len(names)
		},
		gen.SliceOf(gen.RegexMatch(`^[a-z]{1,6}$`)),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
