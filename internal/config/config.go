// Package config resolves a cydonia project into a Manifest using Viper.
//
// Settings come from <root>/cydonia.toml, overridden by CYDONIA_ environment
// variables and by command-line flags bound through pflag. Every relative path
// is resolved against the project root once, in Load; nothing downstream
// re-resolves a path.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/cydonia/internal/errors"
)

// FileName is the manifest file expected at the project root.
const FileName = "cydonia.toml"

// MinimalManifest is the smallest valid manifest. `cydonia init` encodes its
// own from a Manifest value.
const MinimalManifest = `out = "out"
posts = "posts"
title = "Cydonia"
`

// Default relative locations.
const (
	DefaultTitle     = "Cydonia"
	DefaultFavicon   = "favicon.svg"
	DefaultOut       = "out"
	DefaultPosts     = "posts"
	DefaultPublic    = "public"
	DefaultTemplates = "templates"
	DefaultTheme     = "theme"
)

// Manifest is the resolved site configuration.
type Manifest struct {
	Root      string `mapstructure:"-" toml:"-"`
	Title     string `mapstructure:"title" toml:"title"`
	Favicon   string `mapstructure:"favicon" toml:"favicon,omitempty"`
	Out       string `mapstructure:"out" toml:"out,omitempty"`
	Posts     string `mapstructure:"posts" toml:"posts,omitempty"`
	Public    string `mapstructure:"public" toml:"public,omitempty"`
	Templates string `mapstructure:"templates" toml:"templates,omitempty"`
	Theme     string `mapstructure:"theme" toml:"theme,omitempty"`
}

// Load reads <root>/cydonia.toml and returns a Manifest with absolute paths.
// flags may be nil; when it defines "out" (or any other manifest key) the
// flag value wins over the file once it has been set on the command line.
func Load(root string, flags *pflag.FlagSet) (*Manifest, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot resolve project root %q", root), err)
	}

	path := filepath.Join(absRoot, FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("no %s in %s", FileName, absRoot), err).WithPath(path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix("CYDONIA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if flags != nil {
		for _, key := range []string{"title", "favicon", "out", "posts", "public", "templates", "theme"} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
						fmt.Sprintf("cannot bind flag --%s", key), err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "failed to parse manifest", err).WithPath(path)
	}

	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "failed to decode manifest", err).WithPath(path)
	}

	if err := validateManifest(&m); err != nil {
		return nil, err.WithPath(path)
	}

	return m.abs(absRoot), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("favicon", DefaultFavicon)
	v.SetDefault("out", DefaultOut)
	v.SetDefault("posts", DefaultPosts)
	v.SetDefault("public", DefaultPublic)
	v.SetDefault("templates", DefaultTemplates)
	v.SetDefault("theme", DefaultTheme)
}

// Default returns the manifest used when a project is initialized, with
// paths still relative.
func Default() *Manifest {
	return &Manifest{
		Title:     DefaultTitle,
		Favicon:   DefaultFavicon,
		Out:       DefaultOut,
		Posts:     DefaultPosts,
		Public:    DefaultPublic,
		Templates: DefaultTemplates,
		Theme:     DefaultTheme,
	}
}

func validateManifest(m *Manifest) *errors.Error {
	if strings.TrimSpace(m.Title) == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "title must not be empty", nil)
	}

	fields := map[string]string{
		"favicon":   m.Favicon,
		"out":       m.Out,
		"posts":     m.Posts,
		"public":    m.Public,
		"templates": m.Templates,
		"theme":     m.Theme,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("%s must not be empty", name), nil)
		}
		if strings.ContainsRune(value, 0) {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("%s contains a NUL byte", name), nil)
		}
	}

	return nil
}

func (m Manifest) abs(root string) *Manifest {
	prefix := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(root, p)
	}

	m.Root = root
	m.Favicon = prefix(m.Favicon)
	m.Out = prefix(m.Out)
	m.Posts = prefix(m.Posts)
	m.Public = prefix(m.Public)
	m.Templates = prefix(m.Templates)
	m.Theme = prefix(m.Theme)

	return &m
}

// TrackedRoots returns the source paths a watch session observes, in
// classification order.
func (m *Manifest) TrackedRoots() []string {
	return []string{m.Posts, m.Theme, m.Public, m.Favicon, m.Templates}
}

// PostOutput returns the output page path for a post slug.
func (m *Manifest) PostOutput(slug string) string {
	return filepath.Join(m.Out, "posts", slug+".html")
}
