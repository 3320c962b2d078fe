// Package memory implements unifs handles for memory:// paths backed by an
// in-process Store. The host part of a path names a volume; every volume
// root exists from the start.
//
// Directories support native change notifications through Watch.
package memory

import (
	"net/url"
	"path"
	"strings"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// NewProvider returns the provider for memory:// paths served from store.
func NewProvider(store *Store, logger zerolog.Logger) *unifs.Provider {
	newEntry := func(raw string) (entry, error) {
		u, err := parse(raw)
		if err != nil {
			return entry{}, err
		}
		return entry{url: u, store: store, logger: logger}, nil
	}

	return &unifs.Provider{
		Name:         "memory",
		Match:        unifs.MatchScheme("memory"),
		AbsolutePath: Normalize,
		NewDirectory: func(raw string, _ *unifs.HandleOptions) (unifs.Directory, error) {
			e, err := newEntry(raw)
			if err != nil {
				return nil, err
			}
			return &Directory{e}, nil
		},
		NewFile: func(raw string, _ *unifs.HandleOptions) (unifs.File, error) {
			e, err := newEntry(raw)
			if err != nil {
				return nil, err
			}
			return &File{e}, nil
		},
	}
}

// NewProviderFromConfig creates an empty store limited to cfg.MemoryMaxSize.
func NewProviderFromConfig(cfg *unifs.Config, logger zerolog.Logger) (*unifs.Provider, error) {
	var maxSize int64
	if cfg.MemoryMaxSize != "" {
		n, err := humanize.ParseBytes(cfg.MemoryMaxSize)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid memory max size %q", cfg.MemoryMaxSize)
		}
		maxSize = int64(n)
	}
	return NewProvider(New(Config{MaxSize: maxSize}), logger), nil
}

// Normalize lowercases scheme and volume, drops user info, query and
// fragment, and cleans the path.
func Normalize(raw string) (string, error) {
	u, err := parse(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func parse(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"))
	if err != nil {
		return nil, unifs.NewPathError("parse", raw, unifs.ErrInvalidPath)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "memory" || u.Host == "" {
		return nil, unifs.NewPathError("parse", raw, unifs.ErrInvalidPath)
	}
	u.Host = strings.ToLower(u.Host)
	u.User = nil
	u.Path = cleanPath(u.Path)
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func cleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return path.Clean("/" + p)
}
