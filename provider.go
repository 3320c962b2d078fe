package unifs

import (
	"regexp"
	"strings"
)

// Provider ties a path scheme to a backend.
//
// Match decides whether the provider owns a path. AbsolutePath normalizes a
// path the provider owns (resolving relative prefixes, cleaning separators,
// lowercasing schemes) and runs before every handle construction. The two
// factories build handles from a normalized path.
type Provider struct {
	Name         string
	Match        func(path string) bool
	AbsolutePath func(path string) (string, error)
	NewDirectory func(path string, opts *HandleOptions) (Directory, error)
	NewFile      func(path string, opts *HandleOptions) (File, error)
}

// MatchPattern returns a Match function backed by a regular expression.
func MatchPattern(re *regexp.Regexp) func(string) bool {
	return re.MatchString
}

// MatchScheme returns a Match function accepting paths that start with one of
// the given URL schemes, compared case-insensitively ("ftp" matches "FTP://x").
func MatchScheme(schemes ...string) func(string) bool {
	prefixes := make([]string, len(schemes))
	for i, s := range schemes {
		prefixes[i] = strings.ToLower(s) + "://"
	}
	return func(p string) bool {
		lower := strings.ToLower(p)
		for _, prefix := range prefixes {
			if strings.HasPrefix(lower, prefix) {
				return true
			}
		}
		return false
	}
}

func (p *Provider) validate() error {
	switch {
	case p == nil:
		return ErrNilProvider
	case p.Name == "":
		return NewPathError("register", "", ErrInvalidName)
	case p.Match == nil || p.NewDirectory == nil || p.NewFile == nil:
		return NewPathError("register", p.Name, ErrNotSupported)
	}
	return nil
}

func (p *Provider) absolutePath(path string) (string, error) {
	if p.AbsolutePath == nil {
		return path, nil
	}
	return p.AbsolutePath(path)
}
