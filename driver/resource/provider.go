// Package resource exposes read-only file trees compiled into the program,
// typically an embed.FS, under "resource://<assembly>/<folder>/<name>" paths.
//
// An assembly is any fs.FS registered under a name:
//
//	//go:embed templates
//	var templates embed.FS
//
//	func init() {
//	    resource.Register("app", templates)
//	}
//
//	f, _ := unifs.Open("resource://app/templates/mail.html")
//
// Write, Delete, Rename, MoveTo and Create succeed without doing anything.
package resource

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// Scheme is the path prefix owned by this provider.
const Scheme = "resource"

var (
	assemblies   = make(map[string]fs.FS)
	assembliesMu sync.RWMutex
)

// Register makes fsys available as an assembly. Registering a name twice
// replaces the earlier tree.
func Register(name string, fsys fs.FS) {
	assembliesMu.Lock()
	defer assembliesMu.Unlock()
	assemblies[name] = fsys
}

// Assemblies returns the registered assembly names, sorted.
func Assemblies() []string {
	assembliesMu.RLock()
	defer assembliesMu.RUnlock()

	names := make([]string, 0, len(assemblies))
	for name := range assemblies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupRegistered(name string) (fs.FS, bool) {
	assembliesMu.RLock()
	defer assembliesMu.RUnlock()
	fsys, ok := assemblies[name]
	return fsys, ok
}

// NewProvider returns a provider for resource paths. When set is nil the
// assemblies added with Register are used.
func NewProvider(set map[string]fs.FS, logger zerolog.Logger) *unifs.Provider {
	lookup := lookupRegistered
	if set != nil {
		lookup = func(name string) (fs.FS, bool) {
			fsys, ok := set[name]
			return fsys, ok
		}
	}

	return &unifs.Provider{
		Name:         "resource",
		Match:        unifs.MatchScheme(Scheme),
		AbsolutePath: Normalize,
		NewDirectory: func(p string, _ *unifs.HandleOptions) (unifs.Directory, error) {
			assembly, name, err := split(p)
			if err != nil {
				return nil, err
			}
			fsys, _ := lookup(assembly)
			return &Directory{node{assembly: assembly, fsys: fsys, name: name, logger: logger}}, nil
		},
		NewFile: func(p string, _ *unifs.HandleOptions) (unifs.File, error) {
			assembly, name, err := split(p)
			if err != nil {
				return nil, err
			}
			if name == "." {
				return nil, unifs.NewPathError("open", p, unifs.ErrIsDir)
			}
			fsys, _ := lookup(assembly)
			return &File{node{assembly: assembly, fsys: fsys, name: name, logger: logger}}, nil
		},
	}
}

// Normalize lowercases the scheme, turns backslashes into slashes and cleans
// the path below the assembly.
func Normalize(p string) (string, error) {
	assembly, name, err := split(p)
	if err != nil {
		return "", err
	}
	return fullName(assembly, name), nil
}

// split returns the assembly and the fs.FS path ("." for the assembly root).
func split(p string) (assembly, name string, err error) {
	prefix := Scheme + "://"
	if len(p) < len(prefix) || !strings.EqualFold(p[:len(prefix)], prefix) {
		return "", "", unifs.NewPathError("parse", p, unifs.ErrInvalidPath)
	}
	rest := strings.Trim(strings.ReplaceAll(p[len(prefix):], `\`, "/"), "/")
	assembly, name, _ = strings.Cut(rest, "/")
	if assembly == "" {
		return "", "", unifs.NewPathError("parse", p, unifs.ErrInvalidPath)
	}
	name = path.Clean("/" + name)[1:]
	if name == "" {
		name = "."
	}
	return assembly, name, nil
}

func fullName(assembly, name string) string {
	if name == "." {
		return Scheme + "://" + assembly
	}
	return Scheme + "://" + assembly + "/" + name
}
