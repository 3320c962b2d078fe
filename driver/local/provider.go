package local

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"emperror.dev/errors"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// relativePattern claims "~", ".", ".." and anything below them, with either
// separator.
var relativePattern = regexp.MustCompile(`^(~|\.\.?)([\\/]|$)`)

// NewProvider returns the provider for platform absolute paths.
func NewProvider(logger zerolog.Logger) *unifs.Provider {
	return &unifs.Provider{
		Name:  "local",
		Match: filepath.IsAbs,
		AbsolutePath: func(path string) (string, error) {
			return filepath.Clean(filepath.FromSlash(path)), nil
		},
		NewDirectory: func(path string, _ *unifs.HandleOptions) (unifs.Directory, error) {
			return NewDirectory(path, logger), nil
		},
		NewFile: func(path string, _ *unifs.HandleOptions) (unifs.File, error) {
			return NewFile(path, logger), nil
		},
	}
}

// NewRelativeProvider returns the provider for "~/", "./" and "../" paths.
// "~" resolves against baseDir, or the directory of the running executable
// when baseDir is empty. "." and ".." resolve against the working directory.
// Handles it creates are ordinary absolute local handles.
func NewRelativeProvider(baseDir string, logger zerolog.Logger) *unifs.Provider {
	return &unifs.Provider{
		Name:  "local-relative",
		Match: unifs.MatchPattern(relativePattern),
		AbsolutePath: func(path string) (string, error) {
			return ResolveRelative(path, baseDir)
		},
		NewDirectory: func(path string, _ *unifs.HandleOptions) (unifs.Directory, error) {
			return NewDirectory(path, logger), nil
		},
		NewFile: func(path string, _ *unifs.HandleOptions) (unifs.File, error) {
			return NewFile(path, logger), nil
		},
	}
}

// ResolveRelative turns a relative path into an absolute one.
func ResolveRelative(path, baseDir string) (string, error) {
	p := strings.ReplaceAll(strings.TrimSpace(path), `\`, "/")
	if !relativePattern.MatchString(p) {
		return "", unifs.NewPathError("abs", path, unifs.ErrInvalidPath)
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		base, err := homeBase(baseDir)
		if err != nil {
			return "", unifs.NewPathError("abs", path, err)
		}
		return filepath.Join(base, filepath.FromSlash(strings.TrimPrefix(p[1:], "/"))), nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", unifs.NewPathError("abs", path, err)
	}
	return filepath.Join(wd, filepath.FromSlash(p)), nil
}

func homeBase(baseDir string) (string, error) {
	if baseDir != "" {
		return filepath.Abs(baseDir)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "locate executable")
	}
	return filepath.Dir(exe), nil
}
