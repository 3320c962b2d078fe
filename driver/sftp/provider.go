// Package sftp implements unifs handles for sftp:// paths on top of
// github.com/pkg/sftp and golang.org/x/crypto/ssh.
//
// Every contract call opens an SSH connection, starts the sftp subsystem,
// runs its requests and closes the connection again.
package sftp

import (
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// ProviderOption configures the provider.
type ProviderOption func(*provider)

// WithDefaultCredentials sets the credentials used by handles opened without
// any.
func WithDefaultCredentials(creds *unifs.Credentials) ProviderOption {
	return func(p *provider) {
		p.defaults = creds
	}
}

type provider struct {
	dial     Dialer
	logger   zerolog.Logger
	defaults *unifs.Credentials
}

// NewProvider returns the provider for sftp:// paths.
func NewProvider(dial Dialer, logger zerolog.Logger, options ...ProviderOption) *unifs.Provider {
	p := &provider{dial: dial, logger: logger}
	for _, option := range options {
		option(p)
	}

	return &unifs.Provider{
		Name:         "sftp",
		Match:        unifs.MatchScheme("sftp"),
		AbsolutePath: Normalize,
		NewDirectory: func(raw string, opts *unifs.HandleOptions) (unifs.Directory, error) {
			r, err := p.remote(raw, opts)
			if err != nil {
				return nil, err
			}
			return &Directory{r}, nil
		},
		NewFile: func(raw string, opts *unifs.HandleOptions) (unifs.File, error) {
			r, err := p.remote(raw, opts)
			if err != nil {
				return nil, err
			}
			return &File{r}, nil
		},
	}
}

// NewProviderFromConfig builds the default dialer from cfg.
func NewProviderFromConfig(cfg *unifs.Config, logger zerolog.Logger) (*unifs.Provider, error) {
	dc, err := LoadDialConfig(cfg)
	if err != nil {
		return nil, err
	}
	dial, err := NewDialer(dc, logger)
	if err != nil {
		return nil, err
	}
	return NewProvider(dial, logger, WithDefaultCredentials(cfg.DefaultCredentials())), nil
}

func (p *provider) remote(raw string, opts *unifs.HandleOptions) (remote, error) {
	u, err := parse(raw)
	if err != nil {
		return remote{}, err
	}
	creds := p.defaults
	if opts != nil && opts.Credentials != nil {
		creds = opts.Credentials
	}
	return remote{url: u, dial: p.dial, creds: creds, logger: p.logger}, nil
}

// Normalize lowercases scheme and host, drops user info, query and fragment,
// and cleans the path.
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
	if u.Scheme != "sftp" || u.Host == "" {
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
