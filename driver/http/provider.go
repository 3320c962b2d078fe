// Package http maps the unifs contract onto plain HTTP verbs: GET reads,
// PUT and POST write, DELETE deletes and HEAD answers Exists, Length and
// Stat. HTTP has no listing protocol, so directories always exist and
// enumerate nothing.
package http

import (
	"net/url"
	"path"
	"strings"

	"github.com/go-resty/resty/v2"
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
	client   *resty.Client
	logger   zerolog.Logger
	defaults *unifs.Credentials
}

// NewProvider returns the provider for http:// and https:// paths.
func NewProvider(client *resty.Client, logger zerolog.Logger, options ...ProviderOption) *unifs.Provider {
	p := &provider{client: client, logger: logger}
	for _, option := range options {
		option(p)
	}

	return &unifs.Provider{
		Name:         "http",
		Match:        unifs.MatchScheme("http", "https"),
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

// NewProviderFromConfig builds the client from cfg.
func NewProviderFromConfig(cfg *unifs.Config, logger zerolog.Logger) (*unifs.Provider, error) {
	timeout, err := cfg.Duration("http")
	if err != nil {
		return nil, err
	}
	client := NewClient(ClientConfig{
		Timeout:   timeout,
		RetryMax:  cfg.HTTPRetryMax,
		UserAgent: cfg.HTTPUserAgent,
	}, logger)
	return NewProvider(client, logger, WithDefaultCredentials(cfg.DefaultCredentials())), nil
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
	return remote{url: u, client: p.client, creds: creds, logger: p.logger}, nil
}

// Normalize lowercases scheme and host, turns backslashes into slashes and
// cleans the path.
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
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, unifs.NewPathError("parse", raw, unifs.ErrInvalidPath)
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = cleanPath(u.Path)
	u.RawPath = ""
	u.Fragment = ""
	return u, nil
}

func cleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return path.Clean("/" + p)
}
