package unifs

import (
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/rs/zerolog"
)

// Registry dispatches path strings to providers.
//
// Providers are consulted in registration order and the first one whose Match
// accepts the path wins, so a more specific provider must be registered before
// a broader one when their patterns overlap.
//
//	reg := unifs.NewRegistry()
//	reg.Register(local.NewRelativeProvider(baseDir, logger))
//	reg.Register(local.NewProvider(logger))
//	reg.Register(http.NewProvider(client, logger))
//
//	f, err := reg.OpenFile("https://example.com/data.json")
type Registry struct {
	mu        sync.RWMutex
	providers []*Provider
	names     map[string]struct{}
	logger    zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	logger    *zerolog.Logger
	order     []string
	providers []*Provider
}

// WithLogger sets the logger used by the registry and by drivers built by New.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = &logger
	}
}

// WithProviderOrder overrides DefaultProviderOrder when New builds providers
// from registered drivers.
func WithProviderOrder(names ...string) RegistryOption {
	return func(o *registryOptions) {
		o.order = names
	}
}

// WithProviders registers extra providers ahead of the drivers built by New.
func WithProviders(providers ...*Provider) RegistryOption {
	return func(o *registryOptions) {
		o.providers = append(o.providers, providers...)
	}
}

func processRegistryOptions(options ...RegistryOption) *registryOptions {
	opts := &registryOptions{}
	for _, option := range options {
		option(opts)
	}
	return opts
}

// NewRegistry creates an empty registry. Providers passed with WithProviders
// are registered immediately; WithProviderOrder is ignored.
func NewRegistry(options ...RegistryOption) *Registry {
	opts := processRegistryOptions(options...)
	r := &Registry{
		names:  make(map[string]struct{}),
		logger: zerolog.Nop(),
	}
	if opts.logger != nil {
		r.logger = *opts.logger
	}
	for _, p := range opts.providers {
		if err := r.Register(p); err != nil {
			r.logger.Warn().Err(err).Msg("skipping provider")
		}
	}
	return r
}

// Register appends a provider. Its priority is its registration position.
func (r *Registry) Register(p *Provider) error {
	if err := p.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[p.Name]; exists {
		return errors.Wrapf(ErrProviderExists, "provider %s", p.Name)
	}
	r.names[p.Name] = struct{}{}
	r.providers = append(r.providers, p)

	r.logger.Debug().Str("provider", p.Name).Int("priority", len(r.providers)-1).Msg("provider registered")
	return nil
}

// Logger returns the logger the registry was built with.
func (r *Registry) Logger() zerolog.Logger {
	return r.logger
}

// Providers returns the registered providers in priority order.
func (r *Registry) Providers() []*Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Provider, len(r.providers))
	copy(result, r.providers)
	return result
}

// Resolve returns the first provider that claims path.
func (r *Registry) Resolve(path string) (*Provider, error) {
	path = strings.TrimSpace(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if path != "" {
		for _, p := range r.providers {
			if p.Match(path) {
				return p, nil
			}
		}
	}
	return nil, errors.WithStack(&ProviderNotFoundError{Path: path})
}

// AbsolutePath resolves path and returns its normalized form along with the
// owning provider.
func (r *Registry) AbsolutePath(path string) (string, *Provider, error) {
	p, err := r.Resolve(path)
	if err != nil {
		return "", nil, err
	}
	abs, err := p.absolutePath(strings.TrimSpace(path))
	if err != nil {
		return "", nil, NewPathError("abs", path, err)
	}
	return abs, p, nil
}

// OpenDirectory returns a directory handle for path. Nothing is created.
func (r *Registry) OpenDirectory(path string, options ...HandleOption) (Directory, error) {
	abs, p, err := r.AbsolutePath(path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("provider", p.Name).Str("path", abs).Msg("open directory")
	return p.NewDirectory(abs, ProcessHandleOptions(options...))
}

// OpenFile returns a file handle for path. Nothing is created.
func (r *Registry) OpenFile(path string, options ...HandleOption) (File, error) {
	abs, p, err := r.AbsolutePath(path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("provider", p.Name).Str("path", abs).Msg("open file")
	return p.NewFile(abs, ProcessHandleOptions(options...))
}
