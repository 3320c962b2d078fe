package unifs

import (
	"sort"
	"sync"

	"emperror.dev/errors"
	"github.com/rs/zerolog"
)

// DriverFactory builds a provider from config. Drivers register one from
// their init function:
//
//	func init() {
//	    unifs.RegisterDriver("ftp", func(cfg *unifs.Config, logger zerolog.Logger) (*unifs.Provider, error) {
//	        return NewProviderFromConfig(cfg, logger)
//	    })
//	}
type DriverFactory func(cfg *Config, logger zerolog.Logger) (*Provider, error)

// DefaultProviderOrder is the priority New uses for registered drivers.
var DefaultProviderOrder = []string{"local-relative", "local", "ftp", "http", "sftp", "resource", "memory"}

var (
	driverFactories = make(map[string]DriverFactory)
	factoryMutex    sync.RWMutex
)

// RegisterDriver registers a driver factory function
func RegisterDriver(name string, factory DriverFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	driverFactories[name] = factory
}

// RegisteredDrivers returns the names of all registered drivers, sorted.
func RegisteredDrivers() []string {
	factoryMutex.RLock()
	defer factoryMutex.RUnlock()

	names := make([]string, 0, len(driverFactories))
	for name := range driverFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global instance
var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
	defaultErr      error
)

// New builds a registry holding one provider per registered driver.
//
// Drivers named in the provider order (DefaultProviderOrder unless
// WithProviderOrder is given) come first and in that order; any other
// registered drivers follow, sorted by name. Order names without a registered
// driver are skipped, so importing only some driver packages is fine.
func New(cfg *Config, options ...RegistryOption) (*Registry, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	opts := processRegistryOptions(options...)
	if opts.logger == nil {
		logger, err := NewLogger(cfg)
		if err != nil {
			return nil, err
		}
		opts.logger = &logger
	}
	order := opts.order
	if order == nil {
		order = DefaultProviderOrder
	}

	reg := NewRegistry(WithLogger(*opts.logger), WithProviders(opts.providers...))

	for _, name := range buildOrder(order) {
		factoryMutex.RLock()
		factory := driverFactories[name]
		factoryMutex.RUnlock()

		p, err := factory(cfg, opts.logger.With().Str("driver", name).Logger())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create driver %s", name)
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func buildOrder(order []string) []string {
	registered := RegisteredDrivers()
	known := make(map[string]bool, len(registered))
	for _, name := range registered {
		known[name] = true
	}

	result := make([]string, 0, len(registered))
	seen := make(map[string]bool, len(registered))
	for _, name := range order {
		if known[name] && !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}
	for _, name := range registered {
		if !seen[name] {
			result = append(result, name)
		}
	}
	return result
}

// Init initializes the global registry
func Init(configs ...*Config) error {
	defaultOnce.Do(func() {
		var cfg *Config
		if len(configs) > 0 {
			cfg = configs[0]
		} else {
			cfg, defaultErr = GetConfig()
			if defaultErr != nil {
				return
			}
		}

		defaultRegistry, defaultErr = New(cfg)
	})

	return defaultErr
}

// Default returns the global registry, initializing it from the environment
// if needed.
func Default() (*Registry, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	return defaultRegistry, nil
}

// NewFromEnv creates a registry from environment variables
func NewFromEnv(options ...RegistryOption) (*Registry, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg, options...)
}

// Reset clears the global instance (for testing)
func Reset() {
	defaultRegistry = nil
	defaultOnce = sync.Once{}
	defaultErr = nil
}

// Dir opens a directory handle through the global registry.
func Dir(path string, options ...HandleOption) (Directory, error) {
	reg, err := Default()
	if err != nil {
		return nil, err
	}
	return reg.OpenDirectory(path, options...)
}

// Open opens a file handle through the global registry.
func Open(path string, options ...HandleOption) (File, error) {
	reg, err := Default()
	if err != nil {
		return nil, err
	}
	return reg.OpenFile(path, options...)
}
