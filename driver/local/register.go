package local

import (
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

func init() {
	unifs.RegisterDriver("local", func(_ *unifs.Config, logger zerolog.Logger) (*unifs.Provider, error) {
		return NewProvider(logger), nil
	})
	unifs.RegisterDriver("local-relative", func(cfg *unifs.Config, logger zerolog.Logger) (*unifs.Provider, error) {
		return NewRelativeProvider(cfg.LocalBaseDir, logger), nil
	})
}
