package resource

import (
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

func init() {
	unifs.RegisterDriver("resource", func(_ *unifs.Config, logger zerolog.Logger) (*unifs.Provider, error) {
		return NewProvider(nil, logger), nil
	})
}
