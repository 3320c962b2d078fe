package memory

import (
	"github.com/gobeaver/unifs"
)

func init() {
	unifs.RegisterDriver("memory", NewProviderFromConfig)
}
