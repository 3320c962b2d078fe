package sftp

import (
	"github.com/gobeaver/unifs"
)

func init() {
	unifs.RegisterDriver("sftp", NewProviderFromConfig)
}
