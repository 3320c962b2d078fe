package ftp

import "github.com/gobeaver/unifs"

func init() {
	unifs.RegisterDriver("ftp", NewProviderFromConfig)
}
