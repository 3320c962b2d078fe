package http

import "github.com/gobeaver/unifs"

func init() {
	unifs.RegisterDriver("http", NewProviderFromConfig)
}
