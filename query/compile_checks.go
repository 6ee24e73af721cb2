package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-directus/core"
)

var (
	_ gocmd.Querier[AuthStateMessage, core.AuthState]           = (*AuthStateQuery)(nil)
	_ gocmd.Querier[ProviderStatusMessage, core.ProviderStatus] = (*ProviderStatusQuery)(nil)
)
