package query

import (
	"context"

	"github.com/goliatone/go-directus/core"
)

type AuthStateReader interface {
	AuthState(ctx context.Context) (core.AuthState, error)
}

type ProviderStatusReader interface {
	ProviderStatus(ctx context.Context) (core.ProviderStatus, error)
}

type AuthStateQuery struct {
	reader AuthStateReader
}

func NewAuthStateQuery(reader AuthStateReader) *AuthStateQuery {
	return &AuthStateQuery{reader: reader}
}

// Query reports the auth state of the provider scoped by ctx. Outside a
// provider scope it returns the configuration error of the reader.
func (q *AuthStateQuery) Query(ctx context.Context, _ AuthStateMessage) (core.AuthState, error) {
	if q == nil || q.reader == nil {
		return core.AuthStateUnauthenticated, queryDependencyError("query: auth state reader is required")
	}
	return q.reader.AuthState(ctx)
}

type ProviderStatusQuery struct {
	reader ProviderStatusReader
}

func NewProviderStatusQuery(reader ProviderStatusReader) *ProviderStatusQuery {
	return &ProviderStatusQuery{reader: reader}
}

func (q *ProviderStatusQuery) Query(ctx context.Context, _ ProviderStatusMessage) (core.ProviderStatus, error) {
	if q == nil || q.reader == nil {
		return core.ProviderStatus{}, queryDependencyError("query: provider status reader is required")
	}
	return q.reader.ProviderStatus(ctx)
}
