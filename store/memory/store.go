// Package memory provides a process-local CredentialStore. Nothing survives a
// restart; it is the default backend when no other store is configured.
package memory

import (
	"context"
	"sync"

	"github.com/goliatone/go-directus/core"
)

type Store struct {
	mu    sync.RWMutex
	value *core.Credential
}

func New() *Store {
	return &Store{}
}

// NewWithCredential seeds the store, typically in tests or when a token was
// obtained out of band.
func NewWithCredential(credential *core.Credential) *Store {
	return &Store{value: credential.Clone()}
}

func (s *Store) Get(ctx context.Context) (*core.Credential, error) {
	if err := contextError(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value.Clone(), nil
}

func (s *Store) Set(ctx context.Context, credential *core.Credential) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = credential.Clone()
	return nil
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

var _ core.CredentialStore = (*Store)(nil)
