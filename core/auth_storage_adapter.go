package core

import (
	"context"
	"fmt"
)

// AuthStorageAdapter decorates a CredentialStore so every write also drives
// the AuthStateMachine. The derived state is published before the underlying
// write is awaited and is kept even when the write fails.
type AuthStorageAdapter struct {
	store   CredentialStore
	machine *AuthStateMachine
	logger  Logger
}

func NewAuthStorageAdapter(store CredentialStore, machine *AuthStateMachine, logger Logger) (*AuthStorageAdapter, error) {
	if store == nil {
		return nil, configurationError("core: credential store is required", nil)
	}
	if machine == nil {
		return nil, fmt.Errorf("core: auth state machine is required")
	}
	return &AuthStorageAdapter{
		store:   store,
		machine: machine,
		logger:  logger,
	}, nil
}

func (a *AuthStorageAdapter) Get(ctx context.Context) (*Credential, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("core: auth storage adapter is not configured")
	}
	return a.store.Get(ctx)
}

func (a *AuthStorageAdapter) Set(ctx context.Context, credential *Credential) error {
	if a == nil || a.store == nil {
		return fmt.Errorf("core: auth storage adapter is not configured")
	}
	next := AuthStateFor(credential)
	a.machine.Publish(ctx, next)

	if err := a.store.Set(ctx, credential.Clone()); err != nil {
		wrapped := WrapStorageError(err, "set")
		LogEvent(ctx, a.logger, "error", "credential store write failed", map[string]any{
			"auth_state": string(next),
			"error":      wrapped.Error(),
		})
		return wrapped
	}
	LogEvent(ctx, a.logger, "debug", "credential store write completed", map[string]any{
		"auth_state": string(next),
	})
	return nil
}

// Store returns the wrapped backend.
func (a *AuthStorageAdapter) Store() CredentialStore {
	if a == nil {
		return nil
	}
	return a.store
}

func (a *AuthStorageAdapter) StateMachine() *AuthStateMachine {
	if a == nil {
		return nil
	}
	return a.machine
}

var _ CredentialStore = (*AuthStorageAdapter)(nil)
