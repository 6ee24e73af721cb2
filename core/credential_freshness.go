package core

import (
	"context"
	"strings"
	"time"
)

// CredentialTokenState captures the access/refresh lifecycle of a stored
// credential at a point in time.
type CredentialTokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	IsExpired       bool
	IsExpiringSoon  bool
}

// CredentialRefresher exchanges the stored refresh token for a new credential.
type CredentialRefresher func(ctx context.Context) (*Credential, error)

// EnsureCredentialFreshResult reports the credential a caller should use and
// whether a refresh happened to obtain it.
type EnsureCredentialFreshResult struct {
	Credential       *Credential
	State            CredentialTokenState
	RefreshAttempted bool
	Refreshed        bool
}

func ResolveCredentialTokenState(now time.Time, credential *Credential, expiringSoonWindow time.Duration) CredentialTokenState {
	if credential == nil {
		return CredentialTokenState{}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if expiringSoonWindow <= 0 {
		expiringSoonWindow = DefaultRefreshBeforeExpires
	}

	state := CredentialTokenState{
		HasAccessToken:  HasAccessToken(credential),
		HasRefreshToken: strings.TrimSpace(credential.RefreshToken) != "",
	}
	if credential.ExpiresAt == nil {
		return state
	}
	expiresAt := credential.ExpiresAt.UTC()
	state.ExpiresAt = &expiresAt
	if !expiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = credential.ExpiresWithin(now, expiringSoonWindow)
	return state
}

// ShouldRefreshCredential is true when a refresh token is present and the
// access token is missing, expired, or inside the lead window.
func ShouldRefreshCredential(state CredentialTokenState) bool {
	if !state.HasRefreshToken {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	return state.IsExpired || state.IsExpiringSoon
}

// EnsureCredentialFresh reads store and, when the credential is close to
// expiry, calls refresh. The refresher is expected to persist its own result.
func EnsureCredentialFresh(
	ctx context.Context,
	now time.Time,
	store CredentialStore,
	refresh CredentialRefresher,
	leadWindow time.Duration,
) (EnsureCredentialFreshResult, error) {
	if store == nil {
		return EnsureCredentialFreshResult{}, configurationError("core: credential store is required", nil)
	}
	current, err := store.Get(ctx)
	if err != nil {
		return EnsureCredentialFreshResult{}, WrapStorageError(err, "get")
	}
	state := ResolveCredentialTokenState(now, current, leadWindow)
	result := EnsureCredentialFreshResult{
		Credential: current,
		State:      state,
	}
	if refresh == nil || !ShouldRefreshCredential(state) {
		return result, nil
	}

	result.RefreshAttempted = true
	refreshed, err := refresh(ctx)
	if err != nil {
		return result, err
	}
	result.Credential = refreshed
	result.State = ResolveCredentialTokenState(now, refreshed, leadWindow)
	result.Refreshed = true
	return result, nil
}
