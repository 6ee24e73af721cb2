package core

import (
	"fmt"
	"strings"
)

type AuthState string

const (
	AuthStateLoading         AuthState = "loading"
	AuthStateAuthenticated   AuthState = "authenticated"
	AuthStateUnauthenticated AuthState = "unauthenticated"
)

func (s AuthState) String() string {
	return string(s)
}

func (s AuthState) Valid() bool {
	switch s {
	case AuthStateLoading, AuthStateAuthenticated, AuthStateUnauthenticated:
		return true
	default:
		return false
	}
}

func ParseAuthState(value string) (AuthState, error) {
	state := AuthState(strings.TrimSpace(strings.ToLower(value)))
	if !state.Valid() {
		return "", fmt.Errorf("core: unknown auth state %q", value)
	}
	return state, nil
}

// InitialAuthState is Loading only when a startup probe will resolve it.
func InitialAuthState(autoLogin bool) AuthState {
	if autoLogin {
		return AuthStateLoading
	}
	return AuthStateUnauthenticated
}

// AuthStateFor derives the state implied by writing or reading cred.
func AuthStateFor(cred *Credential) AuthState {
	if HasAccessToken(cred) {
		return AuthStateAuthenticated
	}
	return AuthStateUnauthenticated
}
