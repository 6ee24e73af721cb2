package core

import (
	"context"
	"time"
)

// Credential is the record persisted by a CredentialStore after a login or
// refresh. A nil *Credential means no credential is stored.
type Credential struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Expires      int64      `json:"expires,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	// Mode is the authentication mode the credential was issued under. Empty
	// means the configured mode applies.
	Mode AuthenticationMode `json:"mode,omitempty"`
}

// CredentialStore is the storage seam for persisted login credentials.
// Get must return (nil, nil) when nothing is stored.
type CredentialStore interface {
	Get(ctx context.Context) (*Credential, error)
	Set(ctx context.Context, credential *Credential) error
}

// HasAccessToken is the only signal used to decide whether a credential
// authenticates the session. Any non-empty token counts, whitespace included.
func HasAccessToken(cred *Credential) bool {
	return cred != nil && cred.AccessToken != ""
}

func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cloned := *c
	cloned.ExpiresAt = cloneTimePointer(c.ExpiresAt)
	return &cloned
}

// ExpiresWithin reports whether the credential expires before now+window.
// Credentials without an expiry never expire.
func (c *Credential) ExpiresWithin(now time.Time, window time.Duration) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.After(now.Add(window))
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
