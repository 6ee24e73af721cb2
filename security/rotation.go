package security

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-directus/core"
)

// KeyRotationWindow gates when a key version is allowed to decrypt.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

type keyringEntry struct {
	provider *AppKeySecretProvider
	window   KeyRotationWindow
}

type KeyringOption func(*Keyring)

// WithRetiredKey keeps provider available for opening payloads sealed before
// a rotation, inside window.
func WithRetiredKey(provider *AppKeySecretProvider, window KeyRotationWindow) KeyringOption {
	return func(k *Keyring) {
		if provider != nil {
			k.retired = append(k.retired, keyringEntry{provider: provider, window: window})
		}
	}
}

func WithKeyringClock(now func() time.Time) KeyringOption {
	return func(k *Keyring) {
		if now != nil {
			k.now = now
		}
	}
}

// Keyring seals with the primary key and opens with whichever key matches the
// envelope's key id and version.
type Keyring struct {
	primary *AppKeySecretProvider
	retired []keyringEntry
	now     func() time.Time
}

func NewKeyring(primary *AppKeySecretProvider, opts ...KeyringOption) (*Keyring, error) {
	if primary == nil {
		return nil, fmt.Errorf("security: primary secret provider is required")
	}
	keyring := &Keyring{
		primary: primary,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(keyring)
		}
	}
	return keyring, nil
}

func (k *Keyring) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	return k.primary.Encrypt(ctx, plaintext)
}

func (k *Keyring) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	metadata, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	if matches(k.primary, metadata) {
		return k.primary.Decrypt(ctx, ciphertext)
	}
	for _, entry := range k.retired {
		if !matches(entry.provider, metadata) {
			continue
		}
		if !entry.window.Allows(k.now()) {
			return nil, fmt.Errorf("security: key %s v%d is outside its rotation window", metadata.KeyID, metadata.Version)
		}
		return entry.provider.Decrypt(ctx, ciphertext)
	}
	return nil, fmt.Errorf("security: no key for %s v%d", metadata.KeyID, metadata.Version)
}

// KeyID reports the key new payloads are sealed with.
func (k *Keyring) KeyID() string {
	return k.primary.KeyID()
}

func matches(provider *AppKeySecretProvider, metadata EnvelopeMetadata) bool {
	return provider.KeyID() == metadata.KeyID && provider.Version() == metadata.Version
}

var _ core.SecretProvider = (*Keyring)(nil)
