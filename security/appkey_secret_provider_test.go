package security

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestAppKeySecretProvider_EncryptDecryptRoundTrip(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("directus-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	plaintext := []byte(`{"access_token":"tok"}`)
	encrypted, err := provider.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.HasPrefix(encrypted, []byte(envelopePrefix)) {
		t.Fatalf("expected envelope prefix")
	}
	if bytes.Contains(encrypted, []byte("tok")) {
		t.Fatalf("expected plaintext to be sealed")
	}

	decrypted, err := provider.Decrypt(context.Background(), encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(decrypted))
	}

	metadata, err := ParseEnvelopeMetadata(encrypted)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if metadata.KeyID != "directus-v1" || metadata.Version != 3 || metadata.Algorithm != envelopeAlgorithm {
		t.Fatalf("unexpected metadata %#v", metadata)
	}
}

func TestAppKeySecretProvider_NoncesDiffer(t *testing.T) {
	provider, _ := NewAppKeySecretProviderFromString("key")
	first, _ := provider.Encrypt(context.Background(), []byte("payload"))
	second, _ := provider.Encrypt(context.Background(), []byte("payload"))
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct ciphertexts for repeated payloads")
	}
}

func TestAppKeySecretProvider_RejectsMismatchAndTampering(t *testing.T) {
	issuer, _ := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("directus-v1"), WithVersion(1))
	otherID, _ := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("directus-v2"), WithVersion(1))
	otherKey, _ := NewAppKeySecretProviderFromString("another-key", WithKeyID("directus-v1"), WithVersion(1))

	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := otherID.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected key id mismatch error")
	}
	if _, err := otherKey.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected wrong key material to fail")
	}
	if _, err := issuer.Decrypt(context.Background(), []byte("plain")); err == nil {
		t.Fatalf("expected missing prefix to fail")
	}
	if _, err := NewAppKeySecretProviderFromString("   "); err == nil {
		t.Fatalf("expected empty key material to fail")
	}
}

func TestKeyring_OpensRetiredKeysInsideWindow(t *testing.T) {
	old, _ := NewAppKeySecretProviderFromString("old-key", WithKeyID("app"), WithVersion(1))
	current, _ := NewAppKeySecretProviderFromString("new-key", WithKeyID("app"), WithVersion(2))
	sealedOld, _ := old.Encrypt(context.Background(), []byte("legacy"))

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	keyring, err := NewKeyring(current,
		WithRetiredKey(old, KeyRotationWindow{NotAfter: now.Add(time.Hour)}),
		WithKeyringClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	opened, err := keyring.Decrypt(context.Background(), sealedOld)
	if err != nil || string(opened) != "legacy" {
		t.Fatalf("expected retired key to open payload, got %q err=%v", opened, err)
	}

	sealedNew, _ := keyring.Encrypt(context.Background(), []byte("fresh"))
	metadata, _ := ParseEnvelopeMetadata(sealedNew)
	if metadata.Version != 2 || keyring.KeyID() != "app" {
		t.Fatalf("expected primary key to seal, got %#v", metadata)
	}

	expired, _ := NewKeyring(current,
		WithRetiredKey(old, KeyRotationWindow{NotAfter: now.Add(-time.Hour)}),
		WithKeyringClock(func() time.Time { return now }),
	)
	if _, err := expired.Decrypt(context.Background(), sealedOld); err == nil {
		t.Fatalf("expected retired key outside window to fail")
	}
}
