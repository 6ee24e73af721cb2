package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatJSONV1 = "directus_credential_json"
	CredentialPayloadFormatToken  = "access_token"
	CredentialPayloadVersionV1    = 1
)

// CredentialCodec turns a credential into the bytes a durable store seals and
// persists.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(credential *Credential) ([]byte, error)
	Decode(payload []byte) (*Credential, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Expires      int64      `json:"expires,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Mode         string     `json:"mode,omitempty"`
}

func (JSONCredentialCodec) Encode(credential *Credential) ([]byte, error) {
	if credential == nil {
		return nil, fmt.Errorf("core: credential is required")
	}
	encoded, err := json.Marshal(jsonCredentialPayload{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		Expires:      credential.Expires,
		ExpiresAt:    cloneTimePointer(credential.ExpiresAt),
		Mode:         string(credential.Mode),
	})
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (*Credential, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("core: decode credential payload: %w", err)
	}
	return &Credential{
		AccessToken:  decoded.AccessToken,
		RefreshToken: decoded.RefreshToken,
		Expires:      decoded.Expires,
		ExpiresAt:    cloneTimePointer(decoded.ExpiresAt),
		Mode:         AuthenticationMode(decoded.Mode),
	}, nil
}

// TokenCredentialCodec persists only the access token. Refresh data is lost,
// which suits static tokens issued out of band.
type TokenCredentialCodec struct{}

func (TokenCredentialCodec) Format() string {
	return CredentialPayloadFormatToken
}

func (TokenCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

func (TokenCredentialCodec) Encode(credential *Credential) ([]byte, error) {
	if !HasAccessToken(credential) {
		return nil, fmt.Errorf("core: token credential payload requires an access token")
	}
	return []byte(credential.AccessToken), nil
}

func (TokenCredentialCodec) Decode(payload []byte) (*Credential, error) {
	token := string(payload)
	if token == "" {
		return nil, fmt.Errorf("core: token credential payload is empty")
	}
	return &Credential{AccessToken: token}, nil
}

// CodecForFormat resolves the codec used to read a persisted payload.
func CodecForFormat(format string) (CredentialCodec, error) {
	switch strings.TrimSpace(format) {
	case "", CredentialPayloadFormatJSONV1:
		return JSONCredentialCodec{}, nil
	case CredentialPayloadFormatToken:
		return TokenCredentialCodec{}, nil
	default:
		return nil, fmt.Errorf("core: unsupported credential payload format %q", format)
	}
}
