package core

import (
	"context"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SecretProvider seals credential payloads before a durable store writes them.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type LoginRequest struct {
	Email    string
	Password string
	OTP      string
	Mode     AuthenticationMode
}

// Authenticator is the credential-writing surface of the authentication
// capability.
type Authenticator interface {
	Login(ctx context.Context, req LoginRequest) (*Credential, error)
	Refresh(ctx context.Context) (*Credential, error)
	Logout(ctx context.Context) error
}

// ProviderStatus is the transport-neutral view of a provider snapshot.
type ProviderStatus struct {
	APIURL       string
	AuthState    AuthState
	Capabilities CapabilitySet
}

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}
