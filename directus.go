package directus

import (
	"context"

	"github.com/goliatone/go-directus/client"
	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/provider"
)

type Config = core.Config

type CapabilityConfig = core.CapabilityConfig

type Capability = core.Capability

type CapabilitySet = core.CapabilitySet

type AuthState = core.AuthState

type Credential = core.Credential

type CredentialStore = core.CredentialStore

type SecretProvider = core.SecretProvider

type LoginRequest = core.LoginRequest

type ProviderStatus = core.ProviderStatus

type Option = core.Option

type Client = client.Client

type Factory = provider.Factory

type Provider = provider.Provider

type ProviderProps = provider.Props

type Snapshot = provider.Snapshot

const (
	AuthStateLoading         = core.AuthStateLoading
	AuthStateAuthenticated   = core.AuthStateAuthenticated
	AuthStateUnauthenticated = core.AuthStateUnauthenticated
)

const (
	CapabilityAuthentication = core.CapabilityAuthentication
	CapabilityREST           = core.CapabilityREST
	CapabilityGraphQL        = core.CapabilityGraphQL
	CapabilityRealtime       = core.CapabilityRealtime
	CapabilityStaticToken    = core.CapabilityStaticToken
)

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithCredentialStore = core.WithCredentialStore
	WithHTTPClient      = core.WithHTTPClient
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewFactory(caps CapabilityConfig, opts ...provider.Option) (*Factory, error) {
	return provider.NewFactory(caps, opts...)
}

// Runtime pairs the resolved configuration with the factory built from it.
type Runtime struct {
	Config  Config
	Factory *Factory
}

// Setup resolves configuration (defaults, configured source, then runtime)
// and builds a provider factory for the resulting capabilities.
func Setup(ctx context.Context, runtime Config, opts ...Option) (*Runtime, error) {
	cfg, err := core.LoadConfig(ctx, runtime, opts...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, err := provider.NewFactory(cfg.Capabilities, provider.WithCoreOptions(opts...))
	if err != nil {
		return nil, err
	}
	return &Runtime{Config: cfg, Factory: factory}, nil
}

// NewProvider creates a provider bound to the configured API URL and
// auto-login setting.
func (r *Runtime) NewProvider(onAuthStateChanged func(AuthState)) (*Provider, error) {
	if r == nil || r.Factory == nil {
		return nil, core.NewConfigurationError("directus: runtime is not configured", core.ErrorConfigurationInvalid, nil)
	}
	return r.Factory.NewProvider(provider.Props{
		APIURL:             r.Config.APIURL,
		AutoLogin:          r.Config.AutoLogin,
		OnAuthStateChanged: onAuthStateChanged,
	})
}

// Mount creates a provider and mounts it, returning the scoped context.
func (r *Runtime) Mount(ctx context.Context, onAuthStateChanged func(AuthState)) (context.Context, *Provider, error) {
	p, err := r.NewProvider(onAuthStateChanged)
	if err != nil {
		return ctx, nil, err
	}
	scoped, err := p.Mount(ctx)
	if err != nil {
		_ = p.Close()
		return ctx, nil, err
	}
	return scoped, p, nil
}
