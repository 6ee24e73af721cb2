package provider

import (
	"context"
	"strings"

	"github.com/goliatone/go-directus/client"
	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/store/memory"
)

// scopeKey is allocated per factory so providers of different factories never
// shadow each other in a context.
type scopeKey struct {
	_ byte
}

// Factory creates providers that share one validated capability
// configuration.
type Factory struct {
	caps          core.CapabilityConfig
	deps          core.Dependencies
	clientOptions []client.Option
	logger        core.Logger
	key           *scopeKey
}

func NewFactory(caps core.CapabilityConfig, opts ...Option) (*Factory, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	options := factoryOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	deps := core.ResolveDependencies(options.core...)
	clientOptions := []client.Option{
		client.WithHTTPClient(deps.HTTPClient),
		client.WithLogger(deps.NamedLogger("client")),
		client.WithMetricsRecorder(deps.MetricsRecorder),
	}
	clientOptions = append(clientOptions, options.client...)

	return &Factory{
		caps:          caps,
		deps:          deps,
		clientOptions: clientOptions,
		logger:        deps.NamedLogger("provider"),
		key:           &scopeKey{},
	}, nil
}

func (f *Factory) Capabilities() core.CapabilityConfig {
	return f.caps
}

func (f *Factory) Dependencies() core.Dependencies {
	return f.deps
}

// credentialStore picks the store for a new provider: the authentication
// section override, then the factory-wide store, then a fresh memory store.
func (f *Factory) credentialStore() core.CredentialStore {
	if f.caps.Authentication.Storage != nil {
		return f.caps.Authentication.Storage
	}
	if f.deps.CredentialStore != nil {
		return f.deps.CredentialStore
	}
	return memory.New()
}

func (f *Factory) buildClient(apiURL string, storage core.CredentialStore) (*client.Client, error) {
	built, err := client.Build(apiURL, f.caps, storage, f.clientOptions...)
	if err != nil {
		return nil, f.deps.ErrorMapper(err)
	}
	return built, nil
}

func (f *Factory) NewProvider(props Props) (*Provider, error) {
	props.APIURL = strings.TrimSpace(props.APIURL)
	store := f.credentialStore()
	machine := core.NewAuthStateMachine(
		core.InitialAuthState(props.AutoLogin),
		core.WithAuthStateLogger(f.deps.NamedLogger("auth_state")),
		core.WithAuthStateMetrics(f.deps.MetricsRecorder),
	)
	adapter, err := core.NewAuthStorageAdapter(store, machine, f.deps.NamedLogger("storage"))
	if err != nil {
		return nil, err
	}
	built, err := f.buildClient(props.APIURL, adapter)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		factory:   f,
		props:     props,
		store:     store,
		machine:   machine,
		adapter:   adapter,
		logger:    f.logger,
		probeDone: make(chan struct{}),
		snapshot: Snapshot{
			APIURL:    props.APIURL,
			Client:    built,
			AuthState: machine.Current(),
		},
	}
	p.stopObserving = machine.OnChange(p.handleAuthStateChange)
	return p, nil
}

// Provider returns the provider mounted from this factory in ctx.
func (f *Factory) Provider(ctx context.Context) (*Provider, error) {
	if ctx == nil {
		return nil, core.OutsideProviderScopeError()
	}
	p, ok := ctx.Value(f.key).(*Provider)
	if !ok || p == nil || p.Closed() {
		return nil, core.OutsideProviderScopeError()
	}
	return p, nil
}

// Current returns the snapshot of the provider mounted in ctx.
func (f *Factory) Current(ctx context.Context) (Snapshot, error) {
	p, err := f.Provider(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return p.Snapshot(), nil
}

func (f *Factory) MustCurrent(ctx context.Context) Snapshot {
	snapshot, err := f.Current(ctx)
	if err != nil {
		panic(err)
	}
	return snapshot
}

// Authenticator resolves the authentication capability of the client held by
// the provider mounted in ctx.
func (f *Factory) Authenticator(ctx context.Context) (core.Authenticator, error) {
	snapshot, err := f.Current(ctx)
	if err != nil {
		return nil, err
	}
	auth, err := snapshot.Client.Authentication()
	if err != nil {
		return nil, err
	}
	return auth.AsAuthenticator(), nil
}

func (f *Factory) ProviderStatus(ctx context.Context) (core.ProviderStatus, error) {
	p, err := f.Provider(ctx)
	if err != nil {
		return core.ProviderStatus{}, err
	}
	return p.Status(), nil
}

func (f *Factory) AuthState(ctx context.Context) (core.AuthState, error) {
	snapshot, err := f.Current(ctx)
	if err != nil {
		return core.AuthStateUnauthenticated, err
	}
	return snapshot.AuthState, nil
}

func (f *Factory) SetAPIURL(ctx context.Context, apiURL string) error {
	p, err := f.Provider(ctx)
	if err != nil {
		return err
	}
	return p.SetAPIURL(ctx, apiURL)
}
