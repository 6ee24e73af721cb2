package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

// Dependencies is the resolved set of collaborators shared by a provider
// factory and every client it builds.
type Dependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	CredentialStore CredentialStore
	HTTPClient      HTTPDoer
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
}

type dependencyBuilder struct {
	deps Dependencies
}

type Option func(*dependencyBuilder)

func WithLogger(logger Logger) Option {
	return func(b *dependencyBuilder) {
		b.deps.Logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *dependencyBuilder) {
		b.deps.LoggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *dependencyBuilder) {
		b.deps.MetricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *dependencyBuilder) {
		b.deps.ErrorMapper = mapper
	}
}

// WithCredentialStore sets the store used when the authentication capability
// does not carry its own.
func WithCredentialStore(store CredentialStore) Option {
	return func(b *dependencyBuilder) {
		b.deps.CredentialStore = store
	}
}

func WithHTTPClient(client HTTPDoer) Option {
	return func(b *dependencyBuilder) {
		b.deps.HTTPClient = client
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *dependencyBuilder) {
		b.deps.ConfigProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *dependencyBuilder) {
		b.deps.OptionsResolver = resolver
	}
}

// ResolveDependencies applies options over the defaults. Logger and provider
// are reconciled through glog so either one alone is enough.
func ResolveDependencies(options ...Option) Dependencies {
	builder := dependencyBuilder{}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}
	deps := builder.deps
	deps.LoggerProvider, deps.Logger = glog.Resolve("directus", deps.LoggerProvider, deps.Logger)
	if deps.MetricsRecorder == nil {
		deps.MetricsRecorder = NopMetricsRecorder{}
	}
	if deps.ErrorMapper == nil {
		deps.ErrorMapper = MapError
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	if deps.ConfigProvider == nil {
		deps.ConfigProvider = NewCfgxConfigProvider(nil)
	}
	if deps.OptionsResolver == nil {
		deps.OptionsResolver = GoOptionsResolver{}
	}
	return deps
}

// NamedLogger returns a child logger for component, falling back to the root
// logger when no provider is configured.
func (d Dependencies) NamedLogger(component string) Logger {
	if d.LoggerProvider != nil {
		if logger := d.LoggerProvider.GetLogger("directus." + component); logger != nil {
			return logger
		}
	}
	if d.Logger != nil {
		return d.Logger
	}
	return glog.Nop()
}

// LoadConfig layers defaults, the configured source and runtime values, in
// that order of precedence. The credential store on runtime survives the
// merge untouched.
func LoadConfig(ctx context.Context, runtime Config, options ...Option) (Config, error) {
	deps := ResolveDependencies(options...)
	defaults := DefaultConfig()
	loaded, err := deps.ConfigProvider.Load(ctx, defaults)
	if err != nil {
		return Config{}, mapBuildError(deps.ErrorMapper, err)
	}
	resolved, err := deps.OptionsResolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return Config{}, mapBuildError(deps.ErrorMapper, err)
	}
	if runtime.Capabilities.Authentication.Storage != nil {
		resolved.Capabilities.Authentication.Storage = runtime.Capabilities.Authentication.Storage
	}
	return resolved, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

type staticRawConfigLoader struct {
	Values map[string]any
}

// NewStaticRawConfigLoader serves a fixed map, typically decoded from a file
// the host application already read.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes the raw source over defaults. api_url may still be empty here;
// it is required only after runtime values are merged.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).validateCapabilities),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validateCapabilities() error {
	return c.Capabilities.Validate()
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap flattens cfg into an options layer. Outside the defaults
// layer zero values are omitted so they never mask a lower layer; booleans
// therefore only ever switch things on.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.APIURL) != "" {
		layer["api_url"] = strings.TrimSpace(cfg.APIURL)
	}
	if includeZero || cfg.AutoLogin {
		layer["auto_login"] = cfg.AutoLogin
	}

	caps := cfg.Capabilities
	capabilities := map[string]any{}

	auth := map[string]any{}
	putBool(auth, "enabled", caps.Authentication.Enabled, includeZero)
	putString(auth, "mode", string(caps.Authentication.Mode), includeZero)
	if caps.Authentication.AutoRefresh != nil {
		auth["auto_refresh"] = *caps.Authentication.AutoRefresh
	}
	putDuration(auth, "refresh_before_expires", caps.Authentication.RefreshBeforeExpires, includeZero)
	putSection(capabilities, "authentication", auth)

	rest := map[string]any{}
	putBool(rest, "enabled", caps.REST.Enabled, includeZero)
	putDuration(rest, "timeout", caps.REST.Timeout, includeZero)
	if includeZero || caps.REST.MaxResponseBodyBytes != 0 {
		rest["max_response_body_bytes"] = caps.REST.MaxResponseBodyBytes
	}
	if len(caps.REST.Headers) > 0 {
		headers := make(map[string]any, len(caps.REST.Headers))
		for key, value := range caps.REST.Headers {
			headers[key] = value
		}
		rest["headers"] = headers
	}
	putSection(capabilities, "rest", rest)

	graphql := map[string]any{}
	putBool(graphql, "enabled", caps.GraphQL.Enabled, includeZero)
	putString(graphql, "path", caps.GraphQL.Path, includeZero)
	putString(graphql, "system_path", caps.GraphQL.SystemPath, includeZero)
	putDuration(graphql, "timeout", caps.GraphQL.Timeout, includeZero)
	putSection(capabilities, "graphql", graphql)

	realtime := map[string]any{}
	putBool(realtime, "enabled", caps.Realtime.Enabled, includeZero)
	putString(realtime, "url", caps.Realtime.URL, includeZero)
	putString(realtime, "auth_mode", string(caps.Realtime.AuthMode), includeZero)
	putDuration(realtime, "handshake_timeout", caps.Realtime.HandshakeTimeout, includeZero)
	putSection(capabilities, "realtime", realtime)

	staticToken := map[string]any{}
	putBool(staticToken, "enabled", caps.StaticToken.Enabled, includeZero)
	putString(staticToken, "token", caps.StaticToken.Token, includeZero)
	putSection(capabilities, "static_token", staticToken)

	if len(capabilities) > 0 {
		layer["capabilities"] = capabilities
	}
	return layer
}

func putBool(target map[string]any, key string, value bool, includeZero bool) {
	if includeZero || value {
		target[key] = value
	}
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	value = strings.TrimSpace(value)
	if includeZero || value != "" {
		target[key] = value
	}
}

func putDuration(target map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putSection(target map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		target[key] = section
	}
}
