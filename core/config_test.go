package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedConfigProvider struct {
	cfg Config
	err error
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, p.err
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestParseAPIURL(t *testing.T) {
	parsed, err := ParseAPIURL(" https://cms.example.com/api/?x=1#frag ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := parsed.String(); got != "https://cms.example.com/api" {
		t.Fatalf("unexpected normalized url %q", got)
	}

	for _, raw := range []string{"", "cms.example.com", "ftp://cms.example.com", "http://"} {
		if _, err := ParseAPIURL(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		} else if !IsConfigurationError(err) {
			t.Fatalf("expected configuration error for %q, got %v", raw, err)
		}
	}
}

func TestConfigValidate_RequiresAPIURL(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing api_url to fail")
	}
	cfg.APIURL = "http://localhost:8055"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveDependencies_Defaults(t *testing.T) {
	deps := ResolveDependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected default logger and provider")
	}
	if deps.MetricsRecorder == nil {
		t.Fatalf("expected default metrics recorder")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.HTTPClient == nil {
		t.Fatalf("expected default http client")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and resolver")
	}
	if deps.CredentialStore != nil {
		t.Fatalf("expected no default credential store at this layer")
	}
}

func TestResolveDependencies_WithOverrides(t *testing.T) {
	logger := newCaptureLogger()
	names := []string{}
	provider := stubLoggerProvider{logger: logger, names: &names}
	store := &fakeCredentialStore{}
	metrics := &captureMetricsRecorder{}

	deps := ResolveDependencies(
		WithLoggerProvider(provider),
		WithLogger(logger),
		WithCredentialStore(store),
		WithMetricsRecorder(metrics),
		nil,
	)
	if deps.CredentialStore != store {
		t.Fatalf("expected credential store override")
	}
	if deps.MetricsRecorder != metrics {
		t.Fatalf("expected metrics override")
	}
	if got := deps.NamedLogger("provider"); got != logger {
		t.Fatalf("expected named logger from provider")
	}
	if len(names) == 0 || names[len(names)-1] != "directus.provider" {
		t.Fatalf("expected directus.provider logger name, got %v", names)
	}
}

func TestLoadConfig_UsesProvidersAndKeepsStorage(t *testing.T) {
	store := &fakeCredentialStore{}
	resolved := DefaultConfig()
	resolved.APIURL = "http://localhost:8055"

	cfg, err := LoadConfig(context.Background(), Config{
		Capabilities: CapabilityConfig{Authentication: AuthenticationConfig{Enabled: true, Storage: store}},
	},
		WithConfigProvider(&fixedConfigProvider{cfg: DefaultConfig()}),
		WithOptionsResolver(&fixedOptionsResolver{cfg: resolved}),
	)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIURL != "http://localhost:8055" {
		t.Fatalf("unexpected api url %q", cfg.APIURL)
	}
	if cfg.Capabilities.Authentication.Storage != store {
		t.Fatalf("expected runtime credential store to survive resolution")
	}
}

func TestLoadConfig_MapsProviderErrors(t *testing.T) {
	_, err := LoadConfig(context.Background(), Config{},
		WithConfigProvider(&fixedConfigProvider{err: errors.New("boom")}),
	)
	if err == nil {
		t.Fatalf("expected error")
	}
	mapped := MapError(err)
	if mapped.TextCode == "" {
		t.Fatalf("expected mapped text code")
	}
}

func TestLoadConfig_EnvironmentLayer(t *testing.T) {
	loader := &EnvRawConfigLoader{
		Prefix: DefaultEnvPrefix,
		Environment: map[string]string{
			"DIRECTUS_API_URL":       "https://cms.example.com",
			"DIRECTUS_AUTO_LOGIN":    "true",
			"DIRECTUS_CAPABILITIES":  "authentication, rest,graphql",
			"DIRECTUS_GRAPHQL_PATH":  "/gql",
			"DIRECTUS_REST_TIMEOUT":  "5s",
			"DIRECTUS_UNRELATED_KEY": "ignored",
		},
	}
	cfg, err := LoadConfig(context.Background(), Config{},
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIURL != "https://cms.example.com" {
		t.Fatalf("unexpected api url %q", cfg.APIURL)
	}
	if !cfg.AutoLogin {
		t.Fatalf("expected auto login from environment")
	}
	want := NewCapabilitySet(CapabilityAuthentication, CapabilityREST, CapabilityGraphQL)
	if cfg.Capabilities.Set() != want {
		t.Fatalf("expected %s, got %s", want, cfg.Capabilities.Set())
	}
	if cfg.Capabilities.GraphQL.Path != "/gql" {
		t.Fatalf("expected graphql path override, got %q", cfg.Capabilities.GraphQL.Path)
	}
	if cfg.Capabilities.REST.Timeout != 5*time.Second {
		t.Fatalf("expected rest timeout 5s, got %s", cfg.Capabilities.REST.Timeout)
	}
}

func TestLoadConfig_RuntimeOverridesEnvironment(t *testing.T) {
	loader := &EnvRawConfigLoader{Environment: map[string]string{
		"DIRECTUS_API_URL": "https://from-env.example.com",
	}}
	cfg, err := LoadConfig(context.Background(), Config{APIURL: "https://runtime.example.com"},
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIURL != "https://runtime.example.com" {
		t.Fatalf("expected runtime api url, got %q", cfg.APIURL)
	}
}

func TestEnvRawConfigLoader_RejectsUnknownCapability(t *testing.T) {
	loader := &EnvRawConfigLoader{Environment: map[string]string{
		"DIRECTUS_CAPABILITIES": "rest,files",
	}}
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected unknown capability to fail")
	} else if !IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEnvRawConfigLoader_StaticToken(t *testing.T) {
	loader := &EnvRawConfigLoader{Environment: map[string]string{
		"DIRECTUS_CAPABILITIES": "static_token",
		"DIRECTUS_STATIC_TOKEN": "abc",
	}}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	capabilities, _ := raw["capabilities"].(map[string]any)
	section, _ := capabilities["static_token"].(map[string]any)
	if section["enabled"] != true || section["token"] != "abc" {
		t.Fatalf("unexpected static token section: %#v", section)
	}
}
