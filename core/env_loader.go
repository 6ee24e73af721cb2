package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const DefaultEnvPrefix = "DIRECTUS_"

// directusEnv holds the raw environment values understood by
// EnvRawConfigLoader. Names are relative to the loader prefix.
type directusEnv struct {
	APIURL               string        `env:"API_URL"`
	AutoLogin            bool          `env:"AUTO_LOGIN"`
	Capabilities         []string      `env:"CAPABILITIES" envSeparator:","`
	AuthMode             string        `env:"AUTH_MODE"`
	RefreshBeforeExpires time.Duration `env:"REFRESH_BEFORE_EXPIRES"`
	RESTTimeout          time.Duration `env:"REST_TIMEOUT"`
	GraphQLPath          string        `env:"GRAPHQL_PATH"`
	RealtimeURL          string        `env:"REALTIME_URL"`
	RealtimeAuthMode     string        `env:"REALTIME_AUTH_MODE"`
	StaticToken          string        `env:"STATIC_TOKEN"`
}

// EnvRawConfigLoader reads DIRECTUS_* variables into the raw map consumed by
// CfgxConfigProvider. Environment overrides the process environment when set,
// which keeps tests hermetic.
type EnvRawConfigLoader struct {
	Prefix      string
	Environment map[string]string
}

func NewEnvRawConfigLoader() *EnvRawConfigLoader {
	return &EnvRawConfigLoader{Prefix: DefaultEnvPrefix}
}

func (l *EnvRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := DefaultEnvPrefix
	var environment map[string]string
	if l != nil {
		if strings.TrimSpace(l.Prefix) != "" {
			prefix = l.Prefix
		}
		environment = l.Environment
	}

	var values directusEnv
	if err := env.ParseWithOptions(&values, env.Options{
		Prefix:      prefix,
		Environment: environment,
	}); err != nil {
		return nil, configurationError("core: parse environment failed", map[string]any{
			"prefix": prefix,
			"reason": fmt.Sprint(err),
		})
	}
	return values.toRaw()
}

func (v directusEnv) toRaw() (map[string]any, error) {
	raw := map[string]any{}
	if value := strings.TrimSpace(v.APIURL); value != "" {
		raw["api_url"] = value
	}
	if v.AutoLogin {
		raw["auto_login"] = true
	}

	sections := map[string]map[string]any{}
	section := func(name string) map[string]any {
		if existing, ok := sections[name]; ok {
			return existing
		}
		created := map[string]any{}
		sections[name] = created
		return created
	}
	for _, name := range v.Capabilities {
		capability := Capability(strings.ToLower(strings.TrimSpace(name)))
		if capability == "" {
			continue
		}
		if !capability.Valid() {
			return nil, configurationError("core: unknown capability in environment", map[string]any{
				"capability": string(capability),
			})
		}
		section(string(capability))["enabled"] = true
	}
	if value := strings.TrimSpace(v.AuthMode); value != "" {
		section(string(CapabilityAuthentication))["mode"] = value
	}
	if v.RefreshBeforeExpires != 0 {
		section(string(CapabilityAuthentication))["refresh_before_expires"] = v.RefreshBeforeExpires
	}
	if v.RESTTimeout != 0 {
		section(string(CapabilityREST))["timeout"] = v.RESTTimeout
	}
	if value := strings.TrimSpace(v.GraphQLPath); value != "" {
		section(string(CapabilityGraphQL))["path"] = value
	}
	if value := strings.TrimSpace(v.RealtimeURL); value != "" {
		section(string(CapabilityRealtime))["url"] = value
	}
	if value := strings.TrimSpace(v.RealtimeAuthMode); value != "" {
		section(string(CapabilityRealtime))["auth_mode"] = value
	}
	if value := strings.TrimSpace(v.StaticToken); value != "" {
		section(string(CapabilityStaticToken))["token"] = value
	}

	if len(sections) > 0 {
		capabilities := make(map[string]any, len(sections))
		for name, values := range sections {
			capabilities[name] = values
		}
		raw["capabilities"] = capabilities
	}
	return raw, nil
}
