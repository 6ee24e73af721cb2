package core

import (
	"fmt"
	"net/url"
	"strings"
)

type Config struct {
	APIURL       string           `koanf:"api_url" mapstructure:"api_url"`
	AutoLogin    bool             `koanf:"auto_login" mapstructure:"auto_login"`
	Capabilities CapabilityConfig `koanf:"capabilities" mapstructure:"capabilities"`
}

func DefaultConfig() Config {
	return Config{
		Capabilities: CapabilityConfig{
			Authentication: AuthenticationConfig{
				Mode:                 DefaultAuthenticationMode,
				RefreshBeforeExpires: DefaultRefreshBeforeExpires,
			},
			GraphQL: GraphQLConfig{
				Path:       DefaultGraphQLPath,
				SystemPath: DefaultGraphQLSystemPath,
			},
			Realtime: RealtimeConfig{
				AuthMode: DefaultRealtimeAuthMode,
			},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return configurationError("core: api_url is required", nil)
	}
	if _, err := ParseAPIURL(c.APIURL); err != nil {
		return err
	}
	return c.Capabilities.Validate()
}

// ParseAPIURL validates a Directus endpoint. Only absolute http(s) URLs are
// accepted; a trailing slash is dropped.
func ParseAPIURL(raw string) (*url.URL, error) {
	parsed, err := parseEndpoint(raw, "http", "https")
	if err != nil {
		return nil, configurationError("core: api_url is invalid", map[string]any{
			"api_url": strings.TrimSpace(raw),
			"reason":  err.Error(),
		})
	}
	return parsed, nil
}

func parseEndpoint(raw string, schemes ...string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("endpoint is empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(parsed.Scheme)
	allowed := false
	for _, candidate := range schemes {
		if scheme == candidate {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("scheme %q is not one of %s", parsed.Scheme, strings.Join(schemes, ", "))
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	parsed.Scheme = scheme
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}
