package core

import (
	"strings"
	"time"
)

type Capability string

const (
	CapabilityAuthentication Capability = "authentication"
	CapabilityREST           Capability = "rest"
	CapabilityGraphQL        Capability = "graphql"
	CapabilityRealtime       Capability = "realtime"
	CapabilityStaticToken    Capability = "static_token"
)

// capabilityOrder is the attachment order. Authentication goes first because
// the remaining modules resolve tokens through it.
var capabilityOrder = []Capability{
	CapabilityAuthentication,
	CapabilityREST,
	CapabilityGraphQL,
	CapabilityRealtime,
	CapabilityStaticToken,
}

func CapabilityOrder() []Capability {
	return append([]Capability(nil), capabilityOrder...)
}

func (c Capability) Valid() bool {
	return capabilityBit(c) != 0
}

// CapabilitySet is the descriptor of attached capability modules, fixed when a
// client is built.
type CapabilitySet uint8

func NewCapabilitySet(capabilities ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, capability := range capabilities {
		set = set.With(capability)
	}
	return set
}

func (s CapabilitySet) With(capability Capability) CapabilitySet {
	return s | capabilityBit(capability)
}

func (s CapabilitySet) Has(capability Capability) bool {
	bit := capabilityBit(capability)
	return bit != 0 && s&bit == bit
}

func (s CapabilitySet) Empty() bool {
	return s == 0
}

// List returns attached capabilities in attachment order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(capabilityOrder))
	for _, capability := range capabilityOrder {
		if s.Has(capability) {
			out = append(out, capability)
		}
	}
	return out
}

func (s CapabilitySet) String() string {
	list := s.List()
	if len(list) == 0 {
		return "none"
	}
	names := make([]string, 0, len(list))
	for _, capability := range list {
		names = append(names, string(capability))
	}
	return strings.Join(names, ",")
}

func capabilityBit(capability Capability) CapabilitySet {
	for i, known := range capabilityOrder {
		if known == capability {
			return 1 << uint(i)
		}
	}
	return 0
}

type AuthenticationMode string

const (
	AuthenticationModeJSON    AuthenticationMode = "json"
	AuthenticationModeCookie  AuthenticationMode = "cookie"
	AuthenticationModeSession AuthenticationMode = "session"
)

const (
	DefaultAuthenticationMode   = AuthenticationModeJSON
	DefaultRefreshBeforeExpires = 30 * time.Second
	DefaultGraphQLPath          = "/graphql"
	DefaultGraphQLSystemPath    = "/graphql/system"
	DefaultRealtimePath         = "/websocket"
	DefaultRealtimeAuthMode     = RealtimeAuthHandshake
)

func (m AuthenticationMode) Valid() bool {
	switch m {
	case AuthenticationModeJSON, AuthenticationModeCookie, AuthenticationModeSession:
		return true
	default:
		return false
	}
}

type RealtimeAuthMode string

const (
	RealtimeAuthHandshake RealtimeAuthMode = "handshake"
	RealtimeAuthPublic    RealtimeAuthMode = "public"
	RealtimeAuthStrict    RealtimeAuthMode = "strict"
)

func (m RealtimeAuthMode) Valid() bool {
	switch m {
	case RealtimeAuthHandshake, RealtimeAuthPublic, RealtimeAuthStrict:
		return true
	default:
		return false
	}
}

type AuthenticationConfig struct {
	Enabled              bool               `koanf:"enabled" mapstructure:"enabled"`
	Mode                 AuthenticationMode `koanf:"mode" mapstructure:"mode"`
	AutoRefresh          *bool              `koanf:"auto_refresh" mapstructure:"auto_refresh"`
	RefreshBeforeExpires time.Duration      `koanf:"refresh_before_expires" mapstructure:"refresh_before_expires"`
	// Storage replaces the provider's default credential store when set.
	Storage CredentialStore `koanf:"-" mapstructure:"-"`
}

func (c AuthenticationConfig) AutoRefreshEnabled() bool {
	return c.AutoRefresh == nil || *c.AutoRefresh
}

func (c AuthenticationConfig) WithDefaults() AuthenticationConfig {
	if strings.TrimSpace(string(c.Mode)) == "" {
		c.Mode = DefaultAuthenticationMode
	}
	if c.RefreshBeforeExpires == 0 {
		c.RefreshBeforeExpires = DefaultRefreshBeforeExpires
	}
	return c
}

type RESTConfig struct {
	Enabled              bool              `koanf:"enabled" mapstructure:"enabled"`
	Timeout              time.Duration     `koanf:"timeout" mapstructure:"timeout"`
	Headers              map[string]string `koanf:"headers" mapstructure:"headers"`
	MaxResponseBodyBytes int64             `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
}

type GraphQLConfig struct {
	Enabled    bool          `koanf:"enabled" mapstructure:"enabled"`
	Path       string        `koanf:"path" mapstructure:"path"`
	SystemPath string        `koanf:"system_path" mapstructure:"system_path"`
	Timeout    time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

func (c GraphQLConfig) WithDefaults() GraphQLConfig {
	if strings.TrimSpace(c.Path) == "" {
		c.Path = DefaultGraphQLPath
	}
	if strings.TrimSpace(c.SystemPath) == "" {
		c.SystemPath = DefaultGraphQLSystemPath
	}
	return c
}

type RealtimeConfig struct {
	Enabled bool `koanf:"enabled" mapstructure:"enabled"`
	// URL overrides the websocket endpoint derived from the API URL.
	URL              string           `koanf:"url" mapstructure:"url"`
	AuthMode         RealtimeAuthMode `koanf:"auth_mode" mapstructure:"auth_mode"`
	HandshakeTimeout time.Duration    `koanf:"handshake_timeout" mapstructure:"handshake_timeout"`
}

func (c RealtimeConfig) WithDefaults() RealtimeConfig {
	if strings.TrimSpace(string(c.AuthMode)) == "" {
		c.AuthMode = DefaultRealtimeAuthMode
	}
	return c
}

type StaticTokenConfig struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled"`
	Token   string `koanf:"token" mapstructure:"token"`
}

// CapabilityConfig selects the modules attached to a client. A disabled section
// is absent; an enabled section with zero fields uses module defaults.
type CapabilityConfig struct {
	Authentication AuthenticationConfig `koanf:"authentication" mapstructure:"authentication"`
	REST           RESTConfig           `koanf:"rest" mapstructure:"rest"`
	GraphQL        GraphQLConfig        `koanf:"graphql" mapstructure:"graphql"`
	Realtime       RealtimeConfig       `koanf:"realtime" mapstructure:"realtime"`
	StaticToken    StaticTokenConfig    `koanf:"static_token" mapstructure:"static_token"`
}

func (c CapabilityConfig) Set() CapabilitySet {
	var set CapabilitySet
	if c.Authentication.Enabled {
		set = set.With(CapabilityAuthentication)
	}
	if c.REST.Enabled {
		set = set.With(CapabilityREST)
	}
	if c.GraphQL.Enabled {
		set = set.With(CapabilityGraphQL)
	}
	if c.Realtime.Enabled {
		set = set.With(CapabilityRealtime)
	}
	if c.StaticToken.Enabled {
		set = set.With(CapabilityStaticToken)
	}
	return set
}

// Enable returns a copy with the given capabilities switched on, leaving any
// overrides already present untouched.
func (c CapabilityConfig) Enable(capabilities ...Capability) CapabilityConfig {
	for _, capability := range capabilities {
		switch capability {
		case CapabilityAuthentication:
			c.Authentication.Enabled = true
		case CapabilityREST:
			c.REST.Enabled = true
		case CapabilityGraphQL:
			c.GraphQL.Enabled = true
		case CapabilityRealtime:
			c.Realtime.Enabled = true
		case CapabilityStaticToken:
			c.StaticToken.Enabled = true
		}
	}
	return c
}

func (c CapabilityConfig) Validate() error {
	if c.Authentication.Enabled {
		mode := c.Authentication.Mode
		if strings.TrimSpace(string(mode)) != "" && !mode.Valid() {
			return configurationError("core: unsupported authentication mode", map[string]any{
				"capability": CapabilityAuthentication,
				"mode":       string(mode),
			})
		}
		if c.Authentication.RefreshBeforeExpires < 0 {
			return configurationError("core: refresh_before_expires must not be negative", map[string]any{
				"capability": CapabilityAuthentication,
			})
		}
	}
	if c.REST.Enabled {
		if c.REST.Timeout < 0 || c.REST.MaxResponseBodyBytes < 0 {
			return configurationError("core: rest timeout and body limit must not be negative", map[string]any{
				"capability": CapabilityREST,
			})
		}
	}
	if c.GraphQL.Enabled {
		for _, path := range []string{c.GraphQL.Path, c.GraphQL.SystemPath} {
			if trimmed := strings.TrimSpace(path); trimmed != "" && !strings.HasPrefix(trimmed, "/") {
				return configurationError("core: graphql paths must start with /", map[string]any{
					"capability": CapabilityGraphQL,
					"path":       trimmed,
				})
			}
		}
		if c.GraphQL.Timeout < 0 {
			return configurationError("core: graphql timeout must not be negative", map[string]any{
				"capability": CapabilityGraphQL,
			})
		}
	}
	if c.Realtime.Enabled {
		mode := c.Realtime.AuthMode
		if strings.TrimSpace(string(mode)) != "" && !mode.Valid() {
			return configurationError("core: unsupported realtime auth mode", map[string]any{
				"capability": CapabilityRealtime,
				"auth_mode":  string(mode),
			})
		}
		if raw := strings.TrimSpace(c.Realtime.URL); raw != "" {
			if _, err := parseEndpoint(raw, "ws", "wss"); err != nil {
				return configurationError("core: realtime url is invalid", map[string]any{
					"capability": CapabilityRealtime,
					"url":        raw,
					"reason":     err.Error(),
				})
			}
		}
	}
	if c.StaticToken.Enabled && strings.TrimSpace(c.StaticToken.Token) == "" {
		return configurationError("core: static token capability requires a token", map[string]any{
			"capability": CapabilityStaticToken,
		})
	}
	return nil
}
