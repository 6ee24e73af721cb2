package client

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-directus/core"
)

// Client is a base client bound to one API URL plus the capability modules
// attached at build time.
type Client struct {
	url          *url.URL
	capabilities core.CapabilitySet
	auth         *AuthenticationClient
	rest         *RESTClient
	graphql      *GraphQLClient
	realtime     *RealtimeClient
	staticToken  *StaticTokenClient
	logger       core.Logger
	closeOnce    sync.Once
	closeErr     error
}

// Build validates apiURL and caps and attaches modules in capability order.
// authStorage is the credential sink of the authentication module and is
// required only when that capability is enabled. Every call returns a new,
// independent client.
func Build(apiURL string, caps core.CapabilityConfig, authStorage core.CredentialStore, opts ...Option) (*Client, error) {
	base, err := core.ParseAPIURL(apiURL)
	if err != nil {
		return nil, err
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if caps.Authentication.Enabled && authStorage == nil {
		return nil, core.NewConfigurationError(
			"client: authentication capability requires a credential store",
			core.ErrorConfigurationInvalid,
			map[string]any{"capability": string(core.CapabilityAuthentication)},
		)
	}
	options := resolveBuildOptions(opts)

	c := &Client{
		url:          base,
		capabilities: caps.Set(),
		logger:       options.logger,
	}
	for _, capability := range c.capabilities.List() {
		switch capability {
		case core.CapabilityAuthentication:
			c.auth = newAuthenticationClient(base, caps.Authentication, authStorage, options)
		case core.CapabilityREST:
			c.rest = newRESTClient(base, caps.REST, c.token, options)
		case core.CapabilityGraphQL:
			c.graphql = newGraphQLClient(base, caps.GraphQL, c.token, options)
		case core.CapabilityRealtime:
			c.realtime = newRealtimeClient(base, caps.Realtime, c.token, options)
		case core.CapabilityStaticToken:
			c.staticToken = newStaticTokenClient(caps.StaticToken.Token)
		}
	}

	core.RecordCounter(context.Background(), options.metrics, core.MetricClientBuilds, map[string]string{
		"capabilities": c.capabilities.String(),
	})
	core.LogEvent(context.Background(), options.logger, "debug", "directus client built", map[string]any{
		"api_url":      base.String(),
		"capabilities": c.capabilities.String(),
	})
	return c, nil
}

func (c *Client) URL() string {
	if c == nil || c.url == nil {
		return ""
	}
	return c.url.String()
}

// Capabilities is the descriptor fixed at build time.
func (c *Client) Capabilities() core.CapabilitySet {
	if c == nil {
		return 0
	}
	return c.capabilities
}

func (c *Client) Has(capability core.Capability) bool {
	return c.Capabilities().Has(capability)
}

func (c *Client) Authentication() (*AuthenticationClient, error) {
	if c == nil || c.auth == nil {
		return nil, core.CapabilityNotConfiguredError(core.CapabilityAuthentication)
	}
	return c.auth, nil
}

func (c *Client) REST() (*RESTClient, error) {
	if c == nil || c.rest == nil {
		return nil, core.CapabilityNotConfiguredError(core.CapabilityREST)
	}
	return c.rest, nil
}

func (c *Client) GraphQL() (*GraphQLClient, error) {
	if c == nil || c.graphql == nil {
		return nil, core.CapabilityNotConfiguredError(core.CapabilityGraphQL)
	}
	return c.graphql, nil
}

func (c *Client) Realtime() (*RealtimeClient, error) {
	if c == nil || c.realtime == nil {
		return nil, core.CapabilityNotConfiguredError(core.CapabilityRealtime)
	}
	return c.realtime, nil
}

func (c *Client) StaticToken() (*StaticTokenClient, error) {
	if c == nil || c.staticToken == nil {
		return nil, core.CapabilityNotConfiguredError(core.CapabilityStaticToken)
	}
	return c.staticToken, nil
}

// Token resolves the bearer token for outgoing requests: the static token
// when attached, otherwise the authentication module's access token. An
// empty string means requests go out anonymously.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.token(ctx)
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c == nil {
		return "", nil
	}
	if c.staticToken != nil {
		if token := c.staticToken.Token(); token != "" {
			return token, nil
		}
	}
	if c.auth != nil {
		return c.auth.GetToken(ctx)
	}
	return "", nil
}

// Close releases module resources such as an open realtime connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.realtime != nil {
			c.closeErr = c.realtime.Close()
		}
	})
	return c.closeErr
}

type tokenFunc func(ctx context.Context) (string, error)

func joinPath(base *url.URL, path string) string {
	joined := *base
	joined.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return joined.String()
}

func bearerHeaders(ctx context.Context, token tokenFunc, extra map[string]string) (map[string]string, error) {
	headers := make(map[string]string, len(extra)+1)
	for key, value := range extra {
		headers[key] = value
	}
	if token == nil {
		return headers, nil
	}
	value, err := token(ctx)
	if err != nil {
		return nil, err
	}
	if value = strings.TrimSpace(value); value != "" {
		headers["Authorization"] = "Bearer " + value
	}
	return headers, nil
}
