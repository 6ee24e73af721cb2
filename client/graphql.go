package client

import (
	"context"
	"net/url"
	"time"

	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/transport"
)

// GraphQLClient queries the items endpoint and the system endpoint.
type GraphQLClient struct {
	items   *transport.GraphQLAdapter
	system  *transport.GraphQLAdapter
	timeout time.Duration
	token   tokenFunc
}

func newGraphQLClient(base *url.URL, cfg core.GraphQLConfig, token tokenFunc, options buildOptions) *GraphQLClient {
	cfg = cfg.WithDefaults()
	return &GraphQLClient{
		items:   transport.NewGraphQLAdapter(joinPath(base, cfg.Path), options.httpClient),
		system:  transport.NewGraphQLAdapter(joinPath(base, cfg.SystemPath), options.httpClient),
		timeout: cfg.Timeout,
		token:   token,
	}
}

func (c *GraphQLClient) Endpoint() string {
	return c.items.Endpoint
}

func (c *GraphQLClient) SystemEndpoint() string {
	return c.system.Endpoint
}

func (c *GraphQLClient) Query(ctx context.Context, query string, variables map[string]any) (transport.GraphQLResponse, error) {
	return c.execute(ctx, c.items, query, variables)
}

// QuerySystem targets system collections such as users and roles.
func (c *GraphQLClient) QuerySystem(ctx context.Context, query string, variables map[string]any) (transport.GraphQLResponse, error) {
	return c.execute(ctx, c.system, query, variables)
}

func (c *GraphQLClient) execute(ctx context.Context, adapter *transport.GraphQLAdapter, query string, variables map[string]any) (transport.GraphQLResponse, error) {
	headers, err := bearerHeaders(ctx, c.token, nil)
	if err != nil {
		return transport.GraphQLResponse{}, err
	}
	return adapter.Execute(ctx, transport.GraphQLRequest{
		Query:     query,
		Variables: variables,
		Headers:   headers,
		Timeout:   c.timeout,
	})
}
