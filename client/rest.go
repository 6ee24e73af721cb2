package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/transport"
	goerrors "github.com/goliatone/go-errors"
)

type RESTRequest struct {
	Method string
	// Path is relative to the API URL, for example /items/articles.
	Path    string
	Query   map[string]string
	Headers map[string]string
	// Body is sent as is when it is a []byte and JSON encoded otherwise.
	Body any
}

type RESTClient struct {
	base    *url.URL
	adapter *transport.RESTAdapter
	timeout time.Duration
	token   tokenFunc
}

func newRESTClient(base *url.URL, cfg core.RESTConfig, token tokenFunc, options buildOptions) *RESTClient {
	adapter := transport.NewRESTAdapter(options.httpClient)
	for key, value := range cfg.Headers {
		adapter.DefaultHeaders[key] = value
	}
	if cfg.MaxResponseBodyBytes > 0 {
		adapter.MaxResponseBodyBytes = cfg.MaxResponseBodyBytes
	}
	return &RESTClient{
		base:    base,
		adapter: adapter,
		timeout: cfg.Timeout,
		token:   token,
	}
}

// Request sends req with the resolved bearer token. Non-2xx responses come
// back as errors alongside the response.
func (c *RESTClient) Request(ctx context.Context, req RESTRequest) (transport.Response, error) {
	path := strings.TrimSpace(req.Path)
	if !strings.HasPrefix(path, "/") {
		return transport.Response{}, goerrors.New("client: rest path must start with /", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput).
			WithMetadata(map[string]any{"path": path})
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return transport.Response{}, err
	}
	headers, err := bearerHeaders(ctx, c.token, req.Headers)
	if err != nil {
		return transport.Response{}, err
	}
	return c.adapter.Do(ctx, transport.Request{
		Method:  req.Method,
		URL:     joinPath(c.base, path),
		Query:   req.Query,
		Headers: headers,
		Body:    body,
		Timeout: c.timeout,
	})
}

// ReadItems lists a collection and decodes the data member into target.
func (c *RESTClient) ReadItems(ctx context.Context, collection string, query map[string]string, target any) error {
	collection = strings.TrimSpace(collection)
	if collection == "" || strings.Contains(collection, "/") {
		return goerrors.New("client: collection name is invalid", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput).
			WithMetadata(map[string]any{"collection": collection})
	}
	response, err := c.Request(ctx, RESTRequest{
		Method: http.MethodGet,
		Path:   "/items/" + url.PathEscape(collection),
		Query:  query,
	})
	if err != nil {
		return err
	}
	return transport.DecodeData(response, target)
}

func encodeBody(body any) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return typed, nil
	case json.RawMessage:
		return typed, nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "client: encode request body").
				WithCode(http.StatusBadRequest).
				WithTextCode(core.ErrorBadInput)
		}
		return encoded, nil
	}
}
