package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const KindGraphQL = "graphql"

type GraphQLRequest struct {
	Query         string
	OperationName string
	Variables     map[string]any
	Headers       map[string]string
	Timeout       time.Duration
}

type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type GraphQLResponse struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLAdapter posts documents to a single GraphQL endpoint. Documents are
// parsed locally first so malformed queries never reach the server.
type GraphQLAdapter struct {
	Endpoint string
	REST     *RESTAdapter
}

func NewGraphQLAdapter(endpoint string, client HTTPDoer) *GraphQLAdapter {
	return &GraphQLAdapter{
		Endpoint: strings.TrimSpace(endpoint),
		REST:     NewRESTAdapter(client),
	}
}

func (*GraphQLAdapter) Kind() string {
	return KindGraphQL
}

// Do satisfies Adapter. The request body must be a JSON GraphQL payload.
func (a *GraphQLAdapter) Do(ctx context.Context, req Request) (Response, error) {
	payload := struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}{}
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: graphql body must be a json payload",
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	return a.post(ctx, GraphQLRequest{
		Query:         payload.Query,
		OperationName: payload.OperationName,
		Variables:     payload.Variables,
		Headers:       req.Headers,
		Timeout:       req.Timeout,
	})
}

// Execute validates and sends req, then decodes the GraphQL envelope. A
// response carrying errors and no data is returned as an error.
func (a *GraphQLAdapter) Execute(ctx context.Context, req GraphQLRequest) (GraphQLResponse, error) {
	response, err := a.post(ctx, req)
	if err != nil {
		return GraphQLResponse{}, err
	}
	decoded := GraphQLResponse{}
	if err := json.Unmarshal(response.Body, &decoded); err != nil {
		return GraphQLResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode graphql response",
			http.StatusBadGateway,
			map[string]any{"adapter": KindGraphQL, "endpoint": a.Endpoint},
		)
	}
	if len(decoded.Errors) > 0 && (len(decoded.Data) == 0 || string(decoded.Data) == "null") {
		return decoded, graphQLResponseError(decoded.Errors)
	}
	return decoded, nil
}

func (a *GraphQLAdapter) post(ctx context.Context, req GraphQLRequest) (Response, error) {
	if a == nil || a.REST == nil {
		return Response{}, transportError(
			"transport: graphql adapter requires a rest adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	if a.Endpoint == "" {
		return Response{}, transportError(
			"transport: graphql endpoint is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	operation, err := ValidateGraphQLDocument(req.Query, req.OperationName)
	if err != nil {
		return Response{}, err
	}

	payload := map[string]any{"query": req.Query}
	if name := strings.TrimSpace(req.OperationName); name != "" {
		payload["operationName"] = name
	}
	if len(req.Variables) > 0 {
		payload["variables"] = req.Variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: marshal graphql payload",
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL, "endpoint": a.Endpoint},
		)
	}

	response, err := a.REST.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     a.Endpoint,
		Headers: req.Headers,
		Body:    body,
		Timeout: req.Timeout,
	})
	if err != nil {
		return Response{}, err
	}
	response.Metadata = ensureMetadata(response.Metadata)
	response.Metadata["kind"] = KindGraphQL
	response.Metadata["operation"] = string(operation.Operation)
	return response, nil
}

// ValidateGraphQLDocument parses query and resolves the operation to run.
// Subscriptions are rejected because they travel over the realtime channel.
func ValidateGraphQLDocument(query string, operationName string) (*ast.OperationDefinition, error) {
	if strings.TrimSpace(query) == "" {
		return nil, transportError(
			"transport: graphql query is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	doc, parseErr := parser.ParseQuery(&ast.Source{Input: query})
	if parseErr != nil {
		return nil, transportWrapError(
			parseErr,
			goerrors.CategoryBadInput,
			"transport: graphql query does not parse",
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	operation := doc.Operations.ForName(strings.TrimSpace(operationName))
	if operation == nil {
		return nil, transportError(
			"transport: graphql operation could not be selected",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{
				"adapter":         KindGraphQL,
				"operation_name":  strings.TrimSpace(operationName),
				"operation_count": len(doc.Operations),
			},
		)
	}
	if operation.Operation == ast.Subscription {
		return nil, transportError(
			"transport: graphql subscriptions require the realtime capability",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	return operation, nil
}

func graphQLResponseError(errs []GraphQLError) error {
	first := errs[0]
	metadata := map[string]any{"adapter": KindGraphQL, "error_count": len(errs)}
	category := goerrors.CategoryExternal
	status := http.StatusBadGateway
	if code, _ := first.Extensions["code"].(string); code != "" {
		metadata["directus_code"] = code
		switch code {
		case "INVALID_CREDENTIALS", "TOKEN_EXPIRED", "INVALID_TOKEN":
			category, status = goerrors.CategoryAuth, http.StatusUnauthorized
		case "FORBIDDEN":
			category, status = goerrors.CategoryAuthz, http.StatusForbidden
		case "INVALID_PAYLOAD", "INVALID_QUERY", "GRAPHQL_VALIDATION", "GRAPHQL_VALIDATION_EXCEPTION":
			category, status = goerrors.CategoryBadInput, http.StatusBadRequest
		}
	}
	return transportError("transport: "+strings.TrimSpace(first.Message), category, status, metadata)
}

var _ Adapter = (*GraphQLAdapter)(nil)
