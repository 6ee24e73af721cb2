package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestValidateGraphQLDocument(t *testing.T) {
	op, err := ValidateGraphQLDocument(`query Articles { articles { id } }`, "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if op.Name != "Articles" {
		t.Fatalf("unexpected operation %q", op.Name)
	}

	multi := `query A { a } mutation B { b }`
	if _, err := ValidateGraphQLDocument(multi, ""); err == nil {
		t.Fatalf("expected ambiguous document to fail without operation name")
	}
	op, err = ValidateGraphQLDocument(multi, "B")
	if err != nil || op.Name != "B" {
		t.Fatalf("expected operation B, got %v %v", op, err)
	}

	for _, query := range []string{"", "query {", "subscription S { articles_mutated { key } }"} {
		_, err := ValidateGraphQLDocument(query, "")
		if err == nil {
			t.Fatalf("expected %q to fail", query)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryBadInput {
			t.Fatalf("expected bad input for %q, got %v", query, err)
		}
	}
}

func TestGraphQLAdapter_ExecuteSendsPayload(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"data":{"articles":[{"id":"1"}]}}`))
	}))
	defer server.Close()

	adapter := NewGraphQLAdapter(server.URL+"/graphql", server.Client())
	response, err := adapter.Execute(context.Background(), GraphQLRequest{
		Query:     `query Articles($limit: Int) { articles(limit: $limit) { id } }`,
		Variables: map[string]any{"limit": 1},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if received["query"] == nil {
		t.Fatalf("expected query in payload")
	}
	variables, _ := received["variables"].(map[string]any)
	if variables["limit"] != float64(1) {
		t.Fatalf("unexpected variables %#v", received["variables"])
	}
	var data struct {
		Articles []struct {
			ID string `json:"id"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Articles) != 1 || data.Articles[0].ID != "1" {
		t.Fatalf("unexpected data %s", response.Data)
	}
}

func TestGraphQLAdapter_InvalidQueryNeverSent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	adapter := NewGraphQLAdapter(server.URL, server.Client())
	if _, err := adapter.Execute(context.Background(), GraphQLRequest{Query: "{ broken"}); err == nil {
		t.Fatalf("expected parse error")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected invalid query to stay local")
	}
}

func TestGraphQLAdapter_ErrorsWithoutData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"You don't have permission to access this.","extensions":{"code":"FORBIDDEN"}}]}`))
	}))
	defer server.Close()

	response, err := NewGraphQLAdapter(server.URL, server.Client()).Execute(context.Background(), GraphQLRequest{Query: "{ secrets { id } }"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(response.Errors) != 1 {
		t.Fatalf("expected decoded errors on response")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryAuthz {
		t.Fatalf("expected authz category, got %v", err)
	}
	if DirectusCode(err) != "FORBIDDEN" {
		t.Fatalf("expected directus code")
	}
}

func TestGraphQLAdapter_PartialDataIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"a":1},"errors":[{"message":"field b failed"}]}`))
	}))
	defer server.Close()

	response, err := NewGraphQLAdapter(server.URL, server.Client()).Execute(context.Background(), GraphQLRequest{Query: "{ a b }"})
	if err != nil {
		t.Fatalf("expected partial response without error, got %v", err)
	}
	if len(response.Errors) != 1 || string(response.Data) != `{"a":1}` {
		t.Fatalf("unexpected response %#v", response)
	}
}

func TestGraphQLAdapter_DoDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	adapter := NewGraphQLAdapter(server.URL, server.Client())
	response, err := adapter.Do(context.Background(), Request{Body: []byte(`{"query":"{ ok }"}`)})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if response.Metadata["operation"] != "query" {
		t.Fatalf("expected operation metadata, got %#v", response.Metadata)
	}
	if _, err := adapter.Do(context.Background(), Request{Body: []byte("{ ok }")}); err == nil {
		t.Fatalf("expected non-json body to fail")
	}
}
