package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-directus/core"
)

type stubAuthenticator struct {
	loginFn   func(context.Context, core.LoginRequest) (*core.Credential, error)
	refreshFn func(context.Context) (*core.Credential, error)
	logoutFn  func(context.Context) error
}

func (s stubAuthenticator) Login(ctx context.Context, req core.LoginRequest) (*core.Credential, error) {
	return s.loginFn(ctx, req)
}

func (s stubAuthenticator) Refresh(ctx context.Context) (*core.Credential, error) {
	return s.refreshFn(ctx)
}

func (s stubAuthenticator) Logout(ctx context.Context) error {
	return s.logoutFn(ctx)
}

type stubSetter struct {
	calls []string
	err   error
}

func (s *stubSetter) SetAPIURL(_ context.Context, apiURL string) error {
	s.calls = append(s.calls, apiURL)
	return s.err
}

func TestLoginCommand_StoresCredential(t *testing.T) {
	auth := stubAuthenticator{
		loginFn: func(_ context.Context, req core.LoginRequest) (*core.Credential, error) {
			if req.Email != "admin@example.com" || req.Password != "secret" {
				t.Fatalf("unexpected login request: %#v", req)
			}
			return &core.Credential{AccessToken: "access-1", RefreshToken: "refresh-1"}, nil
		},
	}

	collector := gocmd.NewResult[*core.Credential]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	cmd := NewLoginCommand(StaticAuthenticator(auth))
	err := cmd.Execute(ctx, LoginMessage{Request: core.LoginRequest{
		Email:    "admin@example.com",
		Password: "secret",
	}})
	if err != nil {
		t.Fatalf("execute login: %v", err)
	}

	credential, ok := collector.Load()
	if !ok || credential == nil {
		t.Fatalf("expected stored credential")
	}
	if credential.AccessToken != "access-1" {
		t.Fatalf("unexpected credential: %#v", credential)
	}
}

func TestLoginCommand_ValidatesBeforeResolving(t *testing.T) {
	resolved := false
	source := AuthenticatorSourceFunc(func(context.Context) (core.Authenticator, error) {
		resolved = true
		return nil, errors.New("unexpected")
	})

	err := NewLoginCommand(source).Execute(context.Background(), LoginMessage{})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if resolved {
		t.Fatalf("expected source not to be resolved for invalid input")
	}
}

func TestLoginCommand_PropagatesSourceError(t *testing.T) {
	sourceErr := core.OutsideProviderScopeError()
	source := AuthenticatorSourceFunc(func(context.Context) (core.Authenticator, error) {
		return nil, sourceErr
	})

	err := NewLoginCommand(source).Execute(context.Background(), LoginMessage{Request: core.LoginRequest{
		Email:    "admin@example.com",
		Password: "secret",
	}})
	if !core.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRefreshCommand_StoresCredential(t *testing.T) {
	auth := stubAuthenticator{
		refreshFn: func(context.Context) (*core.Credential, error) {
			return &core.Credential{AccessToken: "access-2"}, nil
		},
	}

	collector := gocmd.NewResult[*core.Credential]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := NewRefreshCommand(StaticAuthenticator(auth)).Execute(ctx, RefreshMessage{}); err != nil {
		t.Fatalf("execute refresh: %v", err)
	}
	credential, ok := collector.Load()
	if !ok || credential.AccessToken != "access-2" {
		t.Fatalf("unexpected refresh result: %#v", credential)
	}
}

func TestRefreshCommand_WithoutCollector(t *testing.T) {
	auth := stubAuthenticator{
		refreshFn: func(context.Context) (*core.Credential, error) {
			return &core.Credential{AccessToken: "access-2"}, nil
		},
	}
	if err := NewRefreshCommand(StaticAuthenticator(auth)).Execute(context.Background(), RefreshMessage{}); err != nil {
		t.Fatalf("execute refresh: %v", err)
	}
}

func TestLogoutCommand_Delegates(t *testing.T) {
	called := false
	auth := stubAuthenticator{
		logoutFn: func(context.Context) error {
			called = true
			return nil
		},
	}
	if err := NewLogoutCommand(StaticAuthenticator(auth)).Execute(context.Background(), LogoutMessage{}); err != nil {
		t.Fatalf("execute logout: %v", err)
	}
	if !called {
		t.Fatalf("expected logout invocation")
	}
}

func TestSetAPIURLCommand(t *testing.T) {
	setter := &stubSetter{}
	cmd := NewSetAPIURLCommand(setter)

	if err := cmd.Execute(context.Background(), SetAPIURLMessage{APIURL: "https://cms.example.com"}); err != nil {
		t.Fatalf("execute set api url: %v", err)
	}
	if len(setter.calls) != 1 || setter.calls[0] != "https://cms.example.com" {
		t.Fatalf("unexpected setter calls: %v", setter.calls)
	}

	for _, raw := range []string{"", "cms.example.com", "ftp://cms.example.com"} {
		if err := cmd.Execute(context.Background(), SetAPIURLMessage{APIURL: raw}); err == nil {
			t.Fatalf("expected validation error for %q", raw)
		}
	}
	if len(setter.calls) != 1 {
		t.Fatalf("expected invalid urls to be rejected before the setter, got %v", setter.calls)
	}
}

func TestStaticAuthenticator_NilAuthenticator(t *testing.T) {
	if _, err := StaticAuthenticator(nil).Authenticator(context.Background()); err == nil {
		t.Fatalf("expected dependency error")
	}
}
