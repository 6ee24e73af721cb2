package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-directus/core"
)

// AuthenticatorSource resolves the authenticator for the provider scope
// carried by ctx.
type AuthenticatorSource interface {
	Authenticator(ctx context.Context) (core.Authenticator, error)
}

type AuthenticatorSourceFunc func(ctx context.Context) (core.Authenticator, error)

func (fn AuthenticatorSourceFunc) Authenticator(ctx context.Context) (core.Authenticator, error) {
	return fn(ctx)
}

// StaticAuthenticator serves the same authenticator regardless of scope.
func StaticAuthenticator(auth core.Authenticator) AuthenticatorSource {
	return AuthenticatorSourceFunc(func(context.Context) (core.Authenticator, error) {
		if auth == nil {
			return nil, commandDependencyError("command: authenticator is required")
		}
		return auth, nil
	})
}

type APIURLSetter interface {
	SetAPIURL(ctx context.Context, apiURL string) error
}

type LoginCommand struct {
	source AuthenticatorSource
}

func NewLoginCommand(source AuthenticatorSource) *LoginCommand {
	return &LoginCommand{source: source}
}

func (c *LoginCommand) Execute(ctx context.Context, msg LoginMessage) error {
	if c == nil || c.source == nil {
		return commandDependencyError("command: login authenticator source is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	auth, err := c.source.Authenticator(ctx)
	if err != nil {
		return err
	}
	credential, err := auth.Login(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, credential)
	return nil
}

type RefreshCommand struct {
	source AuthenticatorSource
}

func NewRefreshCommand(source AuthenticatorSource) *RefreshCommand {
	return &RefreshCommand{source: source}
}

func (c *RefreshCommand) Execute(ctx context.Context, _ RefreshMessage) error {
	if c == nil || c.source == nil {
		return commandDependencyError("command: refresh authenticator source is required")
	}
	auth, err := c.source.Authenticator(ctx)
	if err != nil {
		return err
	}
	credential, err := auth.Refresh(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, credential)
	return nil
}

type LogoutCommand struct {
	source AuthenticatorSource
}

func NewLogoutCommand(source AuthenticatorSource) *LogoutCommand {
	return &LogoutCommand{source: source}
}

func (c *LogoutCommand) Execute(ctx context.Context, _ LogoutMessage) error {
	if c == nil || c.source == nil {
		return commandDependencyError("command: logout authenticator source is required")
	}
	auth, err := c.source.Authenticator(ctx)
	if err != nil {
		return err
	}
	return auth.Logout(ctx)
}

type SetAPIURLCommand struct {
	setter APIURLSetter
}

func NewSetAPIURLCommand(setter APIURLSetter) *SetAPIURLCommand {
	return &SetAPIURLCommand{setter: setter}
}

func (c *SetAPIURLCommand) Execute(ctx context.Context, msg SetAPIURLMessage) error {
	if c == nil || c.setter == nil {
		return commandDependencyError("command: api url setter is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.setter.SetAPIURL(ctx, msg.APIURL)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
