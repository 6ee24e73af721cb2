package directus

import (
	"github.com/goliatone/go-directus/adapters/gocommand"
	directuscommand "github.com/goliatone/go-directus/command"
	"github.com/goliatone/go-directus/core"
	directusquery "github.com/goliatone/go-directus/query"
)

// CommandQuerySource is everything the facade needs from a provider scope.
// *provider.Factory satisfies it.
type CommandQuerySource interface {
	directuscommand.AuthenticatorSource
	directuscommand.APIURLSetter
	directusquery.AuthStateReader
	directusquery.ProviderStatusReader
}

type Commands struct {
	Login     *directuscommand.LoginCommand
	Refresh   *directuscommand.RefreshCommand
	Logout    *directuscommand.LogoutCommand
	SetAPIURL *directuscommand.SetAPIURLCommand
}

type Queries struct {
	AuthState      *directusquery.AuthStateQuery
	ProviderStatus *directusquery.ProviderStatusQuery
}

type Facade struct {
	source   CommandQuerySource
	commands Commands
	queries  Queries
}

func NewFacade(source CommandQuerySource) (*Facade, error) {
	if source == nil {
		return nil, core.NewConfigurationError("directus: command/query source is required", core.ErrorConfigurationInvalid, nil)
	}
	facade := &Facade{source: source}
	facade.commands = Commands{
		Login:     directuscommand.NewLoginCommand(source),
		Refresh:   directuscommand.NewRefreshCommand(source),
		Logout:    directuscommand.NewLogoutCommand(source),
		SetAPIURL: directuscommand.NewSetAPIURLCommand(source),
	}
	facade.queries = Queries{
		AuthState:      directusquery.NewAuthStateQuery(source),
		ProviderStatus: directusquery.NewProviderStatusQuery(source),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Source() CommandQuerySource {
	if f == nil {
		return nil
	}
	return f.source
}

// Facade builds the command/query facade over the runtime factory.
func (r *Runtime) Facade() (*Facade, error) {
	if r == nil || r.Factory == nil {
		return nil, core.NewConfigurationError("directus: runtime is not configured", core.ErrorConfigurationInvalid, nil)
	}
	return NewFacade(r.Factory)
}

// Register subscribes every facade handler through registrar, making the
// directus messages dispatchable with gocommand.Dispatch and gocommand.Query.
func (f *Facade) Register(registrar *gocommand.Registrar) error {
	if f == nil {
		return core.NewConfigurationError("directus: facade is required", core.ErrorConfigurationInvalid, nil)
	}
	if err := gocommand.RegisterCommand[directuscommand.LoginMessage](registrar, f.commands.Login); err != nil {
		return err
	}
	if err := gocommand.RegisterCommand[directuscommand.RefreshMessage](registrar, f.commands.Refresh); err != nil {
		return err
	}
	if err := gocommand.RegisterCommand[directuscommand.LogoutMessage](registrar, f.commands.Logout); err != nil {
		return err
	}
	if err := gocommand.RegisterCommand[directuscommand.SetAPIURLMessage](registrar, f.commands.SetAPIURL); err != nil {
		return err
	}
	if err := gocommand.RegisterQuery[directusquery.AuthStateMessage, core.AuthState](registrar, f.queries.AuthState); err != nil {
		return err
	}
	return gocommand.RegisterQuery[directusquery.ProviderStatusMessage, core.ProviderStatus](registrar, f.queries.ProviderStatus)
}
