package query

const (
	TypeAuthState      = "directus.query.auth_state"
	TypeProviderStatus = "directus.query.provider_status"
)

type AuthStateMessage struct{}

func (AuthStateMessage) Type() string { return TypeAuthState }

func (AuthStateMessage) Validate() error { return nil }

type ProviderStatusMessage struct{}

func (ProviderStatusMessage) Type() string { return TypeProviderStatus }

func (ProviderStatusMessage) Validate() error { return nil }
