package command

import (
	"net/url"
	"strings"

	"github.com/goliatone/go-directus/core"
)

const (
	TypeLogin     = "directus.command.auth.login"
	TypeRefresh   = "directus.command.auth.refresh"
	TypeLogout    = "directus.command.auth.logout"
	TypeSetAPIURL = "directus.command.provider.set_api_url"
)

type LoginMessage struct {
	Request core.LoginRequest
}

func (LoginMessage) Type() string { return TypeLogin }

func (m LoginMessage) Validate() error {
	if strings.TrimSpace(m.Request.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	if m.Request.Password == "" {
		return commandValidationError("password", "password is required")
	}
	if mode := m.Request.Mode; mode != "" && !mode.Valid() {
		return commandValidationError("mode", "unsupported authentication mode")
	}
	return nil
}

type RefreshMessage struct{}

func (RefreshMessage) Type() string { return TypeRefresh }

func (RefreshMessage) Validate() error { return nil }

type LogoutMessage struct{}

func (LogoutMessage) Type() string { return TypeLogout }

func (LogoutMessage) Validate() error { return nil }

// SetAPIURLMessage swaps the client of the mounted provider for one bound to
// APIURL.
type SetAPIURLMessage struct {
	APIURL string
}

func (SetAPIURLMessage) Type() string { return TypeSetAPIURL }

func (m SetAPIURLMessage) Validate() error {
	raw := strings.TrimSpace(m.APIURL)
	if raw == "" {
		return commandValidationError("api_url", "api url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return commandValidationError("api_url", "api url must be an absolute http(s) url")
	}
	return nil
}
