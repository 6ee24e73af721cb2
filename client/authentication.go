package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/transport"
	goerrors "github.com/goliatone/go-errors"
)

const (
	pathAuthLogin   = "/auth/login"
	pathAuthRefresh = "/auth/refresh"
	pathAuthLogout  = "/auth/logout"

	refreshTokenCookie = "directus_refresh_token"
	sessionTokenCookie = "directus_session_token"
)

type LoginOptions struct {
	OTP string
	// Mode overrides the configured authentication mode for this login. The
	// credential remembers it, so refresh and logout use it too.
	Mode core.AuthenticationMode
}

// AuthenticationClient talks to the /auth endpoints and writes every
// credential it obtains through the configured store. Writes are serialized.
type AuthenticationClient struct {
	base    *url.URL
	rest    *transport.RESTAdapter
	storage core.CredentialStore
	config  core.AuthenticationConfig
	now     func() time.Time
	logger  core.Logger
	writeMu sync.Mutex
}

func newAuthenticationClient(base *url.URL, cfg core.AuthenticationConfig, storage core.CredentialStore, options buildOptions) *AuthenticationClient {
	return &AuthenticationClient{
		base:    base,
		rest:    transport.NewRESTAdapter(options.httpClient),
		storage: storage,
		config:  cfg.WithDefaults(),
		now:     options.now,
		logger:  options.logger,
	}
}

func (a *AuthenticationClient) Mode() core.AuthenticationMode {
	return a.config.Mode
}

// Storage is the credential sink this module writes to.
func (a *AuthenticationClient) Storage() core.CredentialStore {
	return a.storage
}

type authResponseData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expires      int64  `json:"expires"`
}

func (a *AuthenticationClient) Login(ctx context.Context, email string, password string, opts LoginOptions) (*core.Credential, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, goerrors.NewValidation("client: email and password are required",
			goerrors.FieldError{Field: "email", Message: "required"},
			goerrors.FieldError{Field: "password", Message: "required"},
		).WithCode(http.StatusBadRequest).WithTextCode(core.ErrorBadInput)
	}
	mode := a.resolveMode(opts.Mode)
	payload := map[string]any{
		"email":    email,
		"password": password,
		"mode":     string(mode),
	}
	if otp := strings.TrimSpace(opts.OTP); otp != "" {
		payload["otp"] = otp
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	response, err := a.post(ctx, pathAuthLogin, payload, nil)
	if err != nil {
		core.LogEvent(ctx, a.logger, "warn", "directus login failed", map[string]any{
			"api_url": a.base.String(),
			"mode":    string(mode),
			"error":   err.Error(),
		})
		return nil, err
	}
	credential, err := a.credentialFromResponse(response, mode, nil)
	if err != nil {
		return nil, err
	}
	if err := a.storage.Set(ctx, credential); err != nil {
		return nil, err
	}
	core.LogEvent(ctx, a.logger, "info", "directus login succeeded", map[string]any{
		"api_url": a.base.String(),
		"mode":    string(mode),
	})
	return credential.Clone(), nil
}

// Refresh exchanges the stored refresh token for a new credential.
func (a *AuthenticationClient) Refresh(ctx context.Context) (*core.Credential, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.refreshLocked(ctx)
}

func (a *AuthenticationClient) refreshLocked(ctx context.Context) (*core.Credential, error) {
	current, err := a.storage.Get(ctx)
	if err != nil {
		return nil, core.WrapStorageError(err, "get")
	}
	mode := a.credentialMode(current)
	payload := map[string]any{"mode": string(mode)}
	headers := map[string]string{}
	switch mode {
	case core.AuthenticationModeJSON:
		if current == nil || strings.TrimSpace(current.RefreshToken) == "" {
			return nil, errNoRefreshToken()
		}
		payload["refresh_token"] = current.RefreshToken
	case core.AuthenticationModeCookie:
		if current != nil && strings.TrimSpace(current.RefreshToken) != "" {
			headers["Cookie"] = (&http.Cookie{Name: refreshTokenCookie, Value: current.RefreshToken}).String()
		}
	case core.AuthenticationModeSession:
		if core.HasAccessToken(current) {
			headers["Cookie"] = (&http.Cookie{Name: sessionTokenCookie, Value: current.AccessToken}).String()
		}
	}

	response, err := a.post(ctx, pathAuthRefresh, payload, headers)
	if err != nil {
		return nil, err
	}
	credential, err := a.credentialFromResponse(response, mode, current)
	if err != nil {
		return nil, err
	}
	if err := a.storage.Set(ctx, credential); err != nil {
		return nil, err
	}
	core.LogEvent(ctx, a.logger, "debug", "directus credential refreshed", map[string]any{
		"api_url": a.base.String(),
		"mode":    string(mode),
	})
	return credential.Clone(), nil
}

// Logout invalidates the session server side and always clears the local
// credential, even when the server call fails.
func (a *AuthenticationClient) Logout(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	current, err := a.storage.Get(ctx)
	if err != nil {
		current = nil
	}
	var serverErr error
	if payload, headers, ok := a.logoutRequest(current); ok {
		_, serverErr = a.post(ctx, pathAuthLogout, payload, headers)
		if serverErr != nil {
			core.LogEvent(ctx, a.logger, "warn", "directus logout request failed", map[string]any{
				"api_url": a.base.String(),
				"error":   serverErr.Error(),
			})
		}
	}
	storeErr := a.storage.Set(ctx, nil)
	if serverErr != nil || storeErr != nil {
		return errors.Join(serverErr, storeErr)
	}
	return nil
}

func (a *AuthenticationClient) logoutRequest(current *core.Credential) (map[string]any, map[string]string, bool) {
	if current == nil {
		return nil, nil, false
	}
	mode := a.credentialMode(current)
	payload := map[string]any{"mode": string(mode)}
	headers := map[string]string{}
	switch mode {
	case core.AuthenticationModeJSON:
		if strings.TrimSpace(current.RefreshToken) == "" {
			return nil, nil, false
		}
		payload["refresh_token"] = current.RefreshToken
	case core.AuthenticationModeCookie:
		if strings.TrimSpace(current.RefreshToken) == "" {
			return nil, nil, false
		}
		headers["Cookie"] = (&http.Cookie{Name: refreshTokenCookie, Value: current.RefreshToken}).String()
	case core.AuthenticationModeSession:
		if !core.HasAccessToken(current) {
			return nil, nil, false
		}
		headers["Cookie"] = (&http.Cookie{Name: sessionTokenCookie, Value: current.AccessToken}).String()
	}
	return payload, headers, true
}

// GetToken returns the current access token, refreshing first when auto
// refresh is on and the token is inside the refresh window. An empty string
// means no credential is stored.
func (a *AuthenticationClient) GetToken(ctx context.Context) (string, error) {
	if !a.config.AutoRefreshEnabled() {
		current, err := a.storage.Get(ctx)
		if err != nil {
			return "", core.WrapStorageError(err, "get")
		}
		if current == nil {
			return "", nil
		}
		return strings.TrimSpace(current.AccessToken), nil
	}

	result, err := core.EnsureCredentialFresh(ctx, a.now(), a.storage, a.refreshIfStale, a.config.RefreshBeforeExpires)
	if err != nil {
		if result.Credential != nil && core.HasAccessToken(result.Credential) && !result.State.IsExpired {
			core.LogEvent(ctx, a.logger, "warn", "directus token refresh failed; using current token", map[string]any{
				"error": err.Error(),
			})
			return strings.TrimSpace(result.Credential.AccessToken), nil
		}
		return "", err
	}
	if result.Credential == nil {
		return "", nil
	}
	return strings.TrimSpace(result.Credential.AccessToken), nil
}

// refreshIfStale re-checks freshness under the write lock so concurrent
// callers share one refresh.
func (a *AuthenticationClient) refreshIfStale(ctx context.Context) (*core.Credential, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	current, err := a.storage.Get(ctx)
	if err != nil {
		return nil, core.WrapStorageError(err, "get")
	}
	state := core.ResolveCredentialTokenState(a.now(), current, a.config.RefreshBeforeExpires)
	if !core.ShouldRefreshCredential(state) {
		return current, nil
	}
	return a.refreshLocked(ctx)
}

func (a *AuthenticationClient) resolveMode(override core.AuthenticationMode) core.AuthenticationMode {
	if override.Valid() {
		return override
	}
	return a.config.Mode
}

// credentialMode is the mode current was issued under, so refresh and logout
// follow a per-login override.
func (a *AuthenticationClient) credentialMode(current *core.Credential) core.AuthenticationMode {
	if current != nil && current.Mode.Valid() {
		return current.Mode
	}
	return a.config.Mode
}

func (a *AuthenticationClient) post(ctx context.Context, path string, payload map[string]any, headers map[string]string) (transport.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return transport.Response{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "client: marshal auth payload").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	return a.rest.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     joinPath(a.base, path),
		Headers: headers,
		Body:    body,
	})
}

func (a *AuthenticationClient) credentialFromResponse(response transport.Response, mode core.AuthenticationMode, previous *core.Credential) (*core.Credential, error) {
	data := authResponseData{}
	if err := transport.DecodeData(response, &data); err != nil {
		return nil, err
	}
	credential := &core.Credential{
		AccessToken:  strings.TrimSpace(data.AccessToken),
		RefreshToken: strings.TrimSpace(data.RefreshToken),
		Expires:      data.Expires,
		Mode:         mode,
	}
	switch mode {
	case core.AuthenticationModeCookie:
		if value, ok := response.Cookie(refreshTokenCookie); ok {
			credential.RefreshToken = value
		} else if credential.RefreshToken == "" && previous != nil {
			credential.RefreshToken = previous.RefreshToken
		}
	case core.AuthenticationModeSession:
		if value, ok := response.Cookie(sessionTokenCookie); ok {
			credential.AccessToken = strings.TrimSpace(value)
		}
	}
	if !core.HasAccessToken(credential) {
		return nil, goerrors.New("client: directus returned no access token", goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ErrorExternalFailure).
			WithMetadata(map[string]any{"mode": string(mode)})
	}
	credential.ExpiresAt = a.expiresAt(credential)
	return credential, nil
}

// expiresAt prefers the server supplied lifetime and falls back to the exp
// claim of the access token. The token signature is not verified.
func (a *AuthenticationClient) expiresAt(credential *core.Credential) *time.Time {
	if credential.Expires > 0 {
		at := a.now().Add(time.Duration(credential.Expires) * time.Millisecond).UTC()
		return &at
	}
	token, _, err := jwt.NewParser().ParseUnverified(credential.AccessToken, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	at := exp.Time.UTC()
	return &at
}

func errNoRefreshToken() error {
	return goerrors.New("client: no refresh token is stored", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ErrorUnauthorized)
}

var _ core.Authenticator = (*authenticatorAdapter)(nil)

// authenticatorAdapter exposes the module through core.Authenticator.
type authenticatorAdapter struct {
	client *AuthenticationClient
}

// AsAuthenticator adapts a to the transport-neutral core.Authenticator.
func (a *AuthenticationClient) AsAuthenticator() core.Authenticator {
	return authenticatorAdapter{client: a}
}

func (a authenticatorAdapter) Login(ctx context.Context, req core.LoginRequest) (*core.Credential, error) {
	return a.client.Login(ctx, req.Email, req.Password, LoginOptions{OTP: req.OTP, Mode: req.Mode})
}

func (a authenticatorAdapter) Refresh(ctx context.Context) (*core.Credential, error) {
	return a.client.Refresh(ctx)
}

func (a authenticatorAdapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}
