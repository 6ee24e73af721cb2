package client

import (
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-directus/core"
	goerrors "github.com/goliatone/go-errors"
)

// StaticTokenClient holds a long-lived token issued from the Directus admin
// panel. It takes precedence over session credentials.
type StaticTokenClient struct {
	mu    sync.RWMutex
	token string
}

func newStaticTokenClient(token string) *StaticTokenClient {
	return &StaticTokenClient{token: strings.TrimSpace(token)}
}

func (s *StaticTokenClient) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *StaticTokenClient) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return goerrors.New("client: static token must not be empty", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}
