package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/transport"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// RealtimeClient manages one websocket connection to the Directus realtime
// endpoint. Receive must be called from a single goroutine.
type RealtimeClient struct {
	endpoint string
	authMode core.RealtimeAuthMode
	dialer   *transport.RealtimeDialer
	token    tokenFunc
	logger   core.Logger

	mu   sync.Mutex
	conn *transport.RealtimeConn
	// generation changes on every Close so a dial that raced it is discarded.
	generation uint64
}

func newRealtimeClient(base *url.URL, cfg core.RealtimeConfig, token tokenFunc, options buildOptions) *RealtimeClient {
	cfg = cfg.WithDefaults()
	dialer := options.dialer
	if dialer == nil {
		dialer = transport.NewRealtimeDialer(cfg.HandshakeTimeout)
	}
	return &RealtimeClient{
		endpoint: realtimeEndpoint(base, cfg.URL),
		authMode: cfg.AuthMode,
		dialer:   dialer,
		token:    token,
		logger:   options.logger,
	}
}

// realtimeEndpoint maps http(s) to ws(s) unless an explicit URL is set.
func realtimeEndpoint(base *url.URL, override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	endpoint := *base
	if endpoint.Scheme == "https" {
		endpoint.Scheme = "wss"
	} else {
		endpoint.Scheme = "ws"
	}
	return joinPath(&endpoint, core.DefaultRealtimePath)
}

func (r *RealtimeClient) Endpoint() string {
	return r.endpoint
}

func (r *RealtimeClient) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// Connect dials the endpoint and authenticates according to the auth mode.
// Connecting while connected is a no-op. The dial runs without holding the
// client lock, so Close never waits for it.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.conn != nil {
		r.mu.Unlock()
		return nil
	}
	generation := r.generation
	r.mu.Unlock()

	token := ""
	if r.authMode != core.RealtimeAuthPublic && r.token != nil {
		resolved, err := r.token(ctx)
		if err != nil {
			return err
		}
		token = strings.TrimSpace(resolved)
	}
	if r.authMode == core.RealtimeAuthStrict && token == "" {
		return goerrors.New("client: strict realtime auth requires a token", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.ErrorUnauthorized)
	}

	conn, err := r.dialer.Dial(ctx, r.endpoint, nil)
	if err != nil {
		return err
	}
	if token != "" {
		if err := authenticateRealtime(ctx, conn, token); err != nil {
			_ = conn.Close()
			return err
		}
	}

	r.mu.Lock()
	switch {
	case r.generation != generation:
		r.mu.Unlock()
		_ = conn.Close()
		return goerrors.New("client: realtime closed while connecting", goerrors.CategoryOperation).
			WithCode(http.StatusConflict).
			WithTextCode(core.ErrorInternal)
	case r.conn != nil:
		r.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	r.conn = conn
	r.mu.Unlock()
	core.LogEvent(ctx, r.logger, "debug", "directus realtime connected", map[string]any{
		"endpoint":  r.endpoint,
		"auth_mode": string(r.authMode),
	})
	return nil
}

func authenticateRealtime(ctx context.Context, conn *transport.RealtimeConn, token string) error {
	if err := conn.WriteJSON(ctx, map[string]any{"type": "auth", "access_token": token}); err != nil {
		return err
	}
	reply, err := conn.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if reply.Type != "auth" || reply.Status != "ok" {
		return goerrors.New("client: realtime authentication rejected", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.ErrorUnauthorized).
			WithMetadata(map[string]any{"type": reply.Type, "status": reply.Status})
	}
	return nil
}

func (r *RealtimeClient) Send(ctx context.Context, message any) error {
	conn, err := r.current()
	if err != nil {
		return err
	}
	return conn.WriteJSON(ctx, message)
}

// Receive returns the next frame. Server pings are answered and skipped.
func (r *RealtimeClient) Receive(ctx context.Context) (transport.RealtimeMessage, error) {
	conn, err := r.current()
	if err != nil {
		return transport.RealtimeMessage{}, err
	}
	for {
		message, err := conn.ReadMessage(ctx)
		if err != nil {
			return transport.RealtimeMessage{}, err
		}
		if message.Type == "ping" {
			if err := conn.WriteJSON(ctx, map[string]any{"type": "pong"}); err != nil {
				return transport.RealtimeMessage{}, err
			}
			continue
		}
		return message, nil
	}
}

// Subscribe starts a collection subscription and returns its uid.
func (r *RealtimeClient) Subscribe(ctx context.Context, collection string, query map[string]any) (string, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return "", goerrors.New("client: subscription collection is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	uid := uuid.NewString()
	message := map[string]any{
		"type":       "subscribe",
		"collection": collection,
		"uid":        uid,
	}
	if len(query) > 0 {
		message["query"] = query
	}
	if err := r.Send(ctx, message); err != nil {
		return "", err
	}
	return uid, nil
}

func (r *RealtimeClient) Unsubscribe(ctx context.Context, uid string) error {
	return r.Send(ctx, map[string]any{"type": "unsubscribe", "uid": strings.TrimSpace(uid)})
}

func (r *RealtimeClient) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.generation++
	r.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (r *RealtimeClient) current() (*transport.RealtimeConn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil, goerrors.New("client: realtime is not connected", goerrors.CategoryOperation).
			WithCode(http.StatusConflict).
			WithTextCode(core.ErrorInternal)
	}
	return r.conn, nil
}
