package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/gorilla/websocket"
)

const KindRealtime = "realtime"

const defaultRealtimeHandshakeTimeout = 10 * time.Second

// RealtimeMessage is the JSON frame exchanged with the Directus websocket
// endpoint. Unknown members are kept in Raw.
type RealtimeMessage struct {
	Type   string          `json:"type"`
	UID    string          `json:"uid,omitempty"`
	Status string          `json:"status,omitempty"`
	Event  string          `json:"event,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

// RealtimeDialer opens websocket connections.
type RealtimeDialer struct {
	Dialer           *websocket.Dialer
	HandshakeTimeout time.Duration
}

func NewRealtimeDialer(handshakeTimeout time.Duration) *RealtimeDialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultRealtimeHandshakeTimeout
	}
	return &RealtimeDialer{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		HandshakeTimeout: handshakeTimeout,
	}
}

func (*RealtimeDialer) Kind() string {
	return KindRealtime
}

func (d *RealtimeDialer) Dial(ctx context.Context, endpoint string, headers map[string]string) (*RealtimeConn, error) {
	if d == nil || d.Dialer == nil {
		return nil, transportError(
			"transport: realtime dialer is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindRealtime},
		)
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, transportError(
			"transport: realtime endpoint is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindRealtime},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	header := http.Header{}
	for key, value := range headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	conn, response, err := d.Dialer.DialContext(ctx, endpoint, header)
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
	if err != nil {
		metadata := map[string]any{"adapter": KindRealtime, "endpoint": endpoint}
		if response != nil {
			metadata["status_code"] = response.StatusCode
		}
		return nil, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: realtime dial failed",
			http.StatusBadGateway,
			metadata,
		)
	}
	return &RealtimeConn{conn: conn, endpoint: endpoint}, nil
}

// RealtimeConn serializes writes on a websocket. Reads must come from a
// single goroutine.
type RealtimeConn struct {
	writeMu  sync.Mutex
	conn     *websocket.Conn
	endpoint string
	closed   bool
}

func (c *RealtimeConn) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

func (c *RealtimeConn) WriteJSON(ctx context.Context, value any) error {
	if c == nil || c.conn == nil {
		return errRealtimeClosed()
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return errRealtimeClosed()
	}
	if deadline, ok := contextDeadline(ctx); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()
	}
	if err := c.conn.WriteJSON(value); err != nil {
		return transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: realtime write failed",
			http.StatusBadGateway,
			map[string]any{"adapter": KindRealtime, "endpoint": c.endpoint},
		)
	}
	return nil
}

// ReadMessage blocks for the next frame. A context deadline bounds the read;
// cancellation without a deadline is observed only after the next frame.
func (c *RealtimeConn) ReadMessage(ctx context.Context) (RealtimeMessage, error) {
	if c == nil || c.conn == nil {
		return RealtimeMessage{}, errRealtimeClosed()
	}
	if deadline, ok := contextDeadline(ctx); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		category := goerrors.CategoryExternal
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			category = goerrors.CategoryOperation
		}
		return RealtimeMessage{}, transportWrapError(
			err,
			category,
			"transport: realtime read failed",
			http.StatusBadGateway,
			map[string]any{"adapter": KindRealtime, "endpoint": c.endpoint},
		)
	}
	message := RealtimeMessage{}
	if err := json.Unmarshal(payload, &message); err != nil {
		return RealtimeMessage{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: realtime frame is not json",
			http.StatusBadGateway,
			map[string]any{"adapter": KindRealtime},
		)
	}
	message.Raw = append(json.RawMessage(nil), payload...)
	return message, nil
}

// Close sends a normal closure frame and releases the socket. Repeated calls
// are no-ops.
func (c *RealtimeConn) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		return nil
	}
	c.closed = true
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

func errRealtimeClosed() error {
	return transportError(
		"transport: realtime connection is closed",
		goerrors.CategoryOperation,
		http.StatusConflict,
		map[string]any{"adapter": KindRealtime},
	)
}

func contextDeadline(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	return ctx.Deadline()
}
