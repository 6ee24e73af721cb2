package transport

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Request is a single HTTP exchange with a Directus endpoint.
type Request struct {
	Method               string
	URL                  string
	Query                map[string]string
	Headers              map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	RawHeaders http.Header
	Body       []byte
	Metadata   map[string]any
}

// Cookie returns the named Set-Cookie value from the response, if present.
func (r Response) Cookie(name string) (string, bool) {
	if len(r.RawHeaders) == 0 {
		return "", false
	}
	for _, cookie := range (&http.Response{Header: r.RawHeaders}).Cookies() {
		if cookie.Name == name {
			return cookie.Value, true
		}
	}
	return "", false
}

// Header looks a response header up case-insensitively.
func (r Response) Header(name string) string {
	for key, value := range r.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

// Adapter executes requests for one transport kind.
type Adapter interface {
	Kind() string
	Do(ctx context.Context, req Request) (Response, error)
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	return metadata
}
