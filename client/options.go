package client

import (
	"time"

	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/transport"
)

type buildOptions struct {
	httpClient transport.HTTPDoer
	logger     core.Logger
	dialer     *transport.RealtimeDialer
	now        func() time.Time
	metrics    core.MetricsRecorder
}

type Option func(*buildOptions)

func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(o *buildOptions) {
		o.httpClient = client
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithDialer replaces the websocket dialer used by the realtime module.
func WithDialer(dialer *transport.RealtimeDialer) Option {
	return func(o *buildOptions) {
		o.dialer = dialer
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) {
		o.now = now
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(o *buildOptions) {
		o.metrics = recorder
	}
}

func resolveBuildOptions(opts []Option) buildOptions {
	resolved := buildOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&resolved)
	}
	if resolved.now == nil {
		resolved.now = func() time.Time { return time.Now().UTC() }
	}
	if resolved.metrics == nil {
		resolved.metrics = core.NopMetricsRecorder{}
	}
	return resolved
}
