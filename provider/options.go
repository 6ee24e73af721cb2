package provider

import (
	"github.com/goliatone/go-directus/client"
	"github.com/goliatone/go-directus/core"
)

type factoryOptions struct {
	core   []core.Option
	client []client.Option
}

type Option func(*factoryOptions)

// WithCoreOptions forwards dependency options such as loggers, metrics and the
// HTTP client.
func WithCoreOptions(opts ...core.Option) Option {
	return func(o *factoryOptions) {
		o.core = append(o.core, opts...)
	}
}

// WithClientOptions forwards build options to every client the factory builds.
// They are applied after the options derived from dependencies.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *factoryOptions) {
		o.client = append(o.client, opts...)
	}
}

func WithCredentialStore(store core.CredentialStore) Option {
	return WithCoreOptions(core.WithCredentialStore(store))
}

func WithLogger(logger core.Logger) Option {
	return WithCoreOptions(core.WithLogger(logger))
}
