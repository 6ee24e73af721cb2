// Package provider scopes a composed Directus client and its auth state to a
// context.Context.
//
// A Factory fixes the capability configuration once. Each Provider it creates
// owns a credential store adapter, an auth state machine and a client bound to
// its API URL. Mounting a provider returns a context from which
// Factory.Current reads the latest Snapshot.
package provider
