// Package client composes a Directus client from a base URL and a fixed set
// of capability modules. The set is decided once in Build; accessors for a
// capability that was not configured return an error instead of a stub.
package client
