// Package core contains the canonical directus client contracts: the
// authentication state, stored credentials, capability configuration, and the
// state machine that keeps the authentication state aligned with a credential
// store. Transport, client, and storage adapters depend on this package; core
// must not depend on any of them.
package core
