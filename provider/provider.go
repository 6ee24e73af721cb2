package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-directus/client"
	"github.com/goliatone/go-directus/core"
)

type Props struct {
	APIURL    string
	AutoLogin bool
	// OnAuthStateChanged runs once per actual auth state change. It is not
	// called for the initial state.
	OnAuthStateChanged func(state core.AuthState)
}

// Snapshot is the immutable view published to consumers. A new value is
// published whenever the auth state changes or the client is rebuilt.
type Snapshot struct {
	APIURL    string
	Client    *client.Client
	AuthState core.AuthState
}

type SnapshotListener func(snapshot Snapshot)

type listenerEntry struct {
	id int
	fn SnapshotListener
}

// notice is one snapshot change waiting to be delivered.
type notice struct {
	snapshot    Snapshot
	authChanged bool
	listeners   []SnapshotListener
}

type Provider struct {
	factory       *Factory
	props         Props
	store         core.CredentialStore
	machine       *core.AuthStateMachine
	adapter       *core.AuthStorageAdapter
	logger        core.Logger
	stopObserving func()

	rebuildMu sync.Mutex

	mu        sync.Mutex
	snapshot  Snapshot
	listeners []listenerEntry
	nextID    int
	mounted   bool
	closed    bool
	// pending holds notices in snapshot order; a single caller at a time
	// drains it so observers never see changes out of order.
	pending    []notice
	delivering bool

	probeDone chan struct{}
	probeOnce sync.Once
}

// Mount returns a context scoped to p. With AutoLogin the startup probe runs
// in the background; its failures are logged and never returned. Mounting
// again returns a new scoped context without a second probe.
func (p *Provider) Mount(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errProviderClosed()
	}
	first := !p.mounted
	p.mounted = true
	apiURL := p.snapshot.APIURL
	p.mu.Unlock()

	scoped := context.WithValue(ctx, p.factory.key, p)
	if !first {
		return scoped, nil
	}
	core.LogEvent(ctx, p.logger, "debug", "directus provider mounted", map[string]any{
		"api_url":    apiURL,
		"auto_login": p.props.AutoLogin,
	})
	if !p.props.AutoLogin {
		p.finishProbe()
		return scoped, nil
	}
	probeCtx := context.WithoutCancel(ctx)
	go func() {
		defer p.finishProbe()
		p.machine.Probe(probeCtx, p.store)
	}()
	return scoped, nil
}

// ProbeDone is closed once the startup probe has finished, or at mount when
// no probe runs.
func (p *Provider) ProbeDone() <-chan struct{} {
	return p.probeDone
}

func (p *Provider) finishProbe() {
	p.probeOnce.Do(func() {
		close(p.probeDone)
	})
}

func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func (p *Provider) Status() core.ProviderStatus {
	snapshot := p.Snapshot()
	return core.ProviderStatus{
		APIURL:       snapshot.APIURL,
		AuthState:    snapshot.AuthState,
		Capabilities: snapshot.Client.Capabilities(),
	}
}

// Storage is the state-driving adapter every credential write goes through.
func (p *Provider) Storage() core.CredentialStore {
	return p.adapter
}

// Subscribe registers fn for every new snapshot and returns a function that
// removes it.
func (p *Provider) Subscribe(fn SnapshotListener) func() {
	if fn == nil {
		return func() {}
	}
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners = append(p.listeners, listenerEntry{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, entry := range p.listeners {
			if entry.id == id {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetAPIURL rebuilds the client when apiURL differs from the current one and
// closes the replaced client. An unchanged URL keeps the same client.
func (p *Provider) SetAPIURL(ctx context.Context, apiURL string) error {
	apiURL = strings.TrimSpace(apiURL)
	p.rebuildMu.Lock()
	defer p.rebuildMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errProviderClosed()
	}
	unchanged := p.snapshot.APIURL == apiURL
	p.mu.Unlock()
	if unchanged {
		return nil
	}

	built, err := p.factory.buildClient(apiURL, p.adapter)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = built.Close()
		return errProviderClosed()
	}
	previous := p.snapshot
	p.snapshot.APIURL = apiURL
	p.snapshot.Client = built
	p.pending = append(p.pending, notice{snapshot: p.snapshot, listeners: p.listenersLocked()})
	p.mu.Unlock()

	if err := previous.Client.Close(); err != nil {
		core.LogEvent(ctx, p.logger, "warn", "directus client close failed", map[string]any{
			"api_url": previous.APIURL,
			"error":   err.Error(),
		})
	}
	core.LogEvent(ctx, p.logger, "info", "directus api url changed", map[string]any{
		"api_url": apiURL,
	})
	p.deliverPending()
	return nil
}

// handleAuthStateChange folds machine transitions into the snapshot. It reads
// the machine again so out of order deliveries settle on the latest state.
func (p *Provider) handleAuthStateChange(core.AuthState) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	current := p.machine.Current()
	if current == p.snapshot.AuthState {
		p.mu.Unlock()
		return
	}
	p.snapshot.AuthState = current
	p.pending = append(p.pending, notice{snapshot: p.snapshot, authChanged: true, listeners: p.listenersLocked()})
	p.mu.Unlock()

	p.deliverPending()
}

// deliverPending hands queued notices to the observer and listeners outside
// the lock. A caller that finds another delivery running leaves its notice
// to that caller.
func (p *Provider) deliverPending() {
	p.mu.Lock()
	if p.delivering {
		p.mu.Unlock()
		return
	}
	p.delivering = true
	for len(p.pending) > 0 {
		next := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		if next.authChanged && p.props.OnAuthStateChanged != nil {
			p.props.OnAuthStateChanged(next.snapshot.AuthState)
		}
		notify(next.listeners, next.snapshot)
		p.mu.Lock()
	}
	p.delivering = false
	p.mu.Unlock()
}

func (p *Provider) listenersLocked() []SnapshotListener {
	listeners := make([]SnapshotListener, 0, len(p.listeners))
	for _, entry := range p.listeners {
		listeners = append(listeners, entry.fn)
	}
	return listeners
}

func notify(listeners []SnapshotListener, snapshot Snapshot) {
	for _, listener := range listeners {
		listener(snapshot)
	}
}

// Close unmounts p. The machine stops accepting publishes, so a probe still
// in flight has no effect, and the client is closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.listeners = nil
	p.pending = nil
	current := p.snapshot.Client
	p.mu.Unlock()

	p.machine.Close()
	if p.stopObserving != nil {
		p.stopObserving()
	}
	if !p.props.AutoLogin || !p.isMounted() {
		p.finishProbe()
	}
	return current.Close()
}

func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Provider) isMounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

func errProviderClosed() error {
	return core.NewConfigurationError("provider: provider is closed", core.ErrorOutsideProviderScope, nil)
}
