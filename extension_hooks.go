package directus

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-directus/provider"
)

// CommandQueryBundleFactory builds a downstream bundle of handlers over the
// facade, for example an HTTP or CLI adapter.
type CommandQueryBundleFactory func(facade *Facade) (any, error)

// SnapshotHook is a named listener attached to every provider the hooks are
// applied to.
type SnapshotHook struct {
	Name     string
	Listener provider.SnapshotListener
}

type ExtensionHooks struct {
	mu sync.RWMutex

	snapshotHooks map[string]provider.SnapshotListener
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		snapshotHooks: map[string]provider.SnapshotListener{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterSnapshotHook(hook SnapshotHook) error {
	if h == nil {
		return fmt.Errorf("directus: extension hooks are nil")
	}
	name := strings.TrimSpace(hook.Name)
	if name == "" {
		return fmt.Errorf("directus: snapshot hook name is required")
	}
	if hook.Listener == nil {
		return fmt.Errorf("directus: snapshot hook %q listener is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.snapshotHooks[name]; exists {
		return fmt.Errorf("directus: snapshot hook %q already registered", name)
	}
	h.snapshotHooks[name] = hook.Listener
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("directus: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("directus: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("directus: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("directus: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// AttachSnapshotHooks subscribes every registered hook to p, in name order.
// The returned function detaches them all.
func (h *ExtensionHooks) AttachSnapshotHooks(p *provider.Provider) (func(), error) {
	if h == nil {
		return func() {}, nil
	}
	if p == nil {
		return nil, fmt.Errorf("directus: provider is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.snapshotHooks)
	listeners := make([]provider.SnapshotListener, 0, len(names))
	for _, name := range names {
		listeners = append(listeners, h.snapshotHooks[name])
	}
	h.mu.RUnlock()

	detach := make([]func(), 0, len(listeners))
	for _, listener := range listeners {
		detach = append(detach, p.Subscribe(listener))
	}
	return func() {
		for _, fn := range detach {
			fn()
		}
	}, nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("directus: facade is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.bundles)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](facade)
		if err != nil {
			return nil, fmt.Errorf("directus: build bundle %q: %w", name, err)
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) SnapshotHookNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.snapshotHooks)
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](values map[string]V) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
