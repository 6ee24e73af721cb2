package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-directus/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const credentialCacheKeyPrefix = "go-directus::credential::v1"

// cachedCredential wraps the value so an absent credential is cached too.
type cachedCredential struct {
	Credential *core.Credential
}

// CachedCredentialStore serves reads from a go-repository-cache service and
// invalidates the entry after every write. A fetch in flight always finishes
// before a write invalidates, so a stale read is never cached after a Set.
type CachedCredentialStore struct {
	base   core.CredentialStore
	cache  repositorycache.CacheService
	key    string
	logger core.Logger

	mu sync.RWMutex
	// bypass is set while the cached entry may be stale because invalidation
	// failed; reads go straight to base until an invalidation succeeds.
	bypass bool
}

type CachedCredentialStoreOption func(*CachedCredentialStore)

func WithCacheLogger(logger core.Logger) CachedCredentialStoreOption {
	return func(s *CachedCredentialStore) {
		s.logger = logger
	}
}

func NewCachedCredentialStore(base core.CredentialStore, cacheService repositorycache.CacheService, opts ...CachedCredentialStoreOption) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	storageKey := DefaultStorageKey
	if keyed, ok := base.(interface{ Key() string }); ok && strings.TrimSpace(keyed.Key()) != "" {
		storageKey = keyed.Key()
	}
	store := &CachedCredentialStore{
		base:  base,
		cache: cacheService,
		key:   CredentialCacheKey(storageKey),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// CredentialCacheKey returns go-directus::credential::v1::<storage_key> with the
// key URL-path escaped.
func CredentialCacheKey(storageKey string) string {
	return credentialCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(storageKey))
}

func (s *CachedCredentialStore) Get(ctx context.Context) (*core.Credential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bypass {
		credential, err := s.base.Get(ctx)
		if err != nil {
			return nil, err
		}
		return credential.Clone(), nil
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, s.key, func(ctx context.Context) (cachedCredential, error) {
		credential, err := s.base.Get(ctx)
		if err != nil {
			return cachedCredential{}, err
		}
		return cachedCredential{Credential: credential.Clone()}, nil
	})
	if err != nil {
		return nil, err
	}
	return entry.Credential.Clone(), nil
}

func (s *CachedCredentialStore) Set(ctx context.Context, credential *core.Credential) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.base.Set(ctx, credential); err != nil {
		return err
	}
	// The write has persisted; a failed invalidation does not fail the Set.
	if err := s.cache.Delete(ctx, s.key); err != nil {
		s.bypass = true
		core.LogEvent(ctx, s.logger, "warn", "credential cache invalidation failed", map[string]any{
			"cache_key": s.key,
			"error":     err.Error(),
		})
		return nil
	}
	s.bypass = false
	return nil
}
