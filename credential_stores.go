package directus

import (
	"context"

	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/security"
	"github.com/goliatone/go-directus/store/memory"
	sqlstore "github.com/goliatone/go-directus/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type DatabaseConfig = sqlstore.DatabaseConfig

func MemoryCredentialStore() CredentialStore {
	return memory.New()
}

// AppKeySecretProvider derives a credential sealing key from an application
// secret.
func AppKeySecretProvider(appKey string, opts ...security.Option) (*security.AppKeySecretProvider, error) {
	return security.NewAppKeySecretProviderFromString(appKey, opts...)
}

// SQLCredentialStore opens the database described by cfg, applies the
// credential schema and returns a sealed store over it. The caller owns the
// returned client and must close it.
func SQLCredentialStore(
	ctx context.Context,
	cfg DatabaseConfig,
	secrets SecretProvider,
	opts ...sqlstore.Option,
) (*sqlstore.CredentialStore, *persistence.Client, error) {
	client, err := sqlstore.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlstore.NewCredentialStoreFromClient(client, secrets, opts...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, client, nil
}

// CachedSQLCredentialStore is SQLCredentialStore behind a read-through cache
// built from the default go-repository-cache configuration.
func CachedSQLCredentialStore(
	ctx context.Context,
	cfg DatabaseConfig,
	secrets SecretProvider,
	opts ...sqlstore.Option,
) (*sqlstore.CachedCredentialStore, *persistence.Client, error) {
	base, client, err := SQLCredentialStore(ctx, cfg, secrets, opts...)
	if err != nil {
		return nil, nil, err
	}
	cacheService, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	cached, err := sqlstore.NewCachedCredentialStore(base, cacheService,
		sqlstore.WithCacheLogger(core.ResolveDependencies().NamedLogger("credential_cache")),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return cached, client, nil
}
