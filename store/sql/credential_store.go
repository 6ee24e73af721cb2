package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-directus/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultStorageKey = "default"

type Option func(*CredentialStore)

// WithStorageKey selects the row this store reads and writes. Distinct keys
// let several providers share one table.
func WithStorageKey(key string) Option {
	return func(s *CredentialStore) {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			s.key = trimmed
		}
	}
}

// WithCodec sets the codec used for writes. Reads pick the codec recorded
// with each row.
func WithCodec(codec core.CredentialCodec) Option {
	return func(s *CredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *CredentialStore) {
		if now != nil {
			s.now = now
		}
	}
}

// CredentialStore persists one sealed credential per storage key.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	secrets core.SecretProvider
	codec   core.CredentialCodec
	key     string
	now     func() time.Time
}

func NewCredentialStore(db *bun.DB, secrets core.SecretProvider, opts ...Option) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	store := &CredentialStore{
		db:      db,
		repo:    repo,
		secrets: secrets,
		codec:   core.JSONCredentialCodec{},
		key:     DefaultStorageKey,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *CredentialStore) Key() string {
	if s == nil {
		return ""
	}
	return s.key
}

// Get returns the stored credential, or nil when the key has no row.
func (s *CredentialStore) Get(ctx context.Context) (*core.Credential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy(credentialIdentifierColumn, "=", s.key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return s.open(ctx, records[0])
}

// Set seals and upserts credential. A nil credential deletes the row.
func (s *CredentialStore) Set(ctx context.Context, credential *core.Credential) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	if credential == nil {
		return s.delete(ctx)
	}
	payload, err := s.codec.Encode(credential)
	if err != nil {
		return err
	}
	sealed, err := s.secrets.Encrypt(ctx, payload)
	if err != nil {
		return fmt.Errorf("sqlstore: seal credential: %w", err)
	}
	now := s.now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findCredentialTx(ctx, tx, s.key)
		if err != nil {
			return err
		}
		created := record == nil
		if created {
			record = &credentialRecord{
				ID:         uuid.New(),
				StorageKey: s.key,
				CreatedAt:  now,
			}
		}
		record.Payload = sealed
		record.PayloadFormat = s.codec.Format()
		record.PayloadVersion = s.codec.Version()
		record.KeyID = keyIDOf(s.secrets)
		record.ExpiresAt = copyTimePointer(credential.ExpiresAt)
		record.UpdatedAt = now

		if created {
			_, err := s.repo.CreateTx(ctx, tx, record)
			return err
		}
		_, err = tx.NewUpdate().
			Model(record).
			Column("payload", "payload_format", "payload_version", "key_id", "expires_at", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (s *CredentialStore) delete(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("storage_key = ?", s.key).
		Exec(ctx)
	return err
}

func (s *CredentialStore) open(ctx context.Context, record *credentialRecord) (*core.Credential, error) {
	codec, err := core.CodecForFormat(record.PayloadFormat)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.secrets.Decrypt(ctx, record.Payload)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open credential: %w", err)
	}
	credential, err := codec.Decode(plaintext)
	if err != nil {
		return nil, err
	}
	if credential.ExpiresAt == nil {
		credential.ExpiresAt = copyTimePointer(record.ExpiresAt)
	}
	return credential, nil
}

func findCredentialTx(ctx context.Context, tx bun.Tx, key string) (*credentialRecord, error) {
	record := &credentialRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.storage_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func keyIDOf(secrets core.SecretProvider) string {
	if keyed, ok := secrets.(interface{ KeyID() string }); ok {
		return strings.TrimSpace(keyed.KeyID())
	}
	return ""
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
