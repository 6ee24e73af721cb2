package sqlstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// credentialRecord is one sealed credential row, unique per storage key.
type credentialRecord struct {
	bun.BaseModel `bun:"table:directus_credentials,alias:dc"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid"`
	StorageKey     string     `bun:"storage_key,notnull"`
	Payload        []byte     `bun:"payload,notnull"`
	PayloadFormat  string     `bun:"payload_format,notnull"`
	PayloadVersion int        `bun:"payload_version,notnull"`
	KeyID          string     `bun:"key_id,notnull"`
	ExpiresAt      *time.Time `bun:"expires_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
