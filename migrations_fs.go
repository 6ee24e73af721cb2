package directus

import (
	"io/fs"

	"github.com/goliatone/go-directus/migrations"
)

// GetMigrationsFS returns the embedded credential store migrations, including
// the sqlite alternatives under data/sql/migrations/sqlite.
func GetMigrationsFS() fs.FS {
	return migrations.FS()
}
