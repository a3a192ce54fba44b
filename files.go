package auth

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package. The
// sqlite up migrations live under data/sql/migrations/sqlite and use
// --bun:split between statements.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
