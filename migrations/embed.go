// Package migrations embeds SQL migration files into the binary.
//
// This allows Conduit to run migrations without needing the SQL files
// present on the filesystem - they're compiled into the executable.
package migrations

import (
	"embed"

	"github.com/conduitapp/conduit/internal/infrastructure/postgres"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the postgres package.
	// The embed directive above captures all .sql files in this directory.
	postgres.MigrationsFS = migrationsFS
	postgres.MigrationsDir = "." // Files are at root of embedded FS
}
