// Package migrations embeds the SQL schema of each SQL backend.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Sub returns the migrations of one backend.
func Sub(backend string) (fs.FS, error) {
	return fs.Sub(FS, backend)
}
