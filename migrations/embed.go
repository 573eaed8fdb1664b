// Package migrations embeds the versioned SQL schema into the binary.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS returns the embedded migration files. Pass it to database.DB.Migrate.
func FS() fs.FS {
	return files
}
