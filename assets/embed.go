// Package assets embeds the SQL migrations shipped with the server binary.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var files embed.FS

// Migrations returns the migration scripts rooted at their directory, so
// names read "0001_scores.sql" and sort in the order they must run.
func Migrations() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		// only fails on a malformed path literal
		panic(err)
	}
	return sub
}
