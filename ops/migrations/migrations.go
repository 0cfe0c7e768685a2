// Package migrations embeds the SQL schema and seed files so binaries do not
// depend on the working directory.
package migrations

import "embed"

//go:embed sql/*.sql seeds/*.sql
var FS embed.FS

const (
	SQLDir   = "sql"
	SeedsDir = "seeds"
)
