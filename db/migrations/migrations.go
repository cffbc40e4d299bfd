// Package migrations embeds the goose SQL migrations so binaries carry their
// own schema.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the migrations directory inside FS.
const Dir = "sql"
