// Package migrations embeds the goose SQL migrations so the binary can
// migrate without the source tree.
package migrations

import "embed"

// FS holds every migration under sql/.
//
//go:embed sql/*.sql
var FS embed.FS

// Dir is the directory inside FS goose reads from.
const Dir = "sql"
