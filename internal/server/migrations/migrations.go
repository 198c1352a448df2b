// Package migrations embeds the goose SQL migrations for the filegate
// schema: device bindings, sessions, role grants, and file records.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
