// Package migrations embeds the goose SQL migrations so every binary carries its schema.
package migrations

import "embed"

// FS holds the SQL migration files.
//
//go:embed *.sql
var FS embed.FS
