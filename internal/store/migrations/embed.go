// Package migrations embeds the SQL schema migrations for the store.
package migrations

import "embed"

// FS holds the numbered *.up.sql migrations.
//
//go:embed *.sql
var FS embed.FS
