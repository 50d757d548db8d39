package migrations

import "embed"

// FS contains embedded SQLite migrations for crab pot storage.
//
//go:embed *.sql
var FS embed.FS
