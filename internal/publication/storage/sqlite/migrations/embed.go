package migrations

import "embed"

// FS contains embedded SQLite migrations for publication storage.
//
//go:embed *.sql
var FS embed.FS
