package migrations

import "embed"

// FS contains the registry schema migrations.
//
//go:embed *.sql
var FS embed.FS
