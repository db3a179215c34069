package migrations

import "embed"

// FS holds the schema migrations in golang-migrate's file naming.
//
//go:embed *.sql
var FS embed.FS
