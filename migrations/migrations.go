// Package migrations embeds the PostgreSQL schema used by the slot registry
// and the booking ledger.
package migrations

import "embed"

// FS holds the golang-migrate source files.
//
//go:embed *.sql
var FS embed.FS
