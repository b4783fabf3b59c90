// Package migrations embeds the SQL schema for the duochatd record store.
package migrations

import "embed"

// FS holds the golang-migrate files ({version}_{title}.{up|down}.sql).
//
//go:embed *.sql
var FS embed.FS
