// Package migrations embeds the Postgres schema for analysis records.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
