// Package migrations embeds the SQL schema applied to the durable store.
package migrations

import "embed"

// FS holds the *.up.sql files in apply order.
//
//go:embed *.up.sql
var FS embed.FS
