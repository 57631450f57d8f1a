// Package migrations embeds the SQL schema files so the migration script and
// the integration tests apply exactly the same DDL.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
