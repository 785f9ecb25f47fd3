// Package migrations embeds the rule store schema migrations.
package migrations

import "embed"

// Migration files are bundled at compile time, one directory per driver.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
