package migrations

import "embed"

// PostgresFS embeds the core database schema files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the chain index schema files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
