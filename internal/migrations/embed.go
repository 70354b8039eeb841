// Package migrations embeds the schema migrations applied with goose: the
// hosted Postgres schema under postgres/ and the local SQLite schema under
// sqlite/.
package migrations

import "embed"

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
