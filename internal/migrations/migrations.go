// Package migrations embeds the goose schema migrations for both supported
// databases. Each dialect has its own directory inside Migrations.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

const (
	SQLiteDir   = "sqlite"
	PostgresDir = "postgres"
)
