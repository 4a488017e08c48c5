package repo

import "embed"

// Migrations holds the postgres schema, applied by pkg/db.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"
