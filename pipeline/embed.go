package pipeline

import "embed"

//go:embed db/registry/migrations/*.sql
var RegistryMigrationsFS embed.FS

// RegistryMigrationsDir is the directory of RegistryMigrationsFS holding the migrations.
const RegistryMigrationsDir = "db/registry/migrations"
