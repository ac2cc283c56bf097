// Package platformmigrations creates the platform tables the points adapters
// read from. In production they are owned by other services; the migrations
// exist for local development and integration tests.
package platformmigrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
