package data

import (
	"context"
	"database/sql"

	"github.com/instantmart/admin-console/internal/migrate"
)

// RunMigrations sets up the client_storage schema by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
