package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/instantmart/admin-console/internal/data/pgxutil"
	apperrors "github.com/instantmart/admin-console/internal/errors"
)

// TokenStorageRepo is a Postgres-backed ports.TokenStorage over the client_storage table.
type TokenStorageRepo struct {
	DB           *sql.DB
	profile      string
	timeProvider TimeProvider
}

// NewTokenStorageRepo creates a TokenStorageRepo for profile ("default" when empty).
func NewTokenStorageRepo(db *sql.DB, profile string) *TokenStorageRepo {
	return NewTokenStorageRepoWithTimeProvider(db, profile, &RealTimeProvider{})
}

// NewTokenStorageRepoWithTimeProvider creates a TokenStorageRepo with a custom time provider (useful for tests).
func NewTokenStorageRepoWithTimeProvider(db *sql.DB, profile string, tp TimeProvider) *TokenStorageRepo {
	if profile == "" {
		profile = "default"
	}
	return &TokenStorageRepo{DB: db, profile: profile, timeProvider: tp}
}

// Load returns the stored values for keys; absent keys are omitted.
func (r *TokenStorageRepo) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT key, value FROM client_storage WHERE profile = $1 AND key = ANY($2)`,
		r.profile, keys,
	)
	if err != nil {
		return nil, fmt.Errorf("load client storage: %w", apperrors.MapDBError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v string
		if scanErr := rows.Scan(&k, &v); scanErr != nil {
			return nil, fmt.Errorf("scan client storage: %w", scanErr)
		}
		out[k] = v
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate client storage: %w", apperrors.MapDBError(rowsErr))
	}
	return out, nil
}

// Save upserts every entry in a single transaction.
func (r *TokenStorageRepo) Save(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	for k := range values {
		if k == "" {
			return ErrEmptyStorageKey
		}
	}

	now := r.timeProvider.FormatForDB(r.timeProvider.Now())
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
		for k, v := range values {
			if _, execErr := tx.ExecContext(ctx, `
				INSERT INTO client_storage (profile, key, value, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (profile, key) DO UPDATE
				SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
				r.profile, k, v, now,
			); execErr != nil {
				return fmt.Errorf("upsert %s: %w", k, execErr)
			}
		}
		return nil
	}})
	if err != nil {
		return fmt.Errorf("save client storage: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Clear deletes keys. Missing keys are ignored.
func (r *TokenStorageRepo) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM client_storage WHERE profile = $1 AND key = ANY($2)`,
		r.profile, keys,
	); err != nil {
		return fmt.Errorf("clear client storage: %w", apperrors.MapDBError(err))
	}
	return nil
}
