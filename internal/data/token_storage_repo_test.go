package data

import (
	"context"
	"testing"
	"time"

	"github.com/instantmart/admin-console/internal/ports"
	"github.com/instantmart/admin-console/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.TokenStorage = (*TokenStorageRepo)(nil)

func TestTokenStorageRepo_SaveLoadClear(t *testing.T) {
	db := testutil.SetupEphemeralSchemaDB(t)
	repo := NewTokenStorageRepoWithTimeProvider(db, "ops", NewFixedTimeProvider(testutil.TestTime()))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, map[string]string{
		ports.StorageKeyAccessToken:  "a1",
		ports.StorageKeyRefreshToken: "r1",
		ports.StorageKeyUser:         `{"userId":1}`,
	}))

	got, err := repo.Load(ctx, ports.SessionKeys...)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "a1", got[ports.StorageKeyAccessToken])

	var updated time.Time
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT updated_at FROM client_storage WHERE profile = 'ops' AND key = 'accessToken'`,
	).Scan(&updated))
	assert.True(t, updated.Equal(testutil.TestTime()))

	// upsert replaces
	require.NoError(t, repo.Save(ctx, map[string]string{ports.StorageKeyAccessToken: "a2"}))
	got, err = repo.Load(ctx, ports.StorageKeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a2", got[ports.StorageKeyAccessToken])

	require.NoError(t, repo.Clear(ctx, ports.SessionKeys...))
	got, err = repo.Load(ctx, ports.SessionKeys...)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenStorageRepo_ProfilesAreIsolated(t *testing.T) {
	db := testutil.SetupEphemeralSchemaDB(t)
	ctx := context.Background()
	a := NewTokenStorageRepo(db, "a")
	b := NewTokenStorageRepo(db, "b")

	require.NoError(t, a.Save(ctx, map[string]string{"accessToken": "x"}))
	got, err := b.Load(ctx, "accessToken")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenStorageRepo_EmptyKeyRejectedWithoutWrites(t *testing.T) {
	repo := NewTokenStorageRepo(nil, "")
	err := repo.Save(context.Background(), map[string]string{"": "x", "accessToken": "y"})
	assert.ErrorIs(t, err, ErrEmptyStorageKey)
}

func TestTokenStorageRepo_NoKeysIsNoop(t *testing.T) {
	repo := NewTokenStorageRepo(nil, "")
	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, repo.Clear(context.Background()))
	require.NoError(t, repo.Save(context.Background(), nil))
}
