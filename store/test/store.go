// Package teststore builds migrated stores for driver-level tests.
package teststore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uiucchat/chatcore/internal/profile"
	"github.com/uiucchat/chatcore/store"
	"github.com/uiucchat/chatcore/store/db"
)

// NewSQLiteStore returns a migrated store backed by a fresh sqlite file.
func NewSQLiteStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(ctx, t, &profile.Profile{
		Mode:   "dev",
		Data:   dir,
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "chatcore_test.db"),
	})
}

// NewStore opens the driver named by p and runs migrations.
func NewStore(ctx context.Context, t *testing.T, p *profile.Profile) *store.Store {
	t.Helper()
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}
