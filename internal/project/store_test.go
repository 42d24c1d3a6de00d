package project

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefolio/codefolio/internal/config"
)

func TestStorePutGetList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Project{ID: 2, Title: "Notes"}))
	require.NoError(t, store.Put(ctx, Project{ID: 1, Title: "Portfolio", Description: "site", ArchivePath: "/srv/a.zip"}))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Portfolio", got.Title)
	assert.Equal(t, "site", got.Description)
	assert.True(t, got.HasArchive())
	assert.Equal(t, "1", got.Key())
	assert.False(t, got.UpdatedAt.IsZero())

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(2), list[1].ID)
	assert.False(t, list[1].HasArchive())
}

func TestStorePutUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Project{ID: 5, Title: "old"}))
	require.NoError(t, store.Put(ctx, Project{ID: 5, Title: "new", ArchivePath: "/srv/new.zip"}))

	got, err := store.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "/srv/new.zip", got.ArchivePath)
}

func TestStorePutValidates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.Put(ctx, Project{ID: 0, Title: "zero"}))
	assert.Error(t, store.Put(ctx, Project{ID: 1, Title: "  "}))
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSeedResolvesArchivePaths(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	mediaRoot := t.TempDir()

	n, err := store.Seed(ctx, []config.ProjectConfig{
		{ID: 1, Title: "Portfolio", Archive: "project_sources/portfolio.zip"},
		{ID: 2, Title: "Notes"},
	}, mediaRoot)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(mediaRoot, "project_sources", "portfolio.zip"), got.ArchivePath)

	got, err = store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, got.ArchivePath)
}

func TestStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "codefolio.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), Project{ID: 3, Title: "kept"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Title)
}

func TestOpenArchive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.OpenArchive(ctx, Project{ID: 1, Title: "none"})
	assert.ErrorIs(t, err, ErrNoArchive)

	_, err = store.OpenArchive(ctx, Project{ID: 1, Title: "gone", ArchivePath: filepath.Join(t.TempDir(), "gone.zip")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoArchive)

	path := filepath.Join(t.TempDir(), "src.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK-not-really"), 0o644))
	archive, err := store.OpenArchive(ctx, Project{ID: 1, Title: "ok", ArchivePath: path})
	require.NoError(t, err)
	defer archive.Close()

	assert.Equal(t, int64(len("PK-not-really")), archive.Size())
	buf := make([]byte, 2)
	_, err = archive.ReadAt(buf, 0)
	require.True(t, err == nil || err == io.EOF)
	assert.Equal(t, "PK", string(buf))
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a(x);\n", extractUpMigration(content))
	assert.Equal(t, "CREATE TABLE b(x);", extractUpMigration("CREATE TABLE b(x);"))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "codefolio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
