package migration

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/001_create_things.sql": {Data: []byte(`
-- Description: create things
CREATE TABLE things (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
`)},
		"migrations/002_add_index.sql": {Data: []byte(`
CREATE INDEX idx_things_name ON things(name);
INSERT INTO things (id, name) VALUES ('a', 'first');
`)},
		"migrations/README.md": {Data: []byte("not a migration")},
	}
}

func openTestDB(t *testing.T) *SQLiteExecutor {
	t.Helper()
	db, err := Open(TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "nested", "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteExecutor(db)
}

func TestScanner(t *testing.T) {
	t.Parallel()

	t.Run("scans in version order", func(t *testing.T) {
		t.Parallel()
		migrations, err := NewScanner(testFS(), "migrations").Scan()
		require.NoError(t, err)
		require.Len(t, migrations, 2)

		assert.Equal(t, "001", migrations[0].Version)
		assert.Equal(t, "create things", migrations[0].Description)
		assert.Equal(t, "002", migrations[1].Version)
		assert.Equal(t, "add index", migrations[1].Description)
		assert.Len(t, migrations[0].Checksum, 64)
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		t.Parallel()
		fsys := testFS()
		fsys["migrations/01_again.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}

		_, err := NewScanner(fsys, "migrations").Scan()
		assert.ErrorIs(t, err, ErrDuplicateVersion)
	})

	t.Run("rejects unbalanced SQL", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{"m/001_bad.sql": {Data: []byte("CREATE TABLE x (id TEXT;")}}

		_, err := NewScanner(fsys, "m").Scan()
		assert.ErrorIs(t, err, ErrInvalidMigrationFile)
	})

	t.Run("rejects comment-only files", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing here\n")}}

		_, err := NewScanner(fsys, "m").Scan()
		assert.ErrorIs(t, err, ErrInvalidMigrationFile)
	})

	t.Run("rejects misnamed files", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{"m/create.sql": {Data: []byte("SELECT 1;")}}

		_, err := NewScanner(fsys, "m").Scan()
		assert.ErrorIs(t, err, ErrInvalidMigrationFile)
	})
}

func TestManager_Run(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	executor := openTestDB(t)
	manager := NewManager(NewScanner(testFS(), "migrations"), executor, nil)

	applied, err := manager.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	var name string
	require.NoError(t, executor.db.QueryRowContext(ctx, "SELECT name FROM things WHERE id = 'a'").Scan(&name))
	assert.Equal(t, "first", name)

	applied, err = manager.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "002", status.CurrentVersion)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.Applied, 2)
}

func TestManager_RollsBackFailedMigration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	executor := openTestDB(t)
	fsys := testFS()
	fsys["migrations/003_broken.sql"] = &fstest.MapFile{Data: []byte(`
CREATE TABLE others (id TEXT PRIMARY KEY);
INSERT INTO missing_table VALUES (1);
`)}
	manager := NewManager(NewScanner(fsys, "migrations"), executor, nil)

	applied, err := manager.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMigrationFailed))
	assert.Equal(t, 2, applied)

	var count int
	require.NoError(t, executor.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'others'").Scan(&count))
	assert.Zero(t, count)

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status.Pending, 1)
	assert.Equal(t, "003", status.Pending[0].Version)
}

func TestManager_DetectsEditedMigration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	executor := openTestDB(t)

	_, err := NewManager(NewScanner(testFS(), "migrations"), executor, nil).Run(ctx)
	require.NoError(t, err)

	edited := testFS()
	edited["migrations/001_create_things.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE things (id TEXT);")}

	_, err = NewManager(NewScanner(edited, "migrations"), executor, nil).Status(ctx)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestManager_DetectsGaps(t *testing.T) {
	t.Parallel()
	fsys := testFS()
	fsys["migrations/004_skip.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}

	_, err := NewManager(NewScanner(fsys, "migrations"), openTestDB(t), nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestSQLiteConfig(t *testing.T) {
	t.Parallel()

	dsn := DefaultSQLiteConfig("data/app.db").ConnectionString()
	assert.True(t, strings.HasPrefix(dsn, "data/app.db?"))
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "foreign_keys%281%29")

	withQuery := DefaultSQLiteConfig("file:app.db?cache=shared").ConnectionString()
	assert.True(t, strings.HasPrefix(withQuery, "file:app.db?cache=shared&"))

	invalid := DefaultSQLiteConfig("app.db")
	invalid.JournalMode = "FAST"
	assert.Error(t, invalid.Validate())
	assert.Error(t, SQLiteConfig{}.Validate())
}
