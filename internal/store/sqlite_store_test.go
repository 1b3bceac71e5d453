package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_OpenSqlite_CreatesNamedDatabase(t *testing.T) {
	// given
	dir := t.TempDir()

	// when
	s, err := OpenSqlite(context.Background(), dir)
	require.NoError(t, err)
	defer s.Close()

	// then
	assert.Equal(t, SqlitePath(dir), s.Path())
	_, statErr := os.Stat(SqlitePath(dir))
	assert.NoError(t, statErr, "database file should exist")
}

func Test_OpenSqlite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenSqlite(ctx, dir)
	require.NoError(t, err)
	created, err := s.Insert(ctx, "Widget", 5)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenSqlite(ctx, dir)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.FindAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []Product{*created}, all)
}

func Test_MigrateSqlite_Version(t *testing.T) {
	path := SqlitePath(t.TempDir())

	version, err := MigrateSqlite(path)
	require.NoError(t, err)
	assert.Equal(t, uint(SchemaVersion), version)

	// running again is a no-op
	version, err = MigrateSqlite(path)
	require.NoError(t, err)
	assert.Equal(t, uint(SchemaVersion), version)
}

func Test_SqliteStore_RejectsNegativeQuantity(t *testing.T) {
	s, err := OpenSqlite(context.Background(), t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(context.Background(), "Broken", -1)
	assert.Error(t, err)
}
