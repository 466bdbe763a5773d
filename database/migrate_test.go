package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.Replace(up, ".up.sql", ".down.sql", 1)
		_, err := migrationsFS.ReadFile(down)
		assert.NoError(t, err, "missing down migration for %s", up)
	}
}

func TestMigrationSourceOpens(t *testing.T) {
	t.Parallel()

	d := migrationsFromSource()
	first, err := d.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}

func TestInitMigrationCreatesStateTables(t *testing.T) {
	t.Parallel()

	for _, table := range []string{"credentials", "candidate_sync", "retry_queue"} {
		assert.Contains(t, initMigrationUp, "CREATE TABLE IF NOT EXISTS "+table)
		assert.Contains(t, initMigrationDown, "DROP TABLE IF EXISTS "+table)
	}
}
