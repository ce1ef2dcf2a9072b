package migration

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/flowstate/agency/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	source := fstest.MapFS{
		"000002_b.up.sql":   {Data: []byte("SELECT 1;")},
		"000002_b.down.sql": {Data: []byte("SELECT 1;")},
		"000001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"000001_a.down.sql": {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("notes")},
	}
	names, err := List(source)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_a", "000002_b"}, names)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := List(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		up, err := fs.ReadFile(migrations.FS, name+".up.sql")
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(up)), name)

		_, err = fs.Stat(migrations.FS, name+".down.sql")
		assert.NoError(t, err, "%s has no down migration", name)
	}
}

func TestEmbeddedMigrationsCreateResourceTables(t *testing.T) {
	data, err := fs.ReadFile(migrations.FS, "000002_create_resource_tables.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"projects", "users", "teams", "clients", "goals"} {
		assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
