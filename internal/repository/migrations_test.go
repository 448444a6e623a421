package repository

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_add_index.up.sql": {Data: []byte("CREATE INDEX x;")},
		"m/000001_init.up.sql":      {Data: []byte("CREATE TABLE t;")},
		"m/000001_init.down.sql":    {Data: []byte("DROP TABLE t;")},
		"m/README.md":               {Data: []byte("notes")},
	}

	migrations, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, Migration{Version: 1, Name: "init", SQL: "CREATE TABLE t;"}, migrations[0])
	assert.Equal(t, "add_index", migrations[1].Name)

	applied := map[int]time.Time{1: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	state := MergeMigrationState(migrations, applied)
	require.Len(t, state, 2)
	assert.True(t, state[0].Applied)
	require.NotNil(t, state[0].AppliedAt)
	assert.False(t, state[1].Applied)
	assert.Nil(t, state[1].AppliedAt)
}

func TestLoadMigrations_Malformed(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"m/init.up.sql": {Data: []byte("x")}}, "m")
	require.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"m/000001_a.up.sql": {Data: []byte("x")},
		"m/1_b.up.sql":      {Data: []byte("y")},
	}, "m")
	require.ErrorContains(t, err, "duplicate")

	_, err = LoadMigrations(fstest.MapFS{}, "missing")
	require.Error(t, err)
}
