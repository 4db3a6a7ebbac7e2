package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	query := "UPDATE t SET a = ?, b = '?' WHERE c = ?"

	assert.Equal(t, query, Rebind(DriverSQLite, query))
	assert.Equal(t, "UPDATE t SET a = $1, b = '?' WHERE c = $2", Rebind(DriverPostgres, query))
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE scratch (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "dsn")
	require.Error(t, err)
	assert.False(t, Known("oracle"))
	assert.True(t, Known(DriverPostgres))

	_, err = OpenPostgres("  ")
	require.Error(t, err)
}
