// ABOUTME: Tests for the SQL connector against in-memory and file SQLite
// ABOUTME: MySQL is covered at the DSN level only

package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-scaffold/internal/logging"
)

func connectMemory(t *testing.T) *Connector {
	t.Helper()
	c := New(Settings{Driver: "sqlite", Path: ":memory:"}, logging.Discard())
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnector_QueryAndExec(t *testing.T) {
	c := connectMemory(t)
	ctx := context.Background()

	_, err := c.Exec(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL)`)
	require.NoError(t, err)

	n, err := c.Exec(ctx, `INSERT INTO notes (body) VALUES (?), (?)`, "first", "second")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := c.Query(ctx, `SELECT id, body FROM notes WHERE body = ?`, "second")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0]["body"])
	assert.EqualValues(t, 2, rows[0]["id"])

	require.NoError(t, c.HealthCheck(ctx))
}

func TestConnector_NotConnected(t *testing.T) {
	c := New(Settings{Driver: "sqlite", Path: ":memory:"}, logging.Discard())

	_, err := c.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestConnector_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	c := New(Settings{Driver: "sqlite", Path: path, PoolSize: 4}, logging.Discard())
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	assert.NoError(t, c.HealthCheck(context.Background()))
	assert.FileExists(t, path)
}

func TestSettings_DSN(t *testing.T) {
	driver, dsn, err := Settings{
		Driver: "mysql", Host: "db.internal", Port: 3307, Name: "app", User: "svc", Password: "pw",
	}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.Contains(t, dsn, "svc:pw@tcp(db.internal:3307)/app")
	assert.Contains(t, dsn, "parseTime=true")

	_, _, err = Settings{Driver: "oracle"}.DSN()
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	_, _, err = Settings{Driver: "sqlite"}.DSN()
	assert.Error(t, err)

	assert.False(t, Settings{}.Enabled())
}
