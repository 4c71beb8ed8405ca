package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "atrai.db")

	conn, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// a second open finds everything applied
	conn, err = Open(Config{Path: path})
	require.NoError(t, err)
	defer conn.Close()

	var applied int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&applied))
	assert.Equal(t, 2, applied)

	for _, table := range []string{
		"point_records", "road_segments", "segment_aggregates",
		"tours", "statistics", "analysis_tasks", "collections", "point_features",
	} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestTransactionRollsBack(t *testing.T) {
	conn, err := Open(Config{Path: filepath.Join(t.TempDir(), "tx.db")})
	require.NoError(t, err)
	defer conn.Close()

	boom := errors.New("boom")
	err = Transaction(conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO statistics (tag, statistics, updated_at) VALUES ('x', '{}', 0)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM statistics").Scan(&n))
	assert.Zero(t, n)
}
