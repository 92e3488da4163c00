package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	assert.NoError(t, db.Ping())
}

func TestMigrationsApply(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	tables := []string{
		"device_config", "vehicles", "mechanics", "parts", "inventory_movements",
		"maintenance_records", "maintenance_parts", "part_requests",
		"part_request_items", "receipts", "shift_reports",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpenForTesting_Isolated(t *testing.T) {
	first, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })

	second, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	_, err = first.Exec(`INSERT INTO parts (id, org_id, name, created_at) VALUES ('p1', 'org', 'Filter', datetime('now'))`)
	require.NoError(t, err)

	var count int
	require.NoError(t, second.QueryRow("SELECT COUNT(*) FROM parts").Scan(&count))
	assert.Zero(t, count)
}

func TestOpen_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestMovementsAreImmutable(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`INSERT INTO parts (id, org_id, name, created_at) VALUES ('p1', 'org', 'Filter', datetime('now'))`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO inventory_movements (id, org_id, part_id, quantity, movement_type, created_at)
		VALUES ('m1', 'org', 'p1', 5, 'IN', datetime('now'))`)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE inventory_movements SET quantity = 50 WHERE id = 'm1'`)
	assert.Error(t, err)
}
