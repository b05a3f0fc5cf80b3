package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *OperationDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}

func record(t *testing.T, db *OperationDB, op Operation) {
	t.Helper()
	require.NoError(t, db.RecordOperation(context.Background(), op))
}

// TestDatabaseCreation verifies database file creation and initialization
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "audit.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	require.NoError(t, db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

// TestSchemaCreation verifies tables and indexes are created
func TestSchemaCreation(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"operations", "schema_version"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	for _, index := range []string{"idx_operation_id", "idx_timestamp", "idx_action", "idx_path", "idx_reason"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		require.NoError(t, err, index)
	}
}

func TestRecordAndReadBack(t *testing.T) {
	db := openTestDB(t)
	ts := time.Now().Add(-time.Minute).Truncate(time.Second)

	record(t, db, Operation{
		OperationID: "op-1",
		Timestamp:   ts,
		Action:      ActionMove,
		Operation:   "move",
		Path:        "/srv/a.txt",
		Destination: "/srv/b/a.txt",
		ObjectType:  "file",
		Size:        42,
	})

	ops, err := db.GetOperation("op-1")
	require.NoError(t, err)
	require.Len(t, ops, 1)

	got := ops[0]
	assert.NotZero(t, got.ID)
	assert.Equal(t, ActionMove, got.Action)
	assert.Equal(t, "/srv/b/a.txt", got.Destination)
	assert.Equal(t, int64(42), got.Size)
	assert.True(t, ts.Equal(got.Timestamp), "timestamp %v != %v", got.Timestamp, ts)
	assert.Empty(t, got.Reason)
	assert.Empty(t, got.ErrorMessage)
}

func TestZeroTimestampDefaultsToNow(t *testing.T) {
	db := openTestDB(t)
	before := time.Now().Add(-time.Second)

	record(t, db, Operation{OperationID: "x", Action: ActionDelete, Operation: "delete_file", Path: "/srv/x", ObjectType: "file"})

	ops, err := db.GetRecentOperations(1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.True(t, ops[0].Timestamp.After(before))
}

func seed(t *testing.T, db *OperationDB) {
	t.Helper()
	now := time.Now()
	rows := []Operation{
		{OperationID: "a", Action: ActionDelete, Operation: "delete_file", Path: "/srv/logs/1.log", ObjectType: "file", Size: 100},
		{OperationID: "a", Action: ActionCleanup, Operation: "delete_file", Path: "/srv/logs", ObjectType: "directory"},
		{OperationID: "b", Action: ActionDelete, Operation: "delete_file", Path: "/srv/logs/2.log", ObjectType: "file", Size: 300},
		{OperationID: "c", Action: ActionReject, Operation: "delete_directory", Path: "/etc", ObjectType: "directory", Reason: "protected-path"},
		{OperationID: "d", Action: ActionReject, Operation: "delete_file", Path: "/srv/.env", ObjectType: "file", Reason: "protected-name"},
		{OperationID: "e", Action: ActionError, Operation: "delete_file", Path: "/srv/missing", ObjectType: "file", ErrorMessage: "not found"},
		{OperationID: "f", Action: ActionMove, Operation: "move", Path: "/srv/a", Destination: "/srv/b", ObjectType: "file", Size: 7},
	}
	for i, op := range rows {
		op.Timestamp = now.Add(time.Duration(i-len(rows)) * time.Second)
		record(t, db, op)
	}
}

// TestQueryMethods tests the query helpers against a seeded database
func TestQueryMethods(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)

	t.Run("recent", func(t *testing.T) {
		ops, err := db.GetRecentOperations(3)
		require.NoError(t, err)
		require.Len(t, ops, 3)
		assert.Equal(t, "f", ops[0].OperationID)
	})

	t.Run("by action", func(t *testing.T) {
		ops, err := db.GetOperationsByAction(ActionReject)
		require.NoError(t, err)
		assert.Len(t, ops, 2)
	})

	t.Run("by reason", func(t *testing.T) {
		ops, err := db.GetOperationsByReason("protected-name")
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, "/srv/.env", ops[0].Path)
	})

	t.Run("by path", func(t *testing.T) {
		ops, err := db.GetOperationsByPath("/srv/logs%")
		require.NoError(t, err)
		assert.Len(t, ops, 3)
	})

	t.Run("by operation id", func(t *testing.T) {
		ops, err := db.GetOperation("a")
		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, ActionDelete, ops[0].Action)
		assert.Equal(t, ActionCleanup, ops[1].Action)
	})

	t.Run("largest deletions", func(t *testing.T) {
		ops, err := db.GetLargestDeletions(1)
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, int64(300), ops[0].Size)
	})

	t.Run("date range", func(t *testing.T) {
		ops, err := db.GetOperationsByDateRange(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, ops, 7)
	})
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)

	stats, err := db.GetStats(1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDeletions)
	assert.Equal(t, 1, stats.TotalMoves)
	assert.Equal(t, 2, stats.TotalRejections)
	assert.Equal(t, 1, stats.TotalErrors)
	assert.Equal(t, int64(400), stats.TotalSpaceFreed)
	assert.Equal(t, map[string]int{"protected-path": 1, "protected-name": 1}, stats.ByReason)
	assert.Equal(t, 1, stats.ByAction[ActionCleanup])

	dbStats, err := db.GetDatabaseStats()
	require.NoError(t, err)
	assert.Equal(t, int64(7), dbStats.TotalRecords)
	assert.Positive(t, dbStats.SizeBytes)
	assert.True(t, dbStats.OldestRecord.Before(dbStats.NewestRecord))
}

func TestPagination(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 25; i++ {
		record(t, db, Operation{
			OperationID: fmt.Sprintf("op-%d", i),
			Timestamp:   time.Now().Add(time.Duration(i) * time.Millisecond),
			Action:      ActionDelete,
			Operation:   "delete_file",
			Path:        fmt.Sprintf("/srv/f%d", i),
			ObjectType:  "file",
		})
	}

	page, total, err := db.GetRecentOperationsPaginated(10, 20)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, page, 5)
}

func TestDeleteOldRecords(t *testing.T) {
	db := openTestDB(t)
	record(t, db, Operation{OperationID: "old", Timestamp: time.Now().AddDate(0, 0, -40), Action: ActionDelete, Operation: "delete_file", Path: "/srv/old", ObjectType: "file"})
	record(t, db, Operation{OperationID: "new", Action: ActionDelete, Operation: "delete_file", Path: "/srv/new", ObjectType: "file"})

	n, err := db.DeleteOldRecords(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, db.Vacuum())
	ops, err := db.GetRecentOperations(10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "new", ops[0].OperationID)
}

// TestConcurrentReadWrite verifies concurrent read and write operations
func TestConcurrentReadWrite(t *testing.T) {
	db := openTestDB(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			err := db.RecordOperation(context.Background(), Operation{
				OperationID: fmt.Sprintf("w%d", i),
				Action:      ActionDelete,
				Operation:   "delete_file",
				Path:        fmt.Sprintf("/srv/w%d", i),
				ObjectType:  "file",
			})
			if err != nil {
				errs <- fmt.Errorf("writer: %w", err)
				return
			}
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if _, err := db.GetRecentOperations(10); err != nil {
					errs <- fmt.Errorf("reader %d: %w", id, err)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestOpenFailsOnUnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Open(filepath.Join(blocker, "audit.db"))
	assert.Error(t, err)
}
