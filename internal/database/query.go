package database

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, operation_id, timestamp, action, operation, path, destination,
	       object_type, size, reason, detail, error_message
	FROM operations
`

// GetRecentOperations returns the N most recent events
func (d *OperationDB) GetRecentOperations(limit int) ([]Operation, error) {
	return d.queryOperations(selectColumns+`ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// GetOperationsByDateRange returns events within a time range
func (d *OperationDB) GetOperationsByDateRange(start, end time.Time) ([]Operation, error) {
	return d.queryOperations(selectColumns+`WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp DESC, id DESC`, start, end)
}

// GetOperationsByReason returns events filtered by rejection or skip reason
func (d *OperationDB) GetOperationsByReason(reason string) ([]Operation, error) {
	return d.queryOperations(selectColumns+`WHERE reason = ? ORDER BY timestamp DESC, id DESC`, reason)
}

// GetOperationsByPath returns events whose path matches a LIKE pattern
func (d *OperationDB) GetOperationsByPath(pathPattern string) ([]Operation, error) {
	return d.queryOperations(selectColumns+`WHERE path LIKE ? ORDER BY timestamp DESC, id DESC`, pathPattern)
}

// GetOperationsByAction returns events filtered by action
func (d *OperationDB) GetOperationsByAction(action string) ([]Operation, error) {
	return d.queryOperations(selectColumns+`WHERE action = ? ORDER BY timestamp DESC, id DESC`, action)
}

// GetOperation returns every event written for one guarded request, in
// insertion order
func (d *OperationDB) GetOperation(operationID string) ([]Operation, error) {
	return d.queryOperations(selectColumns+`WHERE operation_id = ? ORDER BY id ASC`, operationID)
}

// GetLargestDeletions returns the N largest deletions by size
func (d *OperationDB) GetLargestDeletions(limit int) ([]Operation, error) {
	return d.queryOperations(selectColumns+`WHERE action = 'DELETE' ORDER BY size DESC LIMIT ?`, limit)
}

// GetTotalSpaceFreed returns total bytes freed in a time range
func (d *OperationDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(size), 0)
	FROM operations
	WHERE action = 'DELETE' AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, start, end).Scan(&total)
	return total, err
}

// GetCountByReason returns rejected and skipped events grouped by reason
func (d *OperationDB) GetCountByReason(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT reason, COUNT(*)
	FROM operations
	WHERE reason IS NOT NULL AND reason != '' AND timestamp >= ?
	GROUP BY reason
	`, since)
}

// GetCountByAction returns events grouped by action
func (d *OperationDB) GetCountByAction(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT action, COUNT(*)
	FROM operations
	WHERE timestamp >= ?
	GROUP BY action
	`, since)
}

func (d *OperationDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

// Stats holds aggregated statistics
type Stats struct {
	TotalDeletions  int            `json:"total_deletions"`
	TotalMoves      int            `json:"total_moves"`
	TotalRejections int            `json:"total_rejections"`
	TotalErrors     int            `json:"total_errors"`
	TotalSpaceFreed int64          `json:"total_space_freed"`
	ByReason        map[string]int `json:"by_reason"`
	ByAction        map[string]int `json:"by_action"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
}

// GetStats returns comprehensive statistics for the last days days
func (d *OperationDB) GetStats(days int) (*Stats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &Stats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'MOVE' THEN 1 END),
			COUNT(CASE WHEN action = 'REJECT' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM operations
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeletions, &stats.TotalMoves, &stats.TotalRejections, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now)
	if err != nil {
		return nil, err
	}

	stats.ByReason, err = d.GetCountByReason(since)
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetCountByAction(since)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than specified days
func (d *OperationDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM operations WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// GetRecentOperationsPaginated returns paginated recent events with total count
func (d *OperationDB) GetRecentOperationsPaginated(limit, offset int) ([]Operation, int, error) {
	var totalCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM operations").Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	records, err := d.queryOperations(selectColumns+`ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	return records, totalCount, err
}

// queryOperations executes a query and scans the results
func (d *OperationDB) queryOperations(query string, args ...interface{}) ([]Operation, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Operation
	for rows.Next() {
		var r Operation
		var dest, reason, detail, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.OperationID, &r.Timestamp, &r.Action, &r.Operation, &r.Path, &dest,
			&r.ObjectType, &r.Size, &reason, &detail, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.Destination = dest.String
		r.Reason = reason.String
		r.Detail = detail.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}
