package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flexscale/flexscale/pkg/ports"
	"github.com/flexscale/flexscale/pkg/types"
)

func (db *SQLiteStorage) UpsertSizing(functionID string, sizing types.FunctionSizing) error {
	query := `
	INSERT INTO function_sizings (functionId, provisionedMemMB, functionMemMB, callerMemMB)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(functionId) DO UPDATE SET
		provisionedMemMB = excluded.provisionedMemMB,
		functionMemMB = excluded.functionMemMB,
		callerMemMB = excluded.callerMemMB,
		updatedAt = CURRENT_TIMESTAMP
	`
	_, err := db.conn.Exec(query, functionID, sizing.ProvisionedMemMB, sizing.FunctionMemMB, sizing.CallerMemMB)
	if err != nil {
		return fmt.Errorf("failed to upsert sizing: %w", err)
	}
	return nil
}

func (db *SQLiteStorage) GetSizing(functionID string) (*types.FunctionSizing, error) {
	var sizing types.FunctionSizing
	query := `SELECT provisionedMemMB, functionMemMB, callerMemMB FROM function_sizings WHERE functionId = ?`
	err := db.conn.QueryRow(query, functionID).
		Scan(&sizing.ProvisionedMemMB, &sizing.FunctionMemMB, &sizing.CallerMemMB)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sizing: %w", err)
	}
	return &sizing, nil
}

func (db *SQLiteStorage) ListFunctionIDs() ([]string, error) {
	rows, err := db.conn.Query(`SELECT functionId FROM function_sizings ORDER BY functionId`)
	if err != nil {
		return nil, fmt.Errorf("failed to list functions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan function id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate functions: %w", err)
	}
	return ids, nil
}

func (db *SQLiteStorage) DeleteSizing(functionID string) error {
	if _, err := db.conn.Exec(`DELETE FROM function_sizings WHERE functionId = ?`, functionID); err != nil {
		return fmt.Errorf("failed to delete sizing: %w", err)
	}
	return nil
}

func (db *SQLiteStorage) GetState(functionID string) (*ports.StateRecord, error) {
	record := ports.StateRecord{FunctionID: functionID}
	query := `SELECT activity, waiting, currentScale, lastRescale FROM scaling_states WHERE functionId = ?`
	err := db.conn.QueryRow(query, functionID).
		Scan(&record.State.Activity, &record.State.Waiting, &record.CurrentScale, &record.LastRescale)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scaling state: %w", err)
	}
	return &record, nil
}

func (db *SQLiteStorage) UpsertState(record ports.StateRecord) error {
	query := `
	INSERT INTO scaling_states (functionId, activity, waiting, currentScale, lastRescale)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(functionId) DO UPDATE SET
		activity = excluded.activity,
		waiting = excluded.waiting,
		currentScale = excluded.currentScale,
		lastRescale = excluded.lastRescale
	`
	_, err := db.conn.Exec(query, record.FunctionID, record.State.Activity, record.State.Waiting,
		record.CurrentScale, record.LastRescale)
	if err != nil {
		return fmt.Errorf("failed to upsert scaling state: %w", err)
	}
	return nil
}

func (db *SQLiteStorage) InsertSamples(functionID string, durationsSecs []float64, observedAt time.Time) error {
	if len(durationsSecs) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO samples (functionId, durationSecs, observedAt) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range durationsSecs {
		if _, err := stmt.Exec(functionID, d, observedAt); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	return nil
}

func (db *SQLiteStorage) DrainSamples(functionID string, cutoff time.Time) ([]float64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT durationSecs FROM samples WHERE functionId = ? AND observedAt < ?`,
		functionID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	var durations []float64
	for rows.Next() {
		var d float64
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		durations = append(durations, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM samples WHERE functionId = ? AND observedAt < ?`,
		functionID, cutoff); err != nil {
		return nil, fmt.Errorf("failed to delete drained samples: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit drain: %w", err)
	}
	return durations, nil
}

func (db *SQLiteStorage) CountPendingSamples(functionID string) (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM samples WHERE functionId = ?`, functionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

func (db *SQLiteStorage) DeleteSamplesBefore(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM samples WHERE observedAt < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge samples: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get purge count: %w", err)
	}
	return affected, nil
}

func (db *SQLiteStorage) AcquireLease(key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	// Insert wins for a new key; otherwise take over only when the lease
	// is ours already or has expired.
	query := `
	INSERT INTO leases (key, owner, expiresAt)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		owner = excluded.owner,
		expiresAt = excluded.expiresAt
	WHERE leases.owner = excluded.owner OR leases.expiresAt <= ?
	`
	result, err := db.conn.Exec(query, key, owner, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get lease result: %w", err)
	}
	return affected > 0, nil
}

func (db *SQLiteStorage) ReleaseLease(key, owner string) error {
	if _, err := db.conn.Exec(`DELETE FROM leases WHERE key = ? AND owner = ?`, key, owner); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	return nil
}

func (db *SQLiteStorage) DeleteExpiredLeases(now time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM leases WHERE expiresAt <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired leases: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get expired lease count: %w", err)
	}
	return affected, nil
}
