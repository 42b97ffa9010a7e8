package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-allocation
// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// LogAllocation writes an allocation entry to the allocation_log table.
func LogAllocation(db Execer, entry AllocationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO allocation_log (version_id, concept_key, region, novelty, action,
		   involved_count, created_count, exposure_count, decision_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.VersionID),
		entry.ConceptKey,
		entry.Region,
		entry.Novelty,
		entry.Action,
		entry.InvolvedCount,
		entry.CreatedCount,
		entry.ExposureCount,
		nullIfEmpty(entry.DecisionJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log allocation: %w", err)
	}
	return nil
}
// #endregion log-allocation

// #region list-allocations
// ListAllocations returns up to limit entries, newest first. An empty key
// lists every concept.
func ListAllocations(db *sql.DB, key string, limit int) ([]AllocationEntry, error) {
	rows, err := db.Query(
		`SELECT id, version_id, concept_key, region, novelty, action,
		        involved_count, created_count, exposure_count, decision_json, created_at
		 FROM allocation_log
		 WHERE (? = '' OR concept_key = ?)
		 ORDER BY id DESC LIMIT ?`,
		key, key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var entries []AllocationEntry
	for rows.Next() {
		var e AllocationEntry
		var versionID, decisionJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &versionID, &e.ConceptKey, &e.Region, &e.Novelty, &e.Action,
			&e.InvolvedCount, &e.CreatedCount, &e.ExposureCount, &decisionJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.VersionID = versionID.String
		e.DecisionJSON = decisionJSON.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion list-allocations

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
