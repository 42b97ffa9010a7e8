package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/familiarity"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	version_id   TEXT PRIMARY KEY,
	parent_id    TEXT,
	created_at   TEXT NOT NULL,
	config_json  TEXT NOT NULL,
	note         TEXT,
	FOREIGN KEY (parent_id) REFERENCES snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS exposure_records (
	version_id        TEXT NOT NULL,
	region            TEXT NOT NULL,
	observation_count INTEGER NOT NULL,
	PRIMARY KEY (version_id, region),
	FOREIGN KEY (version_id) REFERENCES snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS allocation_states (
	version_id      TEXT NOT NULL,
	concept_key     TEXT NOT NULL,
	exposure_count  INTEGER NOT NULL,
	committed_count INTEGER,
	has_committed   INTEGER NOT NULL,
	PRIMARY KEY (version_id, concept_key),
	FOREIGN KEY (version_id) REFERENCES snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version_id TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS allocation_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id     TEXT,
	concept_key    TEXT NOT NULL,
	region         TEXT NOT NULL,
	novelty        REAL NOT NULL,
	action         TEXT NOT NULL,
	involved_count INTEGER NOT NULL,
	created_count  INTEGER NOT NULL,
	exposure_count INTEGER NOT NULL,
	decision_json  TEXT,
	created_at     TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store persists core snapshots in SQLite. The core itself never touches it.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// Open opens a SQLite database at path and runs migrations. ":memory:" is
// accepted for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion constructor

// #region save
// SaveSnapshot writes snap as a new version whose parent is the current
// active version, then makes it active. All rows go in one transaction.
func (s *Store) SaveSnapshot(snap adpc.Snapshot, cfg adpc.Config, note string) (SnapshotRecord, error) {
	return s.SaveSnapshotWith(snap, cfg, note, nil)
}

// SaveSnapshotWith is SaveSnapshot with extra writes. within runs inside the
// snapshot transaction before commit; an error from it discards the snapshot.
func (s *Store) SaveSnapshotWith(snap adpc.Snapshot, cfg adpc.Config, note string, within func(tx *sql.Tx) error) (SnapshotRecord, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentID sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_snapshot WHERE id = 1`).Scan(&parentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("get active: %w", err)
	}

	rec := SnapshotRecord{
		VersionID:   uuid.New().String(),
		ParentID:    parentID.String,
		CreatedAt:   time.Now().UTC(),
		ConfigJSON:  string(cfgJSON),
		Note:        note,
		Exposures:   len(snap.Exposures),
		Allocations: len(snap.Allocations),
	}

	_, err = tx.Exec(
		`INSERT INTO snapshots (version_id, parent_id, created_at, config_json, note)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.VersionID, nullIfEmpty(rec.ParentID), rec.CreatedAt.Format(time.RFC3339Nano),
		rec.ConfigJSON, nullIfEmpty(note),
	)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("insert snapshot: %w", err)
	}

	for _, r := range snap.Exposures {
		_, err = tx.Exec(
			`INSERT INTO exposure_records (version_id, region, observation_count) VALUES (?, ?, ?)`,
			rec.VersionID, string(r.Region), r.ObservationCount,
		)
		if err != nil {
			return SnapshotRecord{}, fmt.Errorf("insert exposure %s: %w", r.Region, err)
		}
	}

	for _, a := range snap.Allocations {
		var committed any
		if a.HasCommitted {
			committed = a.CommittedCount
		}
		_, err = tx.Exec(
			`INSERT INTO allocation_states (version_id, concept_key, exposure_count, committed_count, has_committed)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.VersionID, a.Key, a.ExposureCount, committed, boolToInt(a.HasCommitted),
		)
		if err != nil {
			return SnapshotRecord{}, fmt.Errorf("insert allocation %q: %w", a.Key, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("set active: %w", err)
	}

	if within != nil {
		if err := within(tx); err != nil {
			return SnapshotRecord{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return SnapshotRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}
// #endregion save

// #region load
// ActiveID returns the active version id, or ErrNotFound when nothing has
// been saved yet.
func (s *Store) ActiveID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT version_id FROM active_snapshot WHERE id = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get active: %w", err)
	}
	return id, nil
}

// LoadActive reads the active snapshot.
func (s *Store) LoadActive() (adpc.Snapshot, SnapshotRecord, error) {
	id, err := s.ActiveID()
	if err != nil {
		return adpc.Snapshot{}, SnapshotRecord{}, err
	}
	return s.LoadSnapshot(id)
}

// LoadSnapshot reads one snapshot by version id.
func (s *Store) LoadSnapshot(id string) (adpc.Snapshot, SnapshotRecord, error) {
	rec, err := s.header(id)
	if err != nil {
		return adpc.Snapshot{}, SnapshotRecord{}, err
	}

	snap := adpc.Snapshot{
		Exposures:   []familiarity.Record{},
		Allocations: []allocate.State{},
	}

	rows, err := s.db.Query(
		`SELECT region, observation_count FROM exposure_records WHERE version_id = ? ORDER BY region`, id,
	)
	if err != nil {
		return adpc.Snapshot{}, SnapshotRecord{}, fmt.Errorf("query exposures: %w", err)
	}
	for rows.Next() {
		var region string
		var r familiarity.Record
		if err := rows.Scan(&region, &r.ObservationCount); err != nil {
			rows.Close()
			return adpc.Snapshot{}, SnapshotRecord{}, fmt.Errorf("scan exposure: %w", err)
		}
		r.Region = partition.RegionID(region)
		snap.Exposures = append(snap.Exposures, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return adpc.Snapshot{}, SnapshotRecord{}, fmt.Errorf("exposure rows: %w", err)
	}

	rows, err = s.db.Query(
		`SELECT concept_key, exposure_count, committed_count, has_committed
		 FROM allocation_states WHERE version_id = ? ORDER BY concept_key`, id,
	)
	if err != nil {
		return adpc.Snapshot{}, SnapshotRecord{}, fmt.Errorf("query allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a allocate.State
		var committed sql.NullInt64
		var has int
		if err := rows.Scan(&a.Key, &a.ExposureCount, &committed, &has); err != nil {
			return adpc.Snapshot{}, SnapshotRecord{}, fmt.Errorf("scan allocation: %w", err)
		}
		a.HasCommitted = has != 0
		if committed.Valid {
			a.CommittedCount = int(committed.Int64)
		}
		snap.Allocations = append(snap.Allocations, a)
	}
	if err := rows.Err(); err != nil {
		return adpc.Snapshot{}, SnapshotRecord{}, fmt.Errorf("allocation rows: %w", err)
	}

	rec.Exposures = len(snap.Exposures)
	rec.Allocations = len(snap.Allocations)
	return snap, rec, nil
}

// LoadConfig decodes the core config stored with a snapshot.
func (s *Store) LoadConfig(id string) (adpc.Config, error) {
	rec, err := s.header(id)
	if err != nil {
		return adpc.Config{}, err
	}
	var cfg adpc.Config
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &cfg); err != nil {
		return adpc.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (s *Store) header(id string) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var parentID, note sql.NullString
	var createdStr string
	err := s.db.QueryRow(
		`SELECT version_id, parent_id, created_at, config_json, note FROM snapshots WHERE version_id = ?`, id,
	).Scan(&rec.VersionID, &parentID, &createdStr, &rec.ConfigJSON, &note)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	rec.ParentID = parentID.String
	rec.Note = note.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}
// #endregion load

// #region rollback
// Rollback sets the active pointer to an existing version.
func (s *Store) Rollback(id string) error {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE version_id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check snapshot: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_snapshot (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`, id,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region list
// ListSnapshots returns up to limit snapshot headers, newest first, with row
// counts filled in.
func (s *Store) ListSnapshots(limit int) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT s.version_id, s.parent_id, s.created_at, s.config_json, s.note,
		        (SELECT COUNT(*) FROM exposure_records e WHERE e.version_id = s.version_id),
		        (SELECT COUNT(*) FROM allocation_states a WHERE a.version_id = s.version_id)
		 FROM snapshots s ORDER BY s.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		var parentID, note sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.VersionID, &parentID, &createdStr, &rec.ConfigJSON, &note,
			&rec.Exposures, &rec.Allocations); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.ParentID = parentID.String
		rec.Note = note.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
// #endregion helpers
