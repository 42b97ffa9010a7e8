package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a snapshot id, or the active pointer, does
// not exist.
var ErrNotFound = errors.New("snapshot not found")

// #region snapshot-record
// SnapshotRecord is the header row of one persisted snapshot.
type SnapshotRecord struct {
	VersionID   string
	ParentID    string
	CreatedAt   time.Time
	ConfigJSON  string
	Note        string
	Exposures   int
	Allocations int
}
// #endregion snapshot-record
