package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/familiarity"
	"github.com/danielpatrickdp/adpc/internal/logging"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot() adpc.Snapshot {
	return adpc.Snapshot{
		Exposures: []familiarity.Record{
			{Region: "1-2-3-4", ObservationCount: 3},
			{Region: "a-b-c-d", ObservationCount: 1},
		},
		Allocations: []allocate.State{
			{Key: "cat", ExposureCount: 3, CommittedCount: 140, HasCommitted: true},
			{Key: "dog", ExposureCount: 1},
		},
	}
}

// #region save-load-tests
func TestSaveAndLoadActive(t *testing.T) {
	s := tempDB(t)
	if _, _, err := s.LoadActive(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	rec, err := s.SaveSnapshot(sampleSnapshot(), adpc.DefaultConfig(), "first")
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if rec.VersionID == "" || rec.ParentID != "" {
		t.Fatalf("unexpected header: %+v", rec)
	}

	snap, got, err := s.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if got.VersionID != rec.VersionID || got.Note != "first" {
		t.Fatalf("expected active %s, got %+v", rec.VersionID, got)
	}
	if diff := cmp.Diff(sampleSnapshot(), snap); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveChainsParents(t *testing.T) {
	s := tempDB(t)
	v1, err := s.SaveSnapshot(sampleSnapshot(), adpc.DefaultConfig(), "")
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	v2, err := s.SaveSnapshot(adpc.Snapshot{}, adpc.DefaultConfig(), "empty")
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if v2.ParentID != v1.VersionID {
		t.Fatalf("expected parent %s, got %s", v1.VersionID, v2.ParentID)
	}

	snap, _, err := s.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if len(snap.Exposures) != 0 || len(snap.Allocations) != 0 {
		t.Fatalf("expected empty active snapshot, got %+v", snap)
	}
}

func TestLoadConfig(t *testing.T) {
	s := tempDB(t)
	cfg := adpc.DefaultConfig()
	cfg.Partition.Seed = 99
	rec, err := s.SaveSnapshot(sampleSnapshot(), cfg, "")
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err := s.LoadConfig(rec.VersionID)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

// #endregion save-load-tests

// #region rollback-tests
func TestRollback(t *testing.T) {
	s := tempDB(t)
	v1, _ := s.SaveSnapshot(sampleSnapshot(), adpc.DefaultConfig(), "")
	if _, err := s.SaveSnapshot(adpc.Snapshot{}, adpc.DefaultConfig(), ""); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if err := s.Rollback(v1.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	snap, rec, err := s.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if rec.VersionID != v1.VersionID || len(snap.Allocations) != 2 {
		t.Fatalf("expected rollback to v1, got %+v", rec)
	}

	v3, _ := s.SaveSnapshot(snap, adpc.DefaultConfig(), "after rollback")
	if v3.ParentID != v1.VersionID {
		t.Fatalf("expected new snapshot to branch from v1, got parent %s", v3.ParentID)
	}
}

func TestRollbackUnknownVersion(t *testing.T) {
	s := tempDB(t)
	if err := s.Rollback("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.LoadSnapshot("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from LoadSnapshot, got %v", err)
	}
}

// #endregion rollback-tests

// #region save-with-tests
func countLogRows(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM allocation_log`).Scan(&n); err != nil {
		t.Fatalf("count allocation_log: %v", err)
	}
	return n
}

func TestSaveSnapshotWithWritesLogAtomically(t *testing.T) {
	s := tempDB(t)
	entry := logging.AllocationEntry{ConceptKey: "cat", Region: "1-2-3-4", Action: "pending", InvolvedCount: 40}

	rec, err := s.SaveSnapshotWith(sampleSnapshot(), adpc.DefaultConfig(), "with log", func(tx *sql.Tx) error {
		return logging.LogAllocation(tx, entry)
	})
	if err != nil {
		t.Fatalf("SaveSnapshotWith: %v", err)
	}
	if n := countLogRows(t, s); n != 1 {
		t.Fatalf("expected 1 log row, got %d", n)
	}
	if id, err := s.ActiveID(); err != nil || id != rec.VersionID {
		t.Fatalf("expected active %s, got %s (%v)", rec.VersionID, id, err)
	}
}

func TestSaveSnapshotWithFailureDiscardsEverything(t *testing.T) {
	s := tempDB(t)
	boom := errors.New("log write failed")

	_, err := s.SaveSnapshotWith(sampleSnapshot(), adpc.DefaultConfig(), "", func(tx *sql.Tx) error {
		if err := logging.LogAllocation(tx, logging.AllocationEntry{ConceptKey: "cat", Action: "pending"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if n := countLogRows(t, s); n != 0 {
		t.Fatalf("expected log rows rolled back, got %d", n)
	}
	if _, err := s.ActiveID(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no active snapshot, got %v", err)
	}
	list, err := s.ListSnapshots(10)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no snapshots, got %d", len(list))
	}
}

// #endregion save-with-tests

// #region list-tests
func TestListSnapshots(t *testing.T) {
	s := tempDB(t)
	var ids []string
	for i := 0; i < 4; i++ {
		rec, err := s.SaveSnapshot(sampleSnapshot(), adpc.DefaultConfig(), "")
		if err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
		ids = append(ids, rec.VersionID)
	}

	list, err := s.ListSnapshots(3)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(list))
	}
	if list[0].VersionID != ids[3] || list[2].VersionID != ids[1] {
		t.Fatalf("expected newest first, got %s .. %s", list[0].VersionID, list[2].VersionID)
	}
	if list[0].Exposures != 2 || list[0].Allocations != 2 {
		t.Fatalf("expected row counts 2/2, got %d/%d", list[0].Exposures, list[0].Allocations)
	}
}

func TestMemoryDatabase(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, err := s.SaveSnapshot(sampleSnapshot(), adpc.DefaultConfig(), ""); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if _, _, err := s.LoadActive(); err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
}

// #endregion list-tests

// #region core-round-trip
func TestCoreStateSurvivesStore(t *testing.T) {
	s := tempDB(t)
	a, err := adpc.New(adpc.DefaultConfig())
	if err != nil {
		t.Fatalf("adpc.New: %v", err)
	}
	for _, w := range []string{"cat", "cat", "cat", "dog"} {
		if _, err := a.Observe(w); err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}
	if _, err := s.SaveSnapshot(a.Snapshot(), a.Config(), ""); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	snap, _, err := s.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	b, _ := adpc.New(adpc.DefaultConfig())
	if err := b.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	obs, err := b.Observe("cat")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if obs.Decision.Action != allocate.ActionReuse {
		t.Fatalf("expected reuse after reload, got %s", obs.Decision.Action)
	}
}

// #endregion core-round-trip
