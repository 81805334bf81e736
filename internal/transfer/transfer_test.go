package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tempo/internal/core"
	"tempo/internal/stats"
	"tempo/internal/store"
	"tempo/internal/store/memory"
	"tempo/internal/testutil"
)

func newTestReconciler(t *testing.T, ds *core.Dataset) (*Reconciler, *store.DB) {
	t.Helper()

	db := store.NewDB(memory.NewSeeded(ds))
	clock := testutil.NewClock(time.UnixMilli(50_000))

	return New(db, clock, nil), db
}

func snapshot(t *testing.T, db *store.DB) *core.Dataset {
	t.Helper()

	ds, err := db.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	return ds
}

func TestImportNewRecordStopped(t *testing.T) {
	r, db := newTestReconciler(t, core.NewDataset())

	report, err := r.Import(context.Background(), 1, []Record{
		{CategoryID: 1, AccountID: 2, HourlyRate: 10, StartTime: 1000, EndTime: 2000,
			TotalMs: 1000, TotalAmount: 10},
	}, PolicySkip)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if diff := cmp.Diff(Report{Added: 1}, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	ds := snapshot(t, db)
	if len(ds.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(ds.Sessions))
	}

	s := ds.Sessions[0]
	if s.Status != core.StatusStopped {
		t.Errorf("end time present must infer stopped, got %q", s.Status)
	}
	if len(s.Segments) != 1 || s.Segments[0].EndTime != 2000 {
		t.Errorf("expected one closed segment, got %+v", s.Segments)
	}
	if len(ds.Ops) != 1 || ds.Ops[0].Type != "import_add" {
		t.Errorf("expected one import_add op, got %+v", ds.Ops)
	}
}

func TestImportNewRecordWithoutEndIsRunning(t *testing.T) {
	r, db := newTestReconciler(t, core.NewDataset())

	if _, err := r.Import(context.Background(), 1, []Record{
		{CategoryID: 1, AccountID: 2, HourlyRate: 10, StartTime: 1000},
	}, PolicySkip); err != nil {
		t.Fatalf("import: %v", err)
	}

	s := snapshot(t, db).Sessions[0]
	if s.Status != core.StatusRunning {
		t.Errorf("missing end time must infer running, got %q", s.Status)
	}
	if s.OpenSegment() != 0 {
		t.Errorf("expected one open segment, got %+v", s.Segments)
	}
}

func existing() *core.Dataset {
	ds := core.NewDataset()
	ds.Sessions = append(ds.Sessions, core.Session{
		ID: 1, UserID: 1, CategoryID: 1, AccountID: 2,
		HourlyRate: 10, StartTime: 1000, EndTime: 1300,
		TotalMs: 300, TotalAmount: 3,
		Status:   core.StatusStopped,
		Segments: []core.Segment{{StartTime: 1000, EndTime: 1300}},
	})

	return ds
}

func TestImportSkipNeverMutates(t *testing.T) {
	r, db := newTestReconciler(t, existing())
	before := snapshot(t, db).Sessions[0]

	report, err := r.Import(context.Background(), 1, []Record{
		{CategoryID: 1, AccountID: 2, HourlyRate: 10, StartTime: 1000,
			EndTime: 9000, TotalMs: 8000, TotalAmount: 80},
	}, PolicySkip)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if diff := cmp.Diff(Report{Skipped: 1}, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	ds := snapshot(t, db)
	if diff := cmp.Diff(before, ds.Sessions[0]); diff != "" {
		t.Errorf("skip must not touch the existing record (-want +got):\n%s", diff)
	}
	if len(ds.Ops) != 0 {
		t.Errorf("skip must not log, got %+v", ds.Ops)
	}
}

func TestImportUnknownPolicyBehavesAsSkip(t *testing.T) {
	r, _ := newTestReconciler(t, existing())

	report, err := r.Import(context.Background(), 1, []Record{
		{CategoryID: 1, AccountID: 2, HourlyRate: 10, StartTime: 1000, TotalMs: 999},
	}, Policy("replace"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if report.Skipped != 1 {
		t.Errorf("unknown policy must skip, got %+v", report)
	}
}

func TestImportMergeTakesMaxima(t *testing.T) {
	r, db := newTestReconciler(t, existing())

	report, err := r.Import(context.Background(), 1, []Record{
		{CategoryID: 1, AccountID: 2, HourlyRate: 10, StartTime: 1000, TotalMs: 500},
	}, PolicyMerge)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	want := Report{Merged: 1}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	ds := snapshot(t, db)
	s := ds.Sessions[0]
	if s.TotalMs != 500 {
		t.Errorf("merge must take max elapsed: want 500, got %d", s.TotalMs)
	}
	if s.TotalAmount != 3 {
		t.Errorf("smaller incoming amount must not decrease existing: got %v", s.TotalAmount)
	}
	if len(s.Segments) != 1 || s.Segments[0].EndTime != 1300 {
		t.Errorf("merge must not touch segments, got %+v", s.Segments)
	}
	if len(ds.Ops) != 1 || ds.Ops[0].Type != "import_merge" {
		t.Errorf("expected import_merge op, got %+v", ds.Ops)
	}
}

func TestImportOverwriteReplacesPresentFields(t *testing.T) {
	r, db := newTestReconciler(t, existing())

	_, err := r.Import(context.Background(), 1, []Record{
		{CategoryID: 1, AccountID: 2, HourlyRate: 10, StartTime: 1000,
			EndTime: 2000, TotalMs: 100, Status: core.StatusPaused,
			Segments: []core.Segment{{StartTime: 1000, EndTime: 2000}}},
	}, PolicyOverwrite)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	s := snapshot(t, db).Sessions[0]
	if s.EndTime != 2000 || s.TotalMs != 100 || s.Status != core.StatusPaused {
		t.Errorf("overwrite must replace present fields, got %+v", s)
	}

	// absent incoming amount leaves the existing value alone
	if s.TotalAmount != 3 {
		t.Errorf("zero incoming amount must be ignored, got %v", s.TotalAmount)
	}
	if s.Segments[0].EndTime != 2000 {
		t.Errorf("segments must be replaced, got %+v", s.Segments)
	}
}

func TestImportDuplicateWithinBatch(t *testing.T) {
	r, db := newTestReconciler(t, core.NewDataset())

	report, err := r.Import(context.Background(), 1, []Record{
		{CategoryID: 1, AccountID: 2, HourlyRate: 10, StartTime: 1000, TotalMs: 300},
		{CategoryID: 1, AccountID: 2, HourlyRate: 10, StartTime: 1000, TotalMs: 500},
	}, PolicyMerge)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	want := Report{Added: 1, Merged: 1}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	ds := snapshot(t, db)
	if len(ds.Sessions) != 1 {
		t.Fatalf("expected a single session, got %d", len(ds.Sessions))
	}
	if ds.Sessions[0].TotalMs != 500 {
		t.Errorf("expected merged elapsed 500, got %d", ds.Sessions[0].TotalMs)
	}
}

func TestImportDifferentRateIsNewSession(t *testing.T) {
	r, db := newTestReconciler(t, existing())

	report, err := r.Import(context.Background(), 1, []Record{
		{CategoryID: 1, AccountID: 2, HourlyRate: 12, StartTime: 1000, EndTime: 2000},
	}, PolicySkip)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if report.Added != 1 {
		t.Errorf("a different rate must not collide, got %+v", report)
	}
	if n := len(snapshot(t, db).Sessions); n != 2 {
		t.Errorf("expected 2 sessions, got %d", n)
	}
}

func TestExportDefaultFields(t *testing.T) {
	r, _ := newTestReconciler(t, existing())

	rows, err := r.Export(context.Background(), stats.Filter{}, nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	want := map[string]any{
		"id":           int64(1),
		"category_id":  int64(1),
		"account_id":   int64(2),
		"hourly_rate":  10.0,
		"start_time":   int64(1000),
		"end_time":     int64(1300),
		"total_ms":     int64(300),
		"total_amount": 3.0,
		"status":       "stopped",
	}
	if diff := cmp.Diff(want, rows[0]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestExportFieldSelection(t *testing.T) {
	r, _ := newTestReconciler(t, existing())

	rows, err := r.Export(context.Background(), stats.Filter{},
		[]string{"id", "total_amount", "bogus"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	want := map[string]any{"id": int64(1), "total_amount": 3.0}
	if diff := cmp.Diff(want, rows[0]); diff != "" {
		t.Errorf("unknown fields must be dropped (-want +got):\n%s", diff)
	}
}

func TestExportFilterByUser(t *testing.T) {
	ds := existing()
	ds.Sessions = append(ds.Sessions, core.Session{
		ID: 2, UserID: 7, CategoryID: 1, AccountID: 2,
		HourlyRate: 10, StartTime: 5000, Status: core.StatusRunning,
		Segments: []core.Segment{{StartTime: 5000}},
	})

	r, _ := newTestReconciler(t, ds)

	rows, err := r.Export(context.Background(), stats.Filter{UserID: 7}, []string{"id"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if len(rows) != 1 || rows[0]["id"] != int64(2) {
		t.Errorf("expected only user 7's session, got %+v", rows)
	}
}
