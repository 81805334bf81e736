// Package transfer moves session records in and out of the dataset:
// bulk import with duplicate reconciliation and filtered export with
// field selection.
package transfer

import (
	"context"

	"tempo/internal/core"
	"tempo/internal/log"
	"tempo/internal/store"
)

// Policy decides what happens when an imported record collides with an
// existing session. Anything unrecognized behaves as PolicySkip.
type Policy string

const (
	PolicySkip      Policy = "skip"
	PolicyOverwrite Policy = "overwrite"
	PolicyMerge     Policy = "merge"
)

// Record is one externally supplied session. Zero-valued fields are
// treated as absent.
type Record struct {
	CategoryID  int64          `json:"category_id"`
	AccountID   int64          `json:"account_id"`
	HourlyRate  float64        `json:"hourly_rate"`
	StartTime   int64          `json:"start_time"`
	EndTime     int64          `json:"end_time,omitempty"`
	TotalMs     int64          `json:"total_ms,omitempty"`
	TotalAmount float64        `json:"total_amount,omitempty"`
	Status      core.Status    `json:"status,omitempty"`
	Segments    []core.Segment `json:"segments,omitempty"`
}

// Report counts the outcomes of one import batch.
type Report struct {
	Added       int `json:"added"`
	Skipped     int `json:"skipped"`
	Overwritten int `json:"overwritten"`
	Merged      int `json:"merged"`
}

// recordKey identifies "the same session" across import batches. Two
// records sharing category, account, start time, and rate collide.
type recordKey struct {
	categoryID int64
	accountID  int64
	startTime  int64
	hourlyRate float64
}

func keyOf(categoryID, accountID, startTime int64, rate float64) recordKey {
	return recordKey{
		categoryID: categoryID,
		accountID:  accountID,
		startTime:  startTime,
		hourlyRate: rate,
	}
}

// Reconciler applies import batches and produces exports against the
// shared dataset.
type Reconciler struct {
	db     *store.DB
	clock  core.Clock
	logger *log.Logger
}

func New(db *store.DB, clock core.Clock, logger *log.Logger) *Reconciler {
	if clock == nil {
		clock = core.SystemClock()
	}

	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentTransfer)
	}

	return &Reconciler{db: db, clock: clock, logger: logger}
}

// Import reconciles a batch of records into the dataset under the
// given policy. The whole batch runs in a single load-mutate-save
// cycle: either every record's outcome persists or none does. Records
// inserted earlier in the batch count as existing for later ones.
func (r *Reconciler) Import(
	ctx context.Context,
	userID int64,
	records []Record,
	policy Policy,
) (Report, error) {
	var report Report

	err := r.db.Update(ctx, func(ds *core.Dataset) error {
		index := make(map[recordKey]int, len(ds.Sessions))
		for i := range ds.Sessions {
			s := &ds.Sessions[i]
			index[keyOf(s.CategoryID, s.AccountID, s.StartTime, s.HourlyRate)] = i
		}

		now := r.clock.Now().UnixMilli()

		for _, rec := range records {
			key := keyOf(rec.CategoryID, rec.AccountID, rec.StartTime, rec.HourlyRate)

			idx, exists := index[key]
			if !exists {
				id := r.insert(ds, userID, rec, now)
				index[key] = len(ds.Sessions) - 1
				report.Added++

				ds.AppendOp(now, userID, "import_add", map[string]any{
					"session_id": id,
				})

				continue
			}

			switch policy {
			case PolicyOverwrite:
				r.overwrite(&ds.Sessions[idx], rec)
				report.Overwritten++

				ds.AppendOp(now, userID, "import_overwrite", map[string]any{
					"session_id": ds.Sessions[idx].ID,
				})

			case PolicyMerge:
				r.merge(&ds.Sessions[idx], rec)
				report.Merged++

				ds.AppendOp(now, userID, "import_merge", map[string]any{
					"session_id": ds.Sessions[idx].ID,
				})

			default:
				report.Skipped++
			}
		}

		return nil
	})
	if err != nil {
		return Report{}, err
	}

	r.logger.InfoContext(ctx, "import finished",
		log.FieldPolicy, string(policy),
		log.FieldCount, len(records),
		"added", report.Added,
		"skipped", report.Skipped,
		"overwritten", report.Overwritten,
		"merged", report.Merged)

	return report, nil
}

// insert adds rec as a new session. Status is inferred from the end
// time: present means stopped, absent means running with one open
// segment.
func (r *Reconciler) insert(ds *core.Dataset, userID int64, rec Record, now int64) int64 {
	id := ds.NextSessionID()

	s := core.Session{
		ID:          id,
		UserID:      userID,
		CategoryID:  rec.CategoryID,
		AccountID:   rec.AccountID,
		HourlyRate:  rec.HourlyRate,
		StartTime:   rec.StartTime,
		EndTime:     rec.EndTime,
		TotalMs:     rec.TotalMs,
		TotalAmount: rec.TotalAmount,
		Segments:    rec.Segments,
		UpdatedAt:   now,
	}

	if rec.EndTime != 0 {
		s.Status = core.StatusStopped
		if s.Segments == nil {
			s.Segments = []core.Segment{{StartTime: rec.StartTime, EndTime: rec.EndTime}}
		}
	} else {
		s.Status = core.StatusRunning
		if s.Segments == nil {
			s.Segments = []core.Segment{{StartTime: rec.StartTime}}
		}
	}

	ds.Sessions = append(ds.Sessions, s)

	return id
}

// overwrite replaces a colliding session's fields with the incoming
// record's values wherever the incoming value is present.
func (r *Reconciler) overwrite(s *core.Session, rec Record) {
	if rec.EndTime != 0 {
		s.EndTime = rec.EndTime
	}

	if rec.TotalMs != 0 {
		s.TotalMs = rec.TotalMs
	}

	if rec.TotalAmount != 0 {
		s.TotalAmount = rec.TotalAmount
	}

	if rec.Status != "" {
		s.Status = rec.Status
	}

	if len(rec.Segments) != 0 {
		s.Segments = rec.Segments
	}
}

// merge folds an incoming record into a colliding session: totals
// never decrease and segments are left alone.
func (r *Reconciler) merge(s *core.Session, rec Record) {
	if rec.EndTime != 0 {
		s.EndTime = rec.EndTime
	}

	if rec.TotalMs > s.TotalMs {
		s.TotalMs = rec.TotalMs
	}

	if rec.TotalAmount > s.TotalAmount {
		s.TotalAmount = rec.TotalAmount
	}

	if rec.Status != "" {
		s.Status = rec.Status
	}
}
