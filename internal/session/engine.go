// Package session owns the billable-session lifecycle: the
// start/pause/resume/stop state machine and the elapsed-time and
// amount computation.
package session

import (
	"context"

	"tempo/internal/amqp"
	"tempo/internal/core"
	"tempo/internal/log"
	"tempo/internal/store"
)

// ChangeRecorder buffers a change descriptor for a later remote push.
// *sync.Syncer satisfies it.
type ChangeRecorder interface {
	Enqueue(typ string, data map[string]any)
}

// Engine mutates session state through one load-mutate-save cycle per
// operation. Every successful mutation appends exactly one
// operation-log entry; when an AMQP client is configured the entry is
// also published, and a publish failure never fails the operation.
type Engine struct {
	db       *store.DB
	clock    core.Clock
	logger   *log.Logger
	events   *amqp.Client
	recorder ChangeRecorder
}

func New(db *store.DB, clock core.Clock, logger *log.Logger, events *amqp.Client) *Engine {
	if clock == nil {
		clock = core.SystemClock()
	}

	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentSession)
	}

	return &Engine{db: db, clock: clock, logger: logger, events: events}
}

// SetChangeRecorder makes every successful mutation also enqueue a
// change descriptor. Used when remote sync is enabled.
func (e *Engine) SetChangeRecorder(r ChangeRecorder) {
	e.recorder = r
}

// StopResult reports the totals frozen when a session stops.
type StopResult struct {
	TotalMs     int64   `json:"total_ms"`
	TotalAmount float64 `json:"total_amount"`
}

// StatusResult is a live, non-mutating view of a session: an open
// segment is priced as if it ended now.
type StatusResult struct {
	Session         core.Session `json:"session"`
	TotalMs         int64        `json:"total_ms"`
	EstimatedAmount float64      `json:"estimated_amount"`
}

// Start creates a new running session with one open segment. If a
// running session already exists for the same (user, category,
// account) triple its id is returned instead and nothing is written.
func (e *Engine) Start(
	ctx context.Context,
	userID, categoryID, accountID int64,
	hourlyRate float64,
) (int64, error) {
	if hourlyRate < 0 {
		return 0, core.ErrInvalidRate
	}

	var (
		id    int64
		entry core.OpEntry
		fresh bool
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		for i := range ds.Sessions {
			s := &ds.Sessions[i]
			if s.UserID == userID &&
				s.CategoryID == categoryID &&
				s.AccountID == accountID &&
				s.Status == core.StatusRunning {
				id = s.ID
				return nil
			}
		}

		now := e.clock.Now().UnixMilli()
		id = ds.NextSessionID()
		fresh = true

		ds.Sessions = append(ds.Sessions, core.Session{
			ID:         id,
			UserID:     userID,
			CategoryID: categoryID,
			AccountID:  accountID,
			HourlyRate: hourlyRate,
			StartTime:  now,
			Status:     core.StatusRunning,
			Segments:   []core.Segment{{StartTime: now}},
		})

		entry = ds.AppendOp(now, userID, "start_session", map[string]any{
			"id":          id,
			"category_id": categoryID,
			"account_id":  accountID,
			"hourly_rate": hourlyRate,
			"start_time":  now,
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	if fresh {
		e.publish(ctx, entry)
		e.logger.InfoContext(ctx, "session started",
			log.FieldSessionID, id,
			log.FieldCategoryID, categoryID,
			log.FieldAccountID, accountID,
			log.FieldHourlyRate, hourlyRate)
	}

	return id, nil
}

// Pause closes the open segment. It reports false without error when
// the session is absent or has no open segment (already paused or
// stopped).
func (e *Engine) Pause(ctx context.Context, sessionID int64) (bool, error) {
	var (
		paused bool
		entry  core.OpEntry
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		s := ds.FindSession(sessionID)
		if s == nil {
			return nil
		}

		now := e.clock.Now().UnixMilli()
		if !s.CloseOpenSegment(now) {
			return nil
		}

		s.Status = core.StatusPaused
		paused = true

		entry = ds.AppendOp(now, s.UserID, "pause_session", map[string]any{
			"id":   sessionID,
			"time": now,
		})

		return nil
	})
	if err != nil {
		return false, err
	}

	if paused {
		e.publish(ctx, entry)
		e.logger.InfoContext(ctx, "session paused", log.FieldSessionID, sessionID)
	}

	return paused, nil
}

// Resume appends a new open segment and marks the session running. It
// reports false without error when the session is absent. A stopped
// session may be resumed; its frozen totals stay in place until the
// next stop recomputes them.
func (e *Engine) Resume(ctx context.Context, sessionID int64) (bool, error) {
	var (
		resumed bool
		entry   core.OpEntry
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		s := ds.FindSession(sessionID)
		if s == nil {
			return nil
		}

		now := e.clock.Now().UnixMilli()
		s.Segments = append(s.Segments, core.Segment{StartTime: now})
		s.Status = core.StatusRunning
		resumed = true

		entry = ds.AppendOp(now, s.UserID, "resume_session", map[string]any{
			"id":   sessionID,
			"time": now,
		})

		return nil
	})
	if err != nil {
		return false, err
	}

	if resumed {
		e.publish(ctx, entry)
		e.logger.InfoContext(ctx, "session resumed", log.FieldSessionID, sessionID)
	}

	return resumed, nil
}

// Stop closes any open segment, freezes the totals and makes the
// session terminal. Stopping an absent session returns a zero result
// and writes nothing.
func (e *Engine) Stop(ctx context.Context, sessionID int64) (StopResult, error) {
	var (
		res     StopResult
		stopped bool
		entry   core.OpEntry
	)

	err := e.db.Update(ctx, func(ds *core.Dataset) error {
		s := ds.FindSession(sessionID)
		if s == nil {
			return nil
		}

		now := e.clock.Now().UnixMilli()
		s.CloseOpenSegment(now)

		totalMs := s.ElapsedMs()
		amount := s.Amount(totalMs)

		s.EndTime = now
		s.TotalMs = totalMs
		s.TotalAmount = amount
		s.Status = core.StatusStopped

		res = StopResult{TotalMs: totalMs, TotalAmount: amount}
		stopped = true

		entry = ds.AppendOp(now, s.UserID, "stop_session", map[string]any{
			"id":           sessionID,
			"end_time":     now,
			"total_ms":     totalMs,
			"total_amount": amount,
		})

		return nil
	})
	if err != nil {
		return StopResult{}, err
	}

	if stopped {
		e.publish(ctx, entry)
		e.logger.InfoContext(ctx, "session stopped",
			log.FieldSessionID, sessionID,
			log.FieldTotalMs, res.TotalMs,
			log.FieldAmount, res.TotalAmount)
	}

	return res, nil
}

// Status reports a session's current elapsed time and estimated
// amount without mutating anything. An open segment is counted up to
// "now". Returns core.ErrSessionNotFound when the session is absent.
func (e *Engine) Status(ctx context.Context, sessionID int64) (*StatusResult, error) {
	var res *StatusResult

	err := e.db.View(ctx, func(ds *core.Dataset) error {
		s := ds.FindSession(sessionID)
		if s == nil {
			return core.ErrSessionNotFound
		}

		now := e.clock.Now().UnixMilli()
		totalMs := s.ElapsedMsAt(now)

		res = &StatusResult{
			Session:         *s,
			TotalMs:         totalMs,
			EstimatedAmount: s.Amount(totalMs),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (e *Engine) publish(ctx context.Context, entry core.OpEntry) {
	if e.recorder != nil {
		e.recorder.Enqueue(entry.Type, entry.Data)
	}

	if err := e.events.PublishOp(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "failed to publish op entry",
			log.FieldOperation, entry.Type,
			log.FieldError, err)
	}
}
