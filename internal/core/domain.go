package core

import (
	"errors"
	"time"
)

// Status describes the lifecycle state of a session. It is only ever
// changed by the start/pause/resume/stop transitions.
type Status string

const (
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

const millisPerHour = 3_600_000

var (
	ErrUserExists              = errors.New("username_exists")
	ErrUserNotFound            = errors.New("user_not_found")
	ErrCategoryExists          = errors.New("category_exists")
	ErrCategoryMissing         = errors.New("category_missing")
	ErrAccountExists           = errors.New("account_exists")
	ErrAccountMissing          = errors.New("account_missing")
	ErrSessionNotFound         = errors.New("session_not_found")
	ErrInvalidRate             = errors.New("invalid_rate")
	ErrAccountCategoryMismatch = errors.New("account_category_mismatch")
)

type (
	User struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		CreatedAt int64  `json:"created_at"`
		UpdatedAt int64  `json:"updated_at,omitempty"`
	}

	Category struct {
		ID        int64  `json:"id"`
		UserID    int64  `json:"user_id,omitempty"`
		Name      string `json:"name"`
		UpdatedAt int64  `json:"updated_at,omitempty"`
	}

	// Account belongs to exactly one category owned by the same user.
	Account struct {
		ID         int64  `json:"id"`
		UserID     int64  `json:"user_id,omitempty"`
		CategoryID int64  `json:"category_id"`
		Name       string `json:"name"`
		UpdatedAt  int64  `json:"updated_at,omitempty"`
	}

	// Segment is one contiguous interval of active timing. An EndTime
	// of zero means the segment is still open.
	Segment struct {
		StartTime int64 `json:"start_time"`
		EndTime   int64 `json:"end_time,omitempty"`
	}

	// Session is one billable timer. Times are unix milliseconds.
	// TotalMs and TotalAmount are only populated once the session is
	// stopped; until then they are zero.
	Session struct {
		ID          int64     `json:"id"`
		UserID      int64     `json:"user_id,omitempty"`
		CategoryID  int64     `json:"category_id"`
		AccountID   int64     `json:"account_id"`
		HourlyRate  float64   `json:"hourly_rate"`
		StartTime   int64     `json:"start_time"`
		EndTime     int64     `json:"end_time,omitempty"`
		TotalMs     int64     `json:"total_ms,omitempty"`
		TotalAmount float64   `json:"total_amount,omitempty"`
		Status      Status    `json:"status"`
		Segments    []Segment `json:"segments"`
		UpdatedAt   int64     `json:"updated_at,omitempty"`
	}

	// OpEntry is an append-only audit record. Entries are never
	// mutated or deleted.
	OpEntry struct {
		ID        int64          `json:"id"`
		TS        int64          `json:"ts"`
		UserID    int64          `json:"user_id,omitempty"`
		Type      string         `json:"type"`
		Data      map[string]any `json:"data,omitempty"`
		UpdatedAt int64          `json:"updated_at,omitempty"`
	}
)

// OpenSegment returns the index of the session's open segment, or -1.
func (s *Session) OpenSegment() int {
	for i := range s.Segments {
		if s.Segments[i].EndTime == 0 {
			return i
		}
	}

	return -1
}

// CloseOpenSegment closes the session's open segment at the given
// instant and reports whether one was open. A close at unix
// millisecond zero is recorded as 1, so an EndTime of zero always
// means the segment is still open.
func (s *Session) CloseOpenSegment(now int64) bool {
	i := s.OpenSegment()
	if i < 0 {
		return false
	}

	if now == 0 {
		now = 1
	}
	s.Segments[i].EndTime = now

	return true
}

// ElapsedMs sums the closed-segment durations, clamping each at zero.
func (s *Session) ElapsedMs() int64 {
	var total int64

	for _, seg := range s.Segments {
		if seg.EndTime == 0 {
			continue
		}

		if d := seg.EndTime - seg.StartTime; d > 0 {
			total += d
		}
	}

	return total
}

// ElapsedMsAt is like ElapsedMs but treats an open segment as ending
// at the given instant and does not clamp, mirroring what a live
// status query reports.
func (s *Session) ElapsedMsAt(now int64) int64 {
	var total int64

	for _, seg := range s.Segments {
		end := seg.EndTime
		if end == 0 {
			end = now
		}

		total += end - seg.StartTime
	}

	return total
}

// Amount converts an elapsed duration in milliseconds to money at the
// session's hourly rate.
func (s *Session) Amount(elapsedMs int64) float64 {
	return float64(elapsedMs) / millisPerHour * s.HourlyRate
}

// EffectiveEnd returns the session end used for time-bound filtering:
// a still-open session is treated as ending now.
func (s *Session) EffectiveEnd(now int64) int64 {
	if s.EndTime != 0 {
		return s.EndTime
	}

	return now
}

// Clock supplies the current instant. Injected so the engines are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
