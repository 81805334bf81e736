// Package stats computes aggregate analytics over the session
// collection: summaries, calendar-bucketed series, histograms and
// categorical breakdowns. All operations are read-only.
package stats

import (
	"context"
	"sort"
	"strconv"
	"time"

	"tempo/internal/core"
	"tempo/internal/store"
)

// Filter restricts the session set an aggregation operates on. Zero
// fields are not applied. From and To are inclusive unix-millisecond
// bounds on the session start and end; a still-open session is
// compared against "now" for the To bound, so results for open
// sessions are not stable across repeated calls.
type Filter struct {
	UserID     int64       `json:"userId,omitempty"`
	CategoryID int64       `json:"categoryId,omitempty"`
	AccountID  int64       `json:"accountId,omitempty"`
	Status     core.Status `json:"status,omitempty"`
	From       int64       `json:"from,omitempty"`
	To         int64       `json:"to,omitempty"`
}

// Match reports whether the session passes the filter as of now.
func (f Filter) Match(s *core.Session, now int64) bool {
	if f.UserID != 0 && s.UserID != f.UserID {
		return false
	}

	if f.CategoryID != 0 && s.CategoryID != f.CategoryID {
		return false
	}

	if f.AccountID != 0 && s.AccountID != f.AccountID {
		return false
	}

	if f.Status != "" && s.Status != f.Status {
		return false
	}

	if f.From != 0 && s.StartTime < f.From {
		return false
	}

	if f.To != 0 && s.EffectiveEnd(now) > f.To {
		return false
	}

	return true
}

// Granularity selects the calendar bucket width of a time series.
type Granularity string

const (
	Day     Granularity = "day"
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

// Field selects the value a histogram is computed over.
type Field string

const (
	FieldElapsed Field = "total_ms"
	FieldAmount  Field = "total_amount"
)

// GroupBy selects the key of a breakdown.
type GroupBy string

const (
	ByCategory GroupBy = "category"
	ByAccount  GroupBy = "account"
)

const defaultBinCount = 10

type Engine struct {
	db    *store.DB
	clock core.Clock
}

func New(db *store.DB, clock core.Clock) *Engine {
	if clock == nil {
		clock = core.SystemClock()
	}

	return &Engine{db: db, clock: clock}
}

// Summary aggregates the stopped sessions matching the filter. Zero
// matches yield an all-zero summary, never an error.
type Summary struct {
	Count       int     `json:"count"`
	TotalMs     int64   `json:"totalMs"`
	AvgMs       float64 `json:"avgMs"`
	MinMs       int64   `json:"minMs"`
	MaxMs       int64   `json:"maxMs"`
	TotalAmount float64 `json:"totalAmount"`
	AvgAmount   float64 `json:"avgAmount"`
	MinAmount   float64 `json:"minAmount"`
	MaxAmount   float64 `json:"maxAmount"`
}

func (e *Engine) Summary(ctx context.Context, f Filter) (Summary, error) {
	var out Summary

	err := e.view(ctx, f, func(sessions []core.Session, _ *core.Dataset) {
		n := len(sessions)
		if n == 0 {
			return
		}

		out.Count = n
		out.MinMs = sessions[0].TotalMs
		out.MaxMs = sessions[0].TotalMs
		out.MinAmount = sessions[0].TotalAmount
		out.MaxAmount = sessions[0].TotalAmount

		for i := range sessions {
			s := &sessions[i]
			out.TotalMs += s.TotalMs
			out.TotalAmount += s.TotalAmount

			if s.TotalMs < out.MinMs {
				out.MinMs = s.TotalMs
			}
			if s.TotalMs > out.MaxMs {
				out.MaxMs = s.TotalMs
			}
			if s.TotalAmount < out.MinAmount {
				out.MinAmount = s.TotalAmount
			}
			if s.TotalAmount > out.MaxAmount {
				out.MaxAmount = s.TotalAmount
			}
		}

		out.AvgMs = float64(out.TotalMs) / float64(n)
		out.AvgAmount = out.TotalAmount / float64(n)
	})
	if err != nil {
		return Summary{}, err
	}

	return out, nil
}

// SeriesRow is one non-empty calendar bucket of a time series.
type SeriesRow struct {
	Bucket      int64   `json:"t"`
	Count       int     `json:"count"`
	TotalMs     int64   `json:"totalMs"`
	TotalAmount float64 `json:"totalAmount"`
}

// TimeSeries buckets stopped sessions by the calendar-aligned start
// of their bucket. Only non-empty buckets are emitted, sorted
// ascending. Weeks start on Monday.
func (e *Engine) TimeSeries(
	ctx context.Context,
	f Filter,
	granularity Granularity,
) ([]SeriesRow, error) {
	byBucket := map[int64]*SeriesRow{}
	var order []int64

	err := e.view(ctx, f, func(sessions []core.Session, _ *core.Dataset) {
		for i := range sessions {
			s := &sessions[i]
			key := BucketStart(s.StartTime, granularity)

			row, ok := byBucket[key]
			if !ok {
				row = &SeriesRow{Bucket: key}
				byBucket[key] = row
				order = append(order, key)
			}

			row.Count++
			row.TotalMs += s.TotalMs
			row.TotalAmount += s.TotalAmount
		}
	})
	if err != nil {
		return nil, err
	}

	// insertion order is arbitrary; rows are returned by bucket start
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]SeriesRow, 0, len(order))
	for _, key := range order {
		out = append(out, *byBucket[key])
	}

	return out, nil
}

// BucketStart returns the unix-millisecond start of the calendar
// bucket containing ts, in local time. Unknown granularities fall
// back to day.
func BucketStart(ts int64, g Granularity) int64 {
	t := time.UnixMilli(ts).Local()
	y, m, d := t.Date()

	switch g {
	case Week:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday belongs to the week started last Monday
		}

		start := time.Date(y, m, d, 0, 0, 0, 0, t.Location()).
			AddDate(0, 0, -(weekday - 1))

		return start.UnixMilli()
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).UnixMilli()
	case Quarter:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, t.Location()).UnixMilli()
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location()).UnixMilli()
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).UnixMilli()
	}
}

// Bin is one histogram bucket over [From, To).
type Bin struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// Histogram is an equal-width distribution whose range always
// includes zero.
type Histogram struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Bins []Bin   `json:"bins"`
}

// Distribution histograms either elapsed time or amount over binCount
// equal-width bins. binCount defaults to 10 and is clamped to at
// least 1; the bin width falls back to 1 when the span is zero.
func (e *Engine) Distribution(
	ctx context.Context,
	f Filter,
	field Field,
	binCount int,
) (Histogram, error) {
	if binCount == 0 {
		binCount = defaultBinCount
	}

	if binCount < 1 {
		binCount = 1
	}

	var values []float64

	err := e.view(ctx, f, func(sessions []core.Session, _ *core.Dataset) {
		for i := range sessions {
			s := &sessions[i]
			if field == FieldAmount {
				values = append(values, s.TotalAmount)
			} else {
				values = append(values, float64(s.TotalMs))
			}
		}
	})
	if err != nil {
		return Histogram{}, err
	}

	// the range floor and ceiling always include zero
	var min, max float64
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	width := (max - min) / float64(binCount)
	if width == 0 {
		width = 1
	}

	hist := Histogram{
		Min:  min,
		Max:  max,
		Bins: make([]Bin, binCount),
	}

	for i := range hist.Bins {
		hist.Bins[i].From = min + float64(i)*width
		hist.Bins[i].To = min + float64(i+1)*width
	}

	for _, v := range values {
		idx := int((v - min) / width)
		if idx < 0 {
			idx = 0
		}
		if idx > binCount-1 {
			idx = binCount - 1
		}

		hist.Bins[idx].Count++
	}

	return hist, nil
}

// BreakdownRow maps a group name to its summed amount.
type BreakdownRow struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Breakdown groups stopped sessions by category or account, summing
// the amount per group. Group keys resolve to entity names, falling
// back to the raw id when the entity no longer exists. Rows appear in
// first-seen session order.
func (e *Engine) Breakdown(
	ctx context.Context,
	f Filter,
	by GroupBy,
) ([]BreakdownRow, error) {
	totals := map[int64]float64{}
	var order []int64

	var resolve func(ds *core.Dataset, id int64) string

	if by == ByAccount {
		resolve = func(ds *core.Dataset, id int64) string {
			if a := ds.FindAccount(id); a != nil {
				return a.Name
			}
			return strconv.FormatInt(id, 10)
		}
	} else {
		resolve = func(ds *core.Dataset, id int64) string {
			if c := ds.FindCategory(id); c != nil {
				return c.Name
			}
			return strconv.FormatInt(id, 10)
		}
	}

	var out []BreakdownRow

	err := e.view(ctx, f, func(sessions []core.Session, ds *core.Dataset) {
		for i := range sessions {
			s := &sessions[i]

			key := s.CategoryID
			if by == ByAccount {
				key = s.AccountID
			}

			if _, seen := totals[key]; !seen {
				order = append(order, key)
			}

			totals[key] += s.TotalAmount
		}

		for _, key := range order {
			out = append(out, BreakdownRow{
				Key:   resolve(ds, key),
				Value: totals[key],
			})
		}
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// view runs fn over the stopped sessions matching the filter.
func (e *Engine) view(
	ctx context.Context,
	f Filter,
	fn func(sessions []core.Session, ds *core.Dataset),
) error {
	f.Status = core.StatusStopped
	now := e.clock.Now().UnixMilli()

	return e.db.View(ctx, func(ds *core.Dataset) error {
		var matched []core.Session

		for i := range ds.Sessions {
			if f.Match(&ds.Sessions[i], now) {
				matched = append(matched, ds.Sessions[i])
			}
		}

		fn(matched, ds)

		return nil
	})
}
