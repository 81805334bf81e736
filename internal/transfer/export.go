package transfer

import (
	"context"

	"tempo/internal/core"
	"tempo/internal/stats"
)

// DefaultExportFields is the projection used when the caller does not
// ask for specific fields.
var DefaultExportFields = []string{
	"id",
	"category_id",
	"account_id",
	"hourly_rate",
	"start_time",
	"end_time",
	"total_ms",
	"total_amount",
	"status",
}

// Export projects the sessions matching the filter onto the requested
// fields, keeping dataset order. Unknown field names are ignored;
// sessions of every status are eligible unless the filter narrows
// them.
func (r *Reconciler) Export(
	ctx context.Context,
	f stats.Filter,
	fields []string,
) ([]map[string]any, error) {
	if len(fields) == 0 {
		fields = DefaultExportFields
	}

	now := r.clock.Now().UnixMilli()
	rows := []map[string]any{}

	err := r.db.View(ctx, func(ds *core.Dataset) error {
		for i := range ds.Sessions {
			s := &ds.Sessions[i]
			if !f.Match(s, now) {
				continue
			}

			rows = append(rows, project(s, fields))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func project(s *core.Session, fields []string) map[string]any {
	row := make(map[string]any, len(fields))

	for _, field := range fields {
		switch field {
		case "id":
			row[field] = s.ID
		case "user_id":
			row[field] = s.UserID
		case "category_id":
			row[field] = s.CategoryID
		case "account_id":
			row[field] = s.AccountID
		case "hourly_rate":
			row[field] = s.HourlyRate
		case "start_time":
			row[field] = s.StartTime
		case "end_time":
			row[field] = s.EndTime
		case "total_ms":
			row[field] = s.TotalMs
		case "total_amount":
			row[field] = s.TotalAmount
		case "status":
			row[field] = string(s.Status)
		case "updated_at":
			row[field] = s.UpdatedAt
		case "segments":
			segs := make([]core.Segment, len(s.Segments))
			copy(segs, s.Segments)
			row[field] = segs
		}
	}

	return row
}
