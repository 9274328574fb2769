package stores

import (
	"context"
	"fmt"
	"strings"

	"github.com/oarkflow/squealx"

	eventguard "github.com/sbnctech/murmurant-eventguard"
)

// SQLEventStore holds event rows and is the reference consumer of
// eventguard.EventFilter: ListVisible compiles the filter into the WHERE
// clause so list queries never fetch rows the actor could not see. The
// filter is a list optimization only; callers still run CanViewEvent on
// every returned row.
//
// Rows store the persisted status. COMPLETED is derived at read time via
// EffectiveStatus and never appears in the status column.
type SQLEventStore struct {
	db *squealx.DB
}

func NewSQLEventStore(db *squealx.DB) *SQLEventStore {
	return &SQLEventStore{db: db}
}

func (s *SQLEventStore) Insert(ctx context.Context, ev eventguard.EventSnapshot) error {
	q := `INSERT INTO events(id, status, chair_id, group_id, start_time, end_time) VALUES(:id, :status, :chair_id, :group_id, :start_time, :end_time)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         ev.ID,
		"status":     string(ev.Status),
		"chair_id":   ev.ChairID,
		"group_id":   ev.GroupID,
		"start_time": sqlNullTimeOrNil(ev.StartTime),
		"end_time":   sqlNullTimeOrNil(ev.EndTime),
	})
	return err
}

// UpdateStatus applies the status a guard already approved. It does not
// re-check the transition; that is the guard's job.
func (s *SQLEventStore) UpdateStatus(ctx context.Context, id string, status eventguard.Status) error {
	q := `UPDATE events SET status = :status WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id, "status": string(status)})
	return err
}

func (s *SQLEventStore) Delete(ctx context.Context, id string) error {
	q := `DELETE FROM events WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLEventStore) Get(ctx context.Context, id string) (eventguard.EventSnapshot, error) {
	q := `SELECT id, status, chair_id, group_id, start_time, end_time FROM events WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return eventguard.EventSnapshot{}, err
	}
	defer r.Close()
	if !r.Next() {
		return eventguard.EventSnapshot{}, fmt.Errorf("event not found: %s", id)
	}
	var idv, status, chair, group string
	var startRaw, endRaw interface{}
	if err := r.Scan(&idv, &status, &chair, &group, &startRaw, &endRaw); err != nil {
		return eventguard.EventSnapshot{}, err
	}
	return eventguard.EventSnapshot{
		ID:        idv,
		Status:    eventguard.Status(status),
		ChairID:   chair,
		GroupID:   group,
		StartTime: scanTime(startRaw),
		EndTime:   scanTime(endRaw),
	}, nil
}

// ListVisible returns the rows the filter admits, ordered by start time.
// An empty filter (no chair, no statuses) admits nothing and skips the
// query entirely.
func (s *SQLEventStore) ListVisible(ctx context.Context, filter eventguard.EventFilter) ([]eventguard.EventSnapshot, error) {
	q := `SELECT id, status, chair_id, group_id, start_time, end_time FROM events`
	params := map[string]any{}
	if !filter.Unrestricted {
		conds := make([]string, 0, 2)
		if filter.ChairID != "" {
			conds = append(conds, "chair_id = :chair_id")
			params["chair_id"] = filter.ChairID
		}
		if len(filter.Statuses) > 0 {
			names := make([]string, 0, len(filter.Statuses))
			for i, st := range filter.Statuses {
				name := fmt.Sprintf("status_%d", i)
				names = append(names, ":"+name)
				params[name] = string(st)
			}
			conds = append(conds, "status IN ("+strings.Join(names, ", ")+")")
		}
		if len(conds) == 0 {
			return []eventguard.EventSnapshot{}, nil
		}
		q += " WHERE " + strings.Join(conds, " OR ")
	}
	q += " ORDER BY start_time"
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]eventguard.EventSnapshot, 0)
	for r.Next() {
		var id, status, chair, group string
		var startRaw, endRaw interface{}
		if err := r.Scan(&id, &status, &chair, &group, &startRaw, &endRaw); err != nil {
			return nil, err
		}
		out = append(out, eventguard.EventSnapshot{
			ID:        id,
			Status:    eventguard.Status(status),
			ChairID:   chair,
			GroupID:   group,
			StartTime: scanTime(startRaw),
			EndTime:   scanTime(endRaw),
		})
	}
	return out, nil
}
