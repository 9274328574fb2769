package stores

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/oarkflow/squealx"

	eventguard "github.com/sbnctech/murmurant-eventguard"
)

// AuditQuery filters reads of the audit trail. ActionPattern takes the
// utils.Match forms: an exact action, "*", or a prefix wildcard such as
// "edit_*".
type AuditQuery struct {
	MemberID      string
	ResourceID    string
	ActionPattern string
	Outcome       eventguard.Outcome
	OnlyAlerts    bool
	StartTime     time.Time
	EndTime       time.Time
	Limit         int
}

// SQLAuditStore persists audit entries in SQL. It satisfies
// eventguard.AuditSink: Record runs inline on the guarded path, so a
// failed INSERT blocks the action it was auditing.
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) Record(ctx context.Context, entry eventguard.AuditEntry) error {
	actorB, _ := json.Marshal(entry.Actor)
	metaB, _ := json.Marshal(entry.Metadata)
	alert := false
	if v, ok := entry.Metadata[eventguard.MetaSecurityAlert]; ok {
		alert, _ = v.(bool)
	}
	q := `INSERT INTO audit_log(id, timestamp, member_id, role, action, resource_type, resource_id, before_status, after_status, outcome, invariant, reason, actor_json, metadata_json, security_alert) VALUES(:id, :timestamp, :member_id, :role, :action, :resource_type, :resource_id, :before_status, :after_status, :outcome, :invariant, :reason, :actor_json, :metadata_json, :security_alert)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             entry.ID,
		"timestamp":      entry.Timestamp,
		"member_id":      entry.Actor.MemberID,
		"role":           entry.Actor.Role,
		"action":         string(entry.Action),
		"resource_type":  entry.ResourceType,
		"resource_id":    entry.ResourceID,
		"before_status":  entry.Before,
		"after_status":   entry.After,
		"outcome":        string(entry.Outcome),
		"invariant":      string(entry.Invariant),
		"reason":         entry.Reason,
		"actor_json":     string(actorB),
		"metadata_json":  string(metaB),
		"security_alert": boolToInt(alert),
	})
	return err
}

// Query returns matching entries in timestamp order. The member, role and
// security_alert columns are denormalized copies of entry fields so the
// common review queries stay on indexes; the full entry round-trips
// through actor_json and metadata_json.
func (s *SQLAuditStore) Query(ctx context.Context, filter AuditQuery) ([]eventguard.AuditEntry, error) {
	q := `SELECT id, timestamp, action, resource_type, resource_id, before_status, after_status, outcome, invariant, reason, actor_json, metadata_json FROM audit_log WHERE 1=1`
	params := map[string]any{}
	if filter.MemberID != "" {
		q += " AND member_id = :member_id"
		params["member_id"] = filter.MemberID
	}
	if filter.ResourceID != "" {
		q += " AND resource_id = :resource_id"
		params["resource_id"] = filter.ResourceID
	}
	if p := filter.ActionPattern; p != "" && p != "*" {
		if i := strings.IndexByte(p, '*'); i >= 0 {
			q += " AND action LIKE :action"
			params["action"] = p[:i] + "%"
		} else {
			q += " AND action = :action"
			params["action"] = p
		}
	}
	if filter.Outcome != "" {
		q += " AND outcome = :outcome"
		params["outcome"] = string(filter.Outcome)
	}
	if filter.OnlyAlerts {
		q += " AND security_alert = 1"
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.EndTime
	}
	q += " ORDER BY timestamp"
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]eventguard.AuditEntry, 0)
	for r.Next() {
		var id, action, resourceType, resourceID, before, after, outcome, invariant, reason, actorJSON, metaJSON string
		var timestampRaw interface{}
		if err := r.Scan(&id, &timestampRaw, &action, &resourceType, &resourceID, &before, &after, &outcome, &invariant, &reason, &actorJSON, &metaJSON); err != nil {
			return nil, err
		}
		entry := eventguard.AuditEntry{
			ID:           id,
			Timestamp:    scanTime(timestampRaw),
			Action:       eventguard.Action(action),
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Before:       before,
			After:        after,
			Outcome:      eventguard.Outcome(outcome),
			Invariant:    eventguard.Invariant(invariant),
			Reason:       reason,
		}
		_ = json.Unmarshal([]byte(actorJSON), &entry.Actor)
		_ = json.Unmarshal([]byte(metaJSON), &entry.Metadata)
		out = append(out, entry)
	}
	return out, nil
}
