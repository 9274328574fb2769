package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	eventguard "github.com/sbnctech/murmurant-eventguard"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedAuditTrail(t *testing.T, store *SQLAuditStore) time.Time {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []eventguard.AuditEntry{
		{
			ID:           "a-1",
			Timestamp:    base,
			Action:       eventguard.ActionView,
			ResourceType: eventguard.ResourceTypeEvent,
			ResourceID:   "evt-1",
			Actor:        eventguard.ActorSnapshot{MemberID: "m-1", Role: "member"},
			Outcome:      eventguard.OutcomeAllowed,
			Invariant:    eventguard.InvariantStatusVisibility,
			Reason:       "event is publicly visible",
		},
		{
			ID:           "a-2",
			Timestamp:    base.Add(time.Minute),
			Action:       eventguard.ActionEditContent,
			ResourceType: eventguard.ResourceTypeEvent,
			ResourceID:   "evt-1",
			Actor:        eventguard.ActorSnapshot{MemberID: "m-1", Role: "member"},
			Outcome:      eventguard.OutcomeDenied,
			Invariant:    eventguard.InvariantContentEditGate,
			Reason:       "content cannot be edited while the event is PUBLISHED",
			Metadata:     map[string]any{eventguard.MetaRequestID: "req-9"},
		},
		{
			ID:           "a-3",
			Timestamp:    base.Add(2 * time.Minute),
			Action:       eventguard.ActionEditStatus,
			ResourceType: eventguard.ResourceTypeEvent,
			ResourceID:   "evt-2",
			Actor: eventguard.ActorSnapshot{
				MemberID:     "m-2",
				Role:         "coordinator",
				Capabilities: []eventguard.Capability{eventguard.CapabilityEditEvents, eventguard.CapabilityViewAllEvents},
			},
			Before:  "PUBLISHED",
			After:   "APPROVED",
			Outcome: eventguard.OutcomeDenied,
			Reason:  "cannot transition from PUBLISHED to APPROVED",
		},
		{
			ID:           "a-4",
			Timestamp:    base.Add(3 * time.Minute),
			Action:       eventguard.ActionEditContent,
			ResourceType: eventguard.ResourceTypeEvent,
			ResourceID:   "evt-1",
			Actor:        eventguard.ActorSnapshot{MemberID: "m-1", Role: "member"},
			Outcome:      eventguard.OutcomeDenied,
			Reason:       "no editing authority for this event",
			Metadata: map[string]any{
				eventguard.MetaSecurityAlert:  true,
				eventguard.MetaEscalationType: string(eventguard.EscalationRoleBypass),
			},
		},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.ID, err)
		}
	}
	return base
}

func TestSQLAuditStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store, err := NewSQLAuditStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	var _ eventguard.AuditSink = store

	seedAuditTrail(t, store)

	got, err := store.Query(context.Background(), AuditQuery{
		MemberID:      "m-1",
		ResourceID:    "evt-1",
		ActionPattern: "edit_content",
		Outcome:       eventguard.OutcomeDenied,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	e := got[0]
	if e.ID != "a-2" {
		t.Fatalf("first entry %s, want a-2 (timestamp order)", e.ID)
	}
	if e.Invariant != eventguard.InvariantContentEditGate {
		t.Fatalf("invariant: %s", e.Invariant)
	}
	if e.Reason != "content cannot be edited while the event is PUBLISHED" {
		t.Fatalf("reason: %q", e.Reason)
	}
	if e.Actor.MemberID != "m-1" || e.Actor.Role != "member" {
		t.Fatalf("actor: %+v", e.Actor)
	}
	if e.Metadata[eventguard.MetaRequestID] != "req-9" {
		t.Fatalf("metadata: %v", e.Metadata)
	}
	if e.Timestamp.Unix() != time.Date(2026, 5, 1, 12, 1, 0, 0, time.UTC).Unix() {
		t.Fatalf("timestamp: %v", e.Timestamp)
	}
}

func TestSQLAuditStoreQueryFilters(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLAuditStore(db)
	ctx := context.Background()
	base := seedAuditTrail(t, store)

	got, err := store.Query(ctx, AuditQuery{ResourceID: "evt-1"})
	if err != nil {
		t.Fatalf("by resource: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("evt-1 entries: %d, want 3", len(got))
	}

	got, _ = store.Query(ctx, AuditQuery{ActionPattern: "edit_*"})
	if len(got) != 3 {
		t.Fatalf("edit_* entries: %d, want 3", len(got))
	}

	got, _ = store.Query(ctx, AuditQuery{ActionPattern: "view"})
	if len(got) != 1 || got[0].ID != "a-1" {
		t.Fatalf("exact action match: %+v", got)
	}

	got, _ = store.Query(ctx, AuditQuery{Outcome: eventguard.OutcomeDenied})
	if len(got) != 3 {
		t.Fatalf("denied entries: %d, want 3", len(got))
	}

	got, _ = store.Query(ctx, AuditQuery{OnlyAlerts: true})
	if len(got) != 1 || got[0].ID != "a-4" {
		t.Fatalf("alerts: %+v", got)
	}
	if got[0].Metadata[eventguard.MetaEscalationType] != string(eventguard.EscalationRoleBypass) {
		t.Fatalf("alert metadata lost: %v", got[0].Metadata)
	}

	got, _ = store.Query(ctx, AuditQuery{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("limit: %d entries", len(got))
	}

	got, _ = store.Query(ctx, AuditQuery{StartTime: base.Add(30 * time.Second)})
	if len(got) != 3 {
		t.Fatalf("start-time window: %d entries, want 3", len(got))
	}
	got, _ = store.Query(ctx, AuditQuery{EndTime: base.Add(90 * time.Second)})
	if len(got) != 2 {
		t.Fatalf("end-time window: %d entries, want 2", len(got))
	}

	// Denormalized transition columns round-trip.
	got, _ = store.Query(ctx, AuditQuery{MemberID: "m-2"})
	if len(got) != 1 || got[0].Before != "PUBLISHED" || got[0].After != "APPROVED" {
		t.Fatalf("transition entry: %+v", got)
	}
	if len(got[0].Actor.Capabilities) != 2 {
		t.Fatalf("actor capabilities lost: %+v", got[0].Actor)
	}
}
