package eventguard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// AUDIT TRAIL
// ============================================================================

// ResourceTypeEvent is the resource type recorded on every entry this
// library writes.
const ResourceTypeEvent = "Event"

// Outcome is the audited result of a guard invocation
type Outcome string

const (
	OutcomeAllowed Outcome = "ALLOWED"
	OutcomeDenied  Outcome = "DENIED"
	// OutcomeApproved marks an executed administrative override.
	OutcomeApproved Outcome = "APPROVED"
	// OutcomeAttempted marks an administrative override that was refused.
	OutcomeAttempted Outcome = "ATTEMPTED"
)

// Metadata marker keys. The entry's field shape stays fixed; flags ride in
// Metadata under these names, and audit viewers key on them.
const (
	MetaBulkOperation   = "bulkOperation"
	MetaSecurityAlert   = "securityAlert"
	MetaEscalationType  = "escalationType"
	MetaJustification   = "justification"
	MetaPolicyWouldDeny = "policyWouldDeny"
	MetaRequestID       = "requestId"
)

// ActorSnapshot is the audit-stable projection of the acting identity.
type ActorSnapshot struct {
	MemberID     string       `json:"memberId"`
	Role         string       `json:"role"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

func snapshotActor(a Actor) ActorSnapshot {
	return ActorSnapshot{
		MemberID:     a.MemberID,
		Role:         a.Role,
		Capabilities: a.Capabilities.List(),
	}
}

// AuditEntry is one immutable audit record. Field names are stable; new
// information is carried in Metadata, never by renaming fields.
type AuditEntry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	Actor        ActorSnapshot  `json:"actor"`
	Before       string         `json:"before,omitempty"`
	After        string         `json:"after,omitempty"`
	Outcome      Outcome        `json:"outcome"`
	Invariant    Invariant      `json:"invariant,omitempty"`
	Reason       string         `json:"reason"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AuditSink persists audit entries. Record must persist the entry before
// returning: the guard writes synchronously and treats a sink error as
// fatal to the guarded action, so a failed write means the action does not
// proceed. Sinks are append-only; nothing in this library updates or
// deletes entries.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// newAuditEntry is the one place a decision becomes an audit entry. Every
// guard goes through it, so outcome, invariant and reason cannot drift
// between the decision a caller saw and the entry the trail holds.
func newAuditEntry(now time.Time, actor Actor, ev EventSnapshot, action Action, d Decision, meta map[string]any) AuditEntry {
	outcome := OutcomeDenied
	if d.Allowed {
		outcome = OutcomeAllowed
	}
	return AuditEntry{
		ID:           uuid.NewString(),
		Timestamp:    now,
		Action:       action,
		ResourceType: ResourceTypeEvent,
		ResourceID:   ev.ID,
		Actor:        snapshotActor(actor),
		Outcome:      outcome,
		Invariant:    d.Invariant,
		Reason:       d.Reason,
		Metadata:     meta,
	}
}

// MemoryAuditSink is a simple in-memory audit sink for tests and demos.
// Production deployments use stores.SQLAuditStore.
type MemoryAuditSink struct {
	mu       sync.RWMutex
	entries  []AuditEntry
	failWith error
}

func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

func (m *MemoryAuditSink) Record(ctx context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded, in write order.
func (m *MemoryAuditSink) Entries() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// FailWith makes every subsequent Record return err. Used to exercise the
// fail-closed path; pass nil to heal the sink.
func (m *MemoryAuditSink) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}
