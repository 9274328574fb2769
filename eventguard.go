package eventguard

import (
	"sort"
	"time"
)

// ============================================================================
// LIFECYCLE
// ============================================================================

// Status is the lifecycle state of an event
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusPendingApproval  Status = "PENDING_APPROVAL"
	StatusChangesRequested Status = "CHANGES_REQUESTED"
	StatusApproved         Status = "APPROVED"
	StatusPublished        Status = "PUBLISHED"
	StatusCanceled         Status = "CANCELED"
	// StatusCompleted is derived from PUBLISHED plus elapsed time and is
	// never a legal transition target.
	StatusCompleted Status = "COMPLETED"
)

// Statuses returns every lifecycle state in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusDraft,
		StatusPendingApproval,
		StatusChangesRequested,
		StatusApproved,
		StatusPublished,
		StatusCanceled,
		StatusCompleted,
	}
}

// Action identifies an operation an actor can attempt on an event
type Action string

const (
	ActionView               Action = "view"
	ActionViewDetails        Action = "view_details"
	ActionEditContent        Action = "edit_content"
	ActionEditStatus         Action = "edit_status"
	ActionDelete             Action = "delete"
	ActionRegister           Action = "register"
	ActionCancelRegistration Action = "cancel_registration"
)

// Actions returns every known action.
func Actions() []Action {
	return []Action{
		ActionView,
		ActionViewDetails,
		ActionEditContent,
		ActionEditStatus,
		ActionDelete,
		ActionRegister,
		ActionCancelRegistration,
	}
}

// Mutating reports whether the action changes event data. Read actions may
// skip auditing via WithoutAudit; mutating actions never do.
func (a Action) Mutating() bool {
	switch a {
	case ActionView, ActionViewDetails:
		return false
	}
	return true
}

// ============================================================================
// CAPABILITIES
// ============================================================================

// Capability is a named grant resolved from an actor's role
type Capability string

const (
	// CapabilityFullAdmin marks the full administrative tier.
	CapabilityFullAdmin Capability = "full_admin"
	// CapabilityViewAllEvents lifts status-based visibility restrictions.
	CapabilityViewAllEvents Capability = "view_all_events"
	// CapabilityEditEvents marks the peer-trust tier: edit any event and
	// drive the full coordinator transition set.
	CapabilityEditEvents Capability = "edit_events"
	// CapabilityDeleteEvents authorizes hard deletion.
	CapabilityDeleteEvents Capability = "delete_events"
)

// Capabilities returns every known capability.
func Capabilities() []Capability {
	return []Capability{
		CapabilityFullAdmin,
		CapabilityViewAllEvents,
		CapabilityEditEvents,
		CapabilityDeleteEvents,
	}
}

// CapabilitySet is the set of capabilities granted to an actor
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s CapabilitySet) Add(c Capability) CapabilitySet {
	if s == nil {
		s = make(CapabilitySet, 1)
	}
	s[c] = struct{}{}
	return s
}

// List returns the set's capabilities sorted for stable output.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Actor is the authenticated (or anonymous) identity a request runs as.
// It is immutable for the duration of a request; callers build it once
// from their session layer and a CapabilityResolver.
type Actor struct {
	MemberID     string        `json:"memberId"` // empty = anonymous
	Role         string        `json:"role"`
	Capabilities CapabilitySet `json:"-"`
}

// Authenticated reports whether the actor carries a member identity.
func (a Actor) Authenticated() bool { return a.MemberID != "" }

// Can reports whether the actor holds the capability.
func (a Actor) Can(c Capability) bool { return a.Capabilities.Has(c) }

// IsChairOf reports whether the actor is the event's chair of record.
func (a Actor) IsChairOf(ev EventSnapshot) bool {
	return a.MemberID != "" && ev.ChairID == a.MemberID
}

// EventSnapshot is a read-only projection of the event row under decision.
// The engine never loads or mutates events; callers supply the snapshot.
type EventSnapshot struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	ChairID   string    `json:"chairId,omitempty"`
	GroupID   string    `json:"groupId,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitzero"`
}

// Ended reports whether the event's registration window has passed,
// falling back to the start time when no end time is set. An event with
// no schedule at all is treated as still open.
func (e EventSnapshot) Ended(now time.Time) bool {
	deadline := e.EndTime
	if deadline.IsZero() {
		deadline = e.StartTime
	}
	if deadline.IsZero() {
		return false
	}
	return now.After(deadline)
}

// EffectiveStatus returns the status consumers should display: a PUBLISHED
// event whose schedule has passed reads as COMPLETED. The stored status is
// never rewritten and no transition may target COMPLETED.
func EffectiveStatus(ev EventSnapshot, now time.Time) Status {
	if ev.Status == StatusPublished && ev.Ended(now) {
		return StatusCompleted
	}
	return ev.Status
}

// ============================================================================
// DECISIONS
// ============================================================================

// Invariant identifies the security rule that determined a decision.
// The identifiers are stable and audit-visible; tests assert on them
// instead of parsing reason strings.
type Invariant string

const (
	// InvariantStatusVisibility: without an elevated view capability only
	// PUBLISHED and COMPLETED events are visible.
	InvariantStatusVisibility Invariant = "SI-1"
	// InvariantChairOwnership: the chair of record sees and edits their own
	// event regardless of status and may submit it for approval.
	InvariantChairOwnership Invariant = "SI-2"
	// InvariantPeerTrust: the edit-events tier edits any event and drives
	// the coordinator transition set.
	InvariantPeerTrust Invariant = "SI-3"
	// InvariantFullAdmin: the full administrative tier overrides the
	// role and ownership checks.
	InvariantFullAdmin Invariant = "SI-4"
	// InvariantDeleteAuthority: deletion is reserved to the delete
	// capability; the peer-trust tier is steered to cancellation.
	InvariantDeleteAuthority Invariant = "SI-5"
	// InvariantContentEditGate: content edits only in DRAFT or
	// CHANGES_REQUESTED, checked before any role or ownership rule.
	InvariantContentEditGate Invariant = "SI-6"
	// InvariantRegistrationWindow: registration only for PUBLISHED events
	// that have not ended, and only with a member identity.
	InvariantRegistrationWindow Invariant = "SI-7"
)

// DenialCode classifies a denial for the caller's error mapping
type DenialCode string

const (
	// CodeUnauthorized means no identity was presented where one is
	// required, e.g. anonymous registration.
	CodeUnauthorized DenialCode = "UNAUTHORIZED"
	// CodeForbidden means an identity was presented and policy denied it.
	CodeForbidden DenialCode = "FORBIDDEN"
	// CodeNotFound is reserved for callers that cannot locate a snapshot;
	// the engine itself never returns it.
	CodeNotFound DenialCode = "NOT_FOUND"
	// CodeInvalidState means the lifecycle state forbids the action, e.g.
	// a content edit outside DRAFT/CHANGES_REQUESTED or an illegal
	// transition.
	CodeInvalidState DenialCode = "INVALID_STATE"
)

// Decision is the outcome of one policy evaluation. Decisions are values:
// they are never stored and never cached, only folded into audit entries.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Reason    string     `json:"reason"`
	Invariant Invariant  `json:"invariant,omitempty"`
	Code      DenialCode `json:"code,omitempty"`
}

func allow(inv Invariant, reason string) Decision {
	return Decision{Allowed: true, Reason: reason, Invariant: inv}
}

func deny(inv Invariant, code DenialCode, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Invariant: inv, Code: code}
}
