package eventguard

import (
	"context"
	"time"

	"github.com/sbnctech/murmurant-eventguard/logger"
	"github.com/sbnctech/murmurant-eventguard/metrics"
)

// ============================================================================
// ESCALATION DETECTION
// ============================================================================

// EscalationType classifies a denied request that looks like a privilege
// probe
type EscalationType string

const (
	// EscalationRoleBypass: a capability-less actor attempted a content
	// edit on an event they do not chair.
	EscalationRoleBypass EscalationType = "role_bypass"
	// EscalationCapabilityBypass: delete attempted without deletion
	// authority.
	EscalationCapabilityBypass EscalationType = "capability_bypass"
	// EscalationOwnershipBypass: a chair-scoped actor tried to modify an
	// event they do not chair.
	EscalationOwnershipBypass EscalationType = "ownership_bypass"
	// EscalationStatusBypass: content edit attempted outside
	// DRAFT/CHANGES_REQUESTED.
	EscalationStatusBypass EscalationType = "status_bypass"
)

// EscalationAttempt is a classified denial. It is advisory telemetry and
// never feeds back into enforcement.
type EscalationAttempt struct {
	Type         EscalationType `json:"type"`
	Actor        Actor          `json:"actor"`
	Event        EventSnapshot  `json:"event"`
	Action       Action         `json:"action"`
	DenialReason string         `json:"denialReason"`
}

// escalationRules is the classification table, checked in order; the first
// matching row wins. Rules are heuristics over the request shape, not a
// second policy evaluation.
var escalationRules = []struct {
	typ  EscalationType
	when func(actor Actor, ev EventSnapshot, action Action) bool
}{
	{EscalationRoleBypass, func(actor Actor, ev EventSnapshot, action Action) bool {
		return action == ActionEditContent && len(actor.Capabilities) == 0 && !actor.IsChairOf(ev)
	}},
	{EscalationCapabilityBypass, func(actor Actor, ev EventSnapshot, action Action) bool {
		return action == ActionDelete && !actor.Can(CapabilityFullAdmin) && !actor.Can(CapabilityDeleteEvents)
	}},
	{EscalationOwnershipBypass, func(actor Actor, ev EventSnapshot, action Action) bool {
		switch action {
		case ActionEditContent, ActionEditStatus, ActionDelete:
		default:
			return false
		}
		return actor.Authenticated() && len(actor.Capabilities) == 0 && !actor.IsChairOf(ev)
	}},
	{EscalationStatusBypass, func(actor Actor, ev EventSnapshot, action Action) bool {
		return action == ActionEditContent && ev.Status != StatusDraft && ev.Status != StatusChangesRequested
	}},
}

// Detect classifies a denied decision. It returns at most one
// classification; allowed decisions never classify.
func Detect(actor Actor, ev EventSnapshot, action Action, d Decision) (EscalationAttempt, bool) {
	if d.Allowed {
		return EscalationAttempt{}, false
	}
	for _, rule := range escalationRules {
		if rule.when(actor, ev, action) {
			return EscalationAttempt{
				Type:         rule.typ,
				Actor:        actor,
				Event:        ev,
				Action:       action,
				DenialReason: d.Reason,
			}, true
		}
	}
	return EscalationAttempt{}, false
}

// Detector reports classified denials: one securityAlert audit entry plus
// a synchronous warning log line. log and m may be nil.
type Detector struct {
	sink    AuditSink
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewDetector(sink AuditSink, log logger.Logger, m *metrics.Metrics) *Detector {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Detector{sink: sink, log: log, metrics: m}
}

// Observe classifies the denial and reports any match. Reporting failures
// are logged and swallowed: enforcement already happened in the policy
// layer and telemetry must not change the caller's outcome.
func (det *Detector) Observe(ctx context.Context, actor Actor, ev EventSnapshot, action Action, d Decision) {
	attempt, ok := Detect(actor, ev, action, d)
	if !ok {
		return
	}
	det.Report(ctx, attempt)
}

// Report writes the alert entry and mirrors it to the warning channel.
func (det *Detector) Report(ctx context.Context, attempt EscalationAttempt) {
	d := Decision{Allowed: false, Reason: attempt.DenialReason}
	meta := map[string]any{
		MetaSecurityAlert:  true,
		MetaEscalationType: string(attempt.Type),
	}
	entry := newAuditEntry(time.Now(), attempt.Actor, attempt.Event, attempt.Action, d, meta)
	if det.sink != nil {
		if err := det.sink.Record(ctx, entry); err != nil {
			det.log.Error("escalation alert write failed",
				"escalationType", string(attempt.Type), "error", err.Error())
		}
	}
	det.log.Warn("escalation attempt detected",
		"escalationType", string(attempt.Type),
		"action", string(attempt.Action),
		"eventId", attempt.Event.ID,
		"status", string(attempt.Event.Status),
		"memberId", attempt.Actor.MemberID,
		"role", attempt.Actor.Role,
		"reason", attempt.DenialReason)
	if det.metrics != nil {
		det.metrics.Escalation(string(attempt.Type))
	}
}
