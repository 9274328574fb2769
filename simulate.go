package eventguard

import (
	"context"
	"fmt"
	"time"
)

// ============================================================================
// SIMULATION
// ============================================================================

// SimulateRequest describes one hypothetical guard call: who, which event,
// what action. Capabilities may be listed explicitly; otherwise they are
// resolved from Role through the supplied resolver.
type SimulateRequest struct {
	MemberID     string       `json:"memberId,omitempty"`
	Role         string       `json:"role,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	EventID      string       `json:"eventId"`
	Status       string       `json:"status"`
	ChairID      string       `json:"chairId,omitempty"`
	GroupID      string       `json:"groupId,omitempty"`
	StartTime    time.Time    `json:"startTime,omitzero"`
	EndTime      time.Time    `json:"endTime,omitzero"`
	Action       string       `json:"action"`
	Target       string       `json:"target,omitempty"`
	Now          time.Time    `json:"now,omitzero"`
}

// SimulateResult is the dry-run outcome: the decision plus the audit entry
// a guard would have written. Nothing is persisted and no sink is touched.
type SimulateResult struct {
	Actor    Actor         `json:"actor"`
	Event    EventSnapshot `json:"event"`
	Decision Decision      `json:"decision"`
	Entry    AuditEntry    `json:"entry"`
}

// Simulate evaluates a hypothetical request against the same policy the
// guards use. Operators run it (via the CLI) to answer "would this be
// allowed, and what would the trail say" before changing a config.
func Simulate(ctx context.Context, resolver CapabilityResolver, req SimulateRequest) (*SimulateResult, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return nil, fmt.Errorf("eventguard: simulate: %w", err)
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("eventguard: simulate: %w", err)
	}
	var target Status
	if req.Target != "" {
		if target, err = ParseStatus(req.Target); err != nil {
			return nil, fmt.Errorf("eventguard: simulate: %w", err)
		}
	}
	if action == ActionEditStatus && req.Target == "" {
		return nil, fmt.Errorf("eventguard: simulate: edit_status requires a target status")
	}

	caps := NewCapabilitySet(req.Capabilities...)
	if len(req.Capabilities) == 0 && resolver != nil {
		if caps, err = resolver.Resolve(ctx, req.Role); err != nil {
			return nil, fmt.Errorf("eventguard: simulate: resolve role %q: %w", req.Role, err)
		}
	}
	actor := Actor{MemberID: req.MemberID, Role: req.Role, Capabilities: caps}
	ev := EventSnapshot{
		ID:        req.EventID,
		Status:    status,
		ChairID:   req.ChairID,
		GroupID:   req.GroupID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	d := Evaluate(actor, ev, action, target, now)
	entry := newAuditEntry(now, actor, ev, action, d, nil)
	if action == ActionEditStatus {
		entry.Before, entry.After = string(ev.Status), string(target)
	}
	return &SimulateResult{Actor: actor, Event: ev, Decision: d, Entry: entry}, nil
}
