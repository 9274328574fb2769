package eventguard

import (
	"fmt"
	"time"
)

// ============================================================================
// TRANSITION TABLES
// ============================================================================

// coordinatorTransitions is the peer-trust workflow. Publishing is
// one-directional here; pulling an event back from PUBLISHED is an
// administrative action.
var coordinatorTransitions = map[Status][]Status{
	StatusDraft:            {StatusPendingApproval},
	StatusPendingApproval:  {StatusApproved, StatusChangesRequested},
	StatusChangesRequested: {StatusPendingApproval},
	StatusApproved:         {StatusPublished},
}

// cancelableStatuses are the states a coordinator may cancel from.
var cancelableStatuses = map[Status]struct{}{
	StatusDraft:            {},
	StatusPendingApproval:  {},
	StatusChangesRequested: {},
	StatusApproved:         {},
	StatusPublished:        {},
}

// chairTransitions is the chair-of-record workflow: submit and resubmit
// their own event for review, nothing else.
var chairTransitions = map[Status][]Status{
	StatusDraft:            {StatusPendingApproval},
	StatusChangesRequested: {StatusPendingApproval},
}

func tableAllows(table map[Status][]Status, from, to Status) bool {
	for _, t := range table[from] {
		if t == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the status targets the actor could legally
// request for the event, in lifecycle order. Useful for rendering action
// menus; the guard still re-checks every request.
func AllowedTransitions(actor Actor, ev EventSnapshot) []Status {
	switch {
	case actor.Can(CapabilityFullAdmin):
		out := make([]Status, 0, 5)
		for _, s := range Statuses() {
			if s == StatusCompleted || s == ev.Status {
				continue
			}
			out = append(out, s)
		}
		return out
	case actor.Can(CapabilityEditEvents):
		out := append([]Status(nil), coordinatorTransitions[ev.Status]...)
		if _, ok := cancelableStatuses[ev.Status]; ok {
			out = append(out, StatusCanceled)
		}
		return out
	case actor.IsChairOf(ev):
		return append([]Status(nil), chairTransitions[ev.Status]...)
	}
	return nil
}

// ============================================================================
// POLICY FUNCTIONS
// ============================================================================

// CanViewEvent decides list/detail visibility of one event row.
func CanViewEvent(actor Actor, ev EventSnapshot) Decision {
	if actor.Can(CapabilityFullAdmin) {
		return allow(InvariantFullAdmin, "full administrative access")
	}
	if actor.Can(CapabilityViewAllEvents) || actor.Can(CapabilityEditEvents) {
		return allow(InvariantPeerTrust, "elevated event visibility")
	}
	if actor.IsChairOf(ev) {
		return allow(InvariantChairOwnership, "chair of record may view their own event")
	}
	if ev.Status == StatusPublished || ev.Status == StatusCompleted {
		return allow(InvariantStatusVisibility, "event is publicly visible")
	}
	return deny(InvariantStatusVisibility, CodeForbidden,
		fmt.Sprintf("events in %s are not publicly visible", ev.Status))
}

// CanViewEventDetails decides access to the expanded detail view. The rule
// is the same as CanViewEvent; detail reads carry their own action label in
// the audit trail.
func CanViewEventDetails(actor Actor, ev EventSnapshot) Decision {
	return CanViewEvent(actor, ev)
}

// CanEditEventContent decides non-status field edits. The lifecycle gate
// runs before any role or ownership check, so no tier can edit content
// outside DRAFT or CHANGES_REQUESTED.
func CanEditEventContent(actor Actor, ev EventSnapshot) Decision {
	if ev.Status != StatusDraft && ev.Status != StatusChangesRequested {
		return deny(InvariantContentEditGate, CodeInvalidState,
			fmt.Sprintf("content cannot be edited while the event is %s", ev.Status))
	}
	if actor.Can(CapabilityFullAdmin) {
		return allow(InvariantFullAdmin, "full administrative access")
	}
	if actor.Can(CapabilityEditEvents) {
		return allow(InvariantPeerTrust, "peer-trust tier may edit any event")
	}
	if actor.IsChairOf(ev) {
		return allow(InvariantChairOwnership, "chair of record may edit their own event")
	}
	return deny("", CodeForbidden, "no editing authority for this event")
}

// CanEditEventStatus decides a lifecycle transition to target. Every denial
// names the exact transition so callers can surface it.
func CanEditEventStatus(actor Actor, ev EventSnapshot, target Status) Decision {
	if target == StatusCompleted {
		return deny("", CodeInvalidState,
			"COMPLETED is derived from the event schedule and cannot be set directly")
	}
	if actor.Can(CapabilityFullAdmin) {
		return allow(InvariantFullAdmin, "full administrative access")
	}
	if actor.Can(CapabilityEditEvents) {
		if target == StatusCanceled {
			if _, ok := cancelableStatuses[ev.Status]; ok {
				return allow(InvariantPeerTrust,
					fmt.Sprintf("coordinator workflow allows cancellation from %s", ev.Status))
			}
			return deny(InvariantPeerTrust, CodeInvalidState,
				fmt.Sprintf("cannot transition from %s to %s", ev.Status, target))
		}
		if tableAllows(coordinatorTransitions, ev.Status, target) {
			return allow(InvariantPeerTrust,
				fmt.Sprintf("coordinator workflow allows %s to %s", ev.Status, target))
		}
		return deny(InvariantPeerTrust, CodeInvalidState,
			fmt.Sprintf("cannot transition from %s to %s", ev.Status, target))
	}
	if actor.IsChairOf(ev) {
		if tableAllows(chairTransitions, ev.Status, target) {
			return allow(InvariantChairOwnership, "chair may submit their own event for review")
		}
		return deny(InvariantChairOwnership, CodeInvalidState,
			fmt.Sprintf("cannot transition from %s to %s", ev.Status, target))
	}
	return deny("", CodeForbidden, "no authority to change event status")
}

// CanDeleteEvent decides hard deletion. Deletion is reserved to the
// administrative tier; coordinators are pointed at cancellation, which
// preserves the event record.
func CanDeleteEvent(actor Actor, ev EventSnapshot) Decision {
	if actor.Can(CapabilityFullAdmin) || actor.Can(CapabilityDeleteEvents) {
		return allow(InvariantDeleteAuthority, "deletion authority")
	}
	if actor.Can(CapabilityEditEvents) {
		return deny(InvariantDeleteAuthority, CodeForbidden,
			"coordinators cannot delete events; cancel the event instead")
	}
	return deny(InvariantDeleteAuthority, CodeForbidden, "only administrators can delete events")
}

// CanRegisterForEvent decides member registration at time now.
func CanRegisterForEvent(actor Actor, ev EventSnapshot, now time.Time) Decision {
	if ev.Status != StatusPublished {
		return deny(InvariantStatusVisibility, CodeForbidden,
			fmt.Sprintf("registration is only open for published events, not %s", ev.Status))
	}
	if ev.Ended(now) {
		return deny(InvariantRegistrationWindow, CodeForbidden,
			"registration closed; the event has ended")
	}
	if !actor.Authenticated() {
		return deny(InvariantRegistrationWindow, CodeUnauthorized,
			"sign in to register for events")
	}
	return allow(InvariantRegistrationWindow, "registration open")
}

// CanCancelRegistration decides withdrawal of the actor's own registration.
// Mirrors the registration window: stale or unpublished events no longer
// accept registration changes.
func CanCancelRegistration(actor Actor, ev EventSnapshot, now time.Time) Decision {
	if ev.Status != StatusPublished {
		return deny(InvariantStatusVisibility, CodeForbidden,
			fmt.Sprintf("registrations can only be changed on published events, not %s", ev.Status))
	}
	if ev.Ended(now) {
		return deny(InvariantRegistrationWindow, CodeForbidden,
			"registration closed; the event has ended")
	}
	if !actor.Authenticated() {
		return deny(InvariantRegistrationWindow, CodeUnauthorized,
			"sign in to manage your registrations")
	}
	return allow(InvariantRegistrationWindow, "registration changes open")
}

// Evaluate dispatches to the policy function for the action. target is
// consulted for edit_status only; now for the registration actions only.
func Evaluate(actor Actor, ev EventSnapshot, action Action, target Status, now time.Time) Decision {
	switch action {
	case ActionView:
		return CanViewEvent(actor, ev)
	case ActionViewDetails:
		return CanViewEventDetails(actor, ev)
	case ActionEditContent:
		return CanEditEventContent(actor, ev)
	case ActionEditStatus:
		return CanEditEventStatus(actor, ev, target)
	case ActionDelete:
		return CanDeleteEvent(actor, ev)
	case ActionRegister:
		return CanRegisterForEvent(actor, ev, now)
	case ActionCancelRegistration:
		return CanCancelRegistration(actor, ev, now)
	}
	return deny("", CodeForbidden, fmt.Sprintf("unknown action %q", action))
}
