package eventguard

import (
	"context"
	"errors"
	"testing"
)

func TestDetectIgnoresAllowedDecisions(t *testing.T) {
	member := memberActor("m-2")
	ev := eventIn(StatusPublished)
	if _, ok := Detect(member, ev, ActionView, allow(InvariantStatusVisibility, "visible")); ok {
		t.Fatalf("allowed decision classified as escalation")
	}
}

func TestDetectRoleBypass(t *testing.T) {
	member := memberActor("m-2")
	ev := eventIn(StatusDraft)
	d := CanEditEventContent(member, ev)
	if d.Allowed {
		t.Fatalf("member edited a draft they do not chair")
	}
	attempt, ok := Detect(member, ev, ActionEditContent, d)
	if !ok || attempt.Type != EscalationRoleBypass {
		t.Fatalf("got ok=%v type=%s, want %s", ok, attempt.Type, EscalationRoleBypass)
	}
	if attempt.DenialReason != d.Reason {
		t.Fatalf("denial reason not carried: %q", attempt.DenialReason)
	}
}

func TestDetectCapabilityBypass(t *testing.T) {
	coord := coordinatorActor()
	ev := eventIn(StatusPublished)
	d := CanDeleteEvent(coord, ev)
	attempt, ok := Detect(coord, ev, ActionDelete, d)
	if !ok || attempt.Type != EscalationCapabilityBypass {
		t.Fatalf("got ok=%v type=%s, want %s", ok, attempt.Type, EscalationCapabilityBypass)
	}
}

func TestDetectOwnershipBypass(t *testing.T) {
	chair := chairActor("m-chair")
	foreign := EventSnapshot{ID: "evt-2", Status: StatusDraft, ChairID: "someone-else"}
	d := CanEditEventStatus(chair, foreign, StatusPendingApproval)
	attempt, ok := Detect(chair, foreign, ActionEditStatus, d)
	if !ok || attempt.Type != EscalationOwnershipBypass {
		t.Fatalf("got ok=%v type=%s, want %s", ok, attempt.Type, EscalationOwnershipBypass)
	}
}

func TestDetectStatusBypass(t *testing.T) {
	// Coordinator carries capabilities, so the capability-less rules skip
	// and the lifecycle rule classifies it.
	coord := coordinatorActor()
	ev := eventIn(StatusPublished)
	d := CanEditEventContent(coord, ev)
	attempt, ok := Detect(coord, ev, ActionEditContent, d)
	if !ok || attempt.Type != EscalationStatusBypass {
		t.Fatalf("got ok=%v type=%s, want %s", ok, attempt.Type, EscalationStatusBypass)
	}
}

func TestDetectFirstMatchWins(t *testing.T) {
	// A capability-less content edit on a published event matches both the
	// role rule and the status rule; the table order picks role_bypass.
	member := memberActor("m-2")
	ev := eventIn(StatusPublished)
	d := CanEditEventContent(member, ev)
	attempt, ok := Detect(member, ev, ActionEditContent, d)
	if !ok || attempt.Type != EscalationRoleBypass {
		t.Fatalf("got ok=%v type=%s, want %s", ok, attempt.Type, EscalationRoleBypass)
	}
}

func TestDetectSkipsOrdinaryDenials(t *testing.T) {
	anon := anonymousActor()
	ev := eventIn(StatusDraft)
	d := CanViewEvent(anon, ev)
	if _, ok := Detect(anon, ev, ActionView, d); ok {
		t.Fatalf("an anonymous view denial is not a privilege probe")
	}
}

func TestDetectorReportWritesAlertEntry(t *testing.T) {
	sink := NewMemoryAuditSink()
	det := NewDetector(sink, nil, nil)

	det.Report(context.Background(), EscalationAttempt{
		Type:         EscalationRoleBypass,
		Actor:        memberActor("m-2"),
		Event:        eventIn(StatusDraft),
		Action:       ActionEditContent,
		DenialReason: "no editing authority for this event",
	})

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Metadata[MetaSecurityAlert] != true {
		t.Fatalf("alert flag missing: %v", e.Metadata)
	}
	if e.Metadata[MetaEscalationType] != string(EscalationRoleBypass) {
		t.Fatalf("escalation type: %v", e.Metadata[MetaEscalationType])
	}
	if e.Outcome != OutcomeDenied || e.Reason != "no editing authority for this event" {
		t.Fatalf("alert entry: outcome=%s reason=%q", e.Outcome, e.Reason)
	}
}

func TestDetectorSwallowsSinkFailure(t *testing.T) {
	sink := NewMemoryAuditSink()
	sink.FailWith(errors.New("sink down"))
	det := NewDetector(sink, nil, nil)

	// Telemetry must never change the caller's outcome, so this returns
	// normally even though nothing was written.
	det.Report(context.Background(), EscalationAttempt{
		Type:   EscalationCapabilityBypass,
		Actor:  memberActor("m-2"),
		Event:  eventIn(StatusPublished),
		Action: ActionDelete,
	})
	if len(sink.Entries()) != 0 {
		t.Fatalf("expected nothing recorded")
	}
}

func TestDetectorObserveSkipsUnclassified(t *testing.T) {
	sink := NewMemoryAuditSink()
	det := NewDetector(sink, nil, nil)
	anon := anonymousActor()
	ev := eventIn(StatusDraft)

	det.Observe(context.Background(), anon, ev, ActionView, CanViewEvent(anon, ev))
	if len(sink.Entries()) != 0 {
		t.Fatalf("unclassified denial produced an alert")
	}
}
