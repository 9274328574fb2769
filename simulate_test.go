package eventguard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSimulateChairSubmission(t *testing.T) {
	res, err := Simulate(context.Background(), DefaultConfig().Resolver(), SimulateRequest{
		MemberID: "m-c",
		Role:     "chair",
		EventID:  "evt-1",
		Status:   "DRAFT",
		ChairID:  "m-c",
		Action:   "edit_status",
		Target:   "PENDING_APPROVAL",
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !res.Decision.Allowed || res.Decision.Invariant != InvariantChairOwnership {
		t.Fatalf("decision: %+v", res.Decision)
	}
	if res.Entry.Before != "DRAFT" || res.Entry.After != "PENDING_APPROVAL" {
		t.Fatalf("entry transition: %q -> %q", res.Entry.Before, res.Entry.After)
	}
	if res.Entry.Outcome != OutcomeAllowed {
		t.Fatalf("entry outcome: %s", res.Entry.Outcome)
	}
}

func TestSimulateExplicitCapabilities(t *testing.T) {
	// Listing capabilities bypasses the resolver entirely.
	res, err := Simulate(context.Background(), nil, SimulateRequest{
		MemberID:     "m-a",
		Role:         "admin",
		Capabilities: []Capability{CapabilityFullAdmin},
		EventID:      "evt-1",
		Status:       "DRAFT",
		Action:       "delete",
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !res.Decision.Allowed {
		t.Fatalf("admin delete denied: %+v", res.Decision)
	}
	if !res.Actor.Can(CapabilityFullAdmin) {
		t.Fatalf("explicit capabilities lost: %v", res.Actor.Capabilities.List())
	}
}

func TestSimulateInputValidation(t *testing.T) {
	ctx := context.Background()
	r := DefaultConfig().Resolver()

	if _, err := Simulate(ctx, r, SimulateRequest{Status: "DRAFT", Action: "export"}); err == nil {
		t.Fatalf("unknown action accepted")
	}
	if _, err := Simulate(ctx, r, SimulateRequest{Status: "LIMBO", Action: "view"}); err == nil {
		t.Fatalf("unknown status accepted")
	}
	_, err := Simulate(ctx, r, SimulateRequest{Status: "DRAFT", Action: "edit_status"})
	if err == nil || !strings.Contains(err.Error(), "target") {
		t.Fatalf("missing target: %v", err)
	}
	if _, err := Simulate(ctx, r, SimulateRequest{Status: "DRAFT", Action: "edit_status", Target: "SOMEDAY"}); err == nil {
		t.Fatalf("unknown target accepted")
	}

	_, err = Simulate(ctx, errorResolver{err: errors.New("store down")}, SimulateRequest{
		Role: "member", Status: "PUBLISHED", Action: "view",
	})
	if err == nil || !strings.Contains(err.Error(), "resolve role") {
		t.Fatalf("resolver failure: %v", err)
	}
}

func TestSimulatePinnedClock(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	res, err := Simulate(context.Background(), DefaultConfig().Resolver(), SimulateRequest{
		MemberID: "m-2",
		Role:     "member",
		EventID:  "evt-1",
		Status:   "PUBLISHED",
		EndTime:  now.Add(-time.Hour),
		Action:   "register",
		Now:      now,
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Decision.Allowed || res.Decision.Invariant != InvariantRegistrationWindow {
		t.Fatalf("ended event registration: %+v", res.Decision)
	}
	if !res.Entry.Timestamp.Equal(now) {
		t.Fatalf("entry timestamp %v, want %v", res.Entry.Timestamp, now)
	}
}

func TestSimulateTolerantParsing(t *testing.T) {
	res, err := Simulate(context.Background(), DefaultConfig().Resolver(), SimulateRequest{
		MemberID: "m-2",
		Role:     "member",
		EventID:  "evt-1",
		Status:   "published",
		Action:   "VIEW",
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !res.Decision.Allowed {
		t.Fatalf("member view published: %+v", res.Decision)
	}
	if res.Event.Status != StatusPublished || res.Entry.Action != ActionView {
		t.Fatalf("normalized inputs: status=%s action=%s", res.Event.Status, res.Entry.Action)
	}
}
