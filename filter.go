package eventguard

// EventFilter is a declarative visibility constraint for event list
// queries. Callers translate it into their storage layer's WHERE clause;
// Matches applies the same predicate in-process. The filter is an
// optimization for list endpoints only: per-row checks remain
// authoritative and CanViewEvent must be reapplied to anything returned.
type EventFilter struct {
	// Unrestricted grants the full table; ChairID and Statuses are ignored.
	Unrestricted bool `json:"unrestricted,omitempty"`
	// ChairID admits rows chaired by this member, regardless of status.
	ChairID string `json:"chairId,omitempty"`
	// Statuses admits rows in any of these states.
	Statuses []Status `json:"statuses,omitempty"`
}

// publicStatuses are the states visible without elevated capability.
var publicStatuses = []Status{StatusPublished, StatusCompleted}

// VisibilityFilter builds the event list filter for the actor. It admits
// exactly the rows CanViewEvent would allow:
//
//   - elevated visibility (admin, view-all, peer-trust): no filter
//   - authenticated member: own chaired rows, plus public states
//   - anonymous: public states only
func VisibilityFilter(actor Actor) EventFilter {
	if actor.Can(CapabilityFullAdmin) || actor.Can(CapabilityViewAllEvents) || actor.Can(CapabilityEditEvents) {
		return EventFilter{Unrestricted: true}
	}
	if actor.Authenticated() {
		return EventFilter{
			ChairID:  actor.MemberID,
			Statuses: append([]Status(nil), publicStatuses...),
		}
	}
	return EventFilter{Statuses: append([]Status(nil), publicStatuses...)}
}

// Matches applies the filter predicate to one snapshot.
func (f EventFilter) Matches(ev EventSnapshot) bool {
	if f.Unrestricted {
		return true
	}
	if f.ChairID != "" && ev.ChairID == f.ChairID {
		return true
	}
	for _, s := range f.Statuses {
		if ev.Status == s {
			return true
		}
	}
	return false
}
