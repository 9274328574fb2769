package eventguard

import "time"

// Builders provide a fluent API for assembling Actors and EventSnapshots

// ActorBuilder builds an Actor
type ActorBuilder struct {
	a Actor
}

func NewActorBuilder() *ActorBuilder {
	return &ActorBuilder{a: Actor{Capabilities: CapabilitySet{}}}
}

func (b *ActorBuilder) MemberID(id string) *ActorBuilder { b.a.MemberID = id; return b }
func (b *ActorBuilder) Role(role string) *ActorBuilder   { b.a.Role = role; return b }
func (b *ActorBuilder) Grant(caps ...Capability) *ActorBuilder {
	for _, c := range caps {
		b.a.Capabilities = b.a.Capabilities.Add(c)
	}
	return b
}
func (b *ActorBuilder) Build() Actor { return b.a }

// EventBuilder builds an EventSnapshot
type EventBuilder struct {
	e EventSnapshot
}

func NewEventBuilder(id string) *EventBuilder {
	return &EventBuilder{e: EventSnapshot{ID: id, Status: StatusDraft}}
}

func (b *EventBuilder) Status(s Status) *EventBuilder       { b.e.Status = s; return b }
func (b *EventBuilder) Chair(memberID string) *EventBuilder { b.e.ChairID = memberID; return b }
func (b *EventBuilder) Group(groupID string) *EventBuilder  { b.e.GroupID = groupID; return b }
func (b *EventBuilder) Starts(t time.Time) *EventBuilder    { b.e.StartTime = t; return b }
func (b *EventBuilder) Ends(t time.Time) *EventBuilder      { b.e.EndTime = t; return b }
func (b *EventBuilder) Build() EventSnapshot                { return b.e }
