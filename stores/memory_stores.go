package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"

	eventguard "github.com/sbnctech/murmurant-eventguard"
	"github.com/sbnctech/murmurant-eventguard/utils"
)

// MemoryAuditStore implements in-memory audit logging for tests and demos,
// with the same Query surface as SQLAuditStore.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []eventguard.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{entries: make([]eventguard.AuditEntry, 0)}
}

func (s *MemoryAuditStore) Record(ctx context.Context, entry eventguard.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryAuditStore) Query(ctx context.Context, filter AuditQuery) ([]eventguard.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]eventguard.AuditEntry, 0)
	for _, entry := range s.entries {
		if filter.MemberID != "" && entry.Actor.MemberID != filter.MemberID {
			continue
		}
		if filter.ResourceID != "" && entry.ResourceID != filter.ResourceID {
			continue
		}
		if filter.ActionPattern != "" && !utils.Match(string(entry.Action), filter.ActionPattern) {
			continue
		}
		if filter.Outcome != "" && entry.Outcome != filter.Outcome {
			continue
		}
		if filter.OnlyAlerts && !isAlert(entry) {
			continue
		}
		if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func isAlert(entry eventguard.AuditEntry) bool {
	v, ok := entry.Metadata[eventguard.MetaSecurityAlert]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// MemoryCapabilityStore implements in-memory role grant persistence
type MemoryCapabilityStore struct {
	mu     sync.RWMutex
	grants map[string]eventguard.CapabilitySet
}

func NewMemoryCapabilityStore() *MemoryCapabilityStore {
	return &MemoryCapabilityStore{grants: make(map[string]eventguard.CapabilitySet)}
}

func (s *MemoryCapabilityStore) Grant(ctx context.Context, role string, caps ...eventguard.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[role]
	if !ok {
		set = eventguard.CapabilitySet{}
		s.grants[role] = set
	}
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return nil
}

func (s *MemoryCapabilityStore) Revoke(ctx context.Context, role string, caps ...eventguard.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[role]
	if !ok {
		return nil
	}
	for _, c := range caps {
		delete(set, c)
	}
	return nil
}

func (s *MemoryCapabilityStore) Capabilities(ctx context.Context, role string) (eventguard.CapabilitySet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.grants[role]
	if !ok {
		return eventguard.CapabilitySet{}, nil
	}
	return set.Clone(), nil
}

func (s *MemoryCapabilityStore) Roles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.grants))
	for role := range s.grants {
		out = append(out, role)
	}
	sort.Strings(out)
	return out, nil
}

// MemoryEventStore implements in-memory event persistence with the same
// ListVisible surface as SQLEventStore.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string]eventguard.EventSnapshot
	order  []string
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string]eventguard.EventSnapshot)}
}

func (s *MemoryEventStore) Insert(ctx context.Context, ev eventguard.EventSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[ev.ID]; exists {
		return fmt.Errorf("event already exists: %s", ev.ID)
	}
	s.events[ev.ID] = ev
	s.order = append(s.order, ev.ID)
	return nil
}

func (s *MemoryEventStore) UpdateStatus(ctx context.Context, id string, status eventguard.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return fmt.Errorf("event not found: %s", id)
	}
	ev.Status = status
	s.events[id] = ev
	return nil
}

func (s *MemoryEventStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	for i, evID := range s.order {
		if evID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryEventStore) Get(ctx context.Context, id string) (eventguard.EventSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return eventguard.EventSnapshot{}, fmt.Errorf("event not found: %s", id)
	}
	return ev, nil
}

func (s *MemoryEventStore) ListVisible(ctx context.Context, filter eventguard.EventFilter) ([]eventguard.EventSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]eventguard.EventSnapshot, 0)
	for _, id := range s.order {
		ev := s.events[id]
		if filter.Matches(ev) {
			result = append(result, ev)
		}
	}
	return result, nil
}

// MemoryRoleDirectory mirrors RedisRoleDirectory for tests without Redis.
type MemoryRoleDirectory struct {
	mu    sync.RWMutex
	roles map[string]string
}

func NewMemoryRoleDirectory() *MemoryRoleDirectory {
	return &MemoryRoleDirectory{roles: make(map[string]string)}
}

func (d *MemoryRoleDirectory) SetRole(ctx context.Context, memberID, role string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[memberID] = role
	return nil
}

func (d *MemoryRoleDirectory) Role(ctx context.Context, memberID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roles[memberID], nil
}

func (d *MemoryRoleDirectory) ClearRole(ctx context.Context, memberID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.roles, memberID)
	return nil
}
