package eventguard

import (
	"context"
	"sort"
	"strings"
	"testing"
)

func TestDefaultConfigValidatesAndResolves(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	r := cfg.Resolver()
	caps, err := r.Resolve(context.Background(), "admin")
	if err != nil {
		t.Fatalf("resolve admin: %v", err)
	}
	if !caps.Has(CapabilityFullAdmin) || !caps.Has(CapabilityDeleteEvents) {
		t.Fatalf("admin capabilities: %v", caps.List())
	}

	caps, _ = r.Resolve(context.Background(), "coordinator")
	if caps.Has(CapabilityFullAdmin) || caps.Has(CapabilityDeleteEvents) {
		t.Fatalf("coordinator must not hold admin or delete authority: %v", caps.List())
	}
	if !caps.Has(CapabilityEditEvents) || !caps.Has(CapabilityViewAllEvents) {
		t.Fatalf("coordinator capabilities: %v", caps.List())
	}

	for _, role := range []string{"chair", "member"} {
		caps, _ = r.Resolve(context.Background(), role)
		if len(caps) != 0 {
			t.Fatalf("role %s should hold no capabilities: %v", role, caps.List())
		}
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	data, err := cfg.ToYAML()
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	loaded, err := NewConfigLoader().LoadYAML(data)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if err := loaded.Validate(); err != nil {
		t.Fatalf("round-tripped config invalid: %v", err)
	}
	if loaded.Version != cfg.Version || len(loaded.Roles) != len(cfg.Roles) {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
	for i := range cfg.Roles {
		if loaded.Roles[i].Role != cfg.Roles[i].Role {
			t.Fatalf("role %d: %q != %q", i, loaded.Roles[i].Role, cfg.Roles[i].Role)
		}
		if len(loaded.Roles[i].Capabilities) != len(cfg.Roles[i].Capabilities) {
			t.Fatalf("role %q capability count changed", cfg.Roles[i].Role)
		}
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.CapabilityCacheTTL = 5000
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	loaded, err := NewConfigLoader().LoadJSON(data)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if loaded.Engine.CapabilityCacheTTL != 5000 {
		t.Fatalf("engine tuning lost: %+v", loaded.Engine)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing version", Config{Roles: []RoleGrant{{Role: "member"}}}, "version"},
		{"empty role", Config{Version: 1, Roles: []RoleGrant{{Role: ""}}}, "empty name"},
		{"duplicate role", Config{Version: 1, Roles: []RoleGrant{{Role: "member"}, {Role: "member"}}}, "duplicate"},
		{"unknown capability", Config{Version: 1, Roles: []RoleGrant{
			{Role: "member", Capabilities: []Capability{"fly_events"}},
		}}, "unknown capability"},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestConfigBuilder(t *testing.T) {
	cfg := NewConfigBuilder().
		Version(3).
		AddRole("admin", CapabilityFullAdmin).
		AddRole("greeter").
		EngineSettings(func(e *EngineConfig) { e.CapabilityCacheTTL = 1000 }).
		Build()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("built config invalid: %v", err)
	}
	if cfg.Version != 3 || len(cfg.Roles) != 2 {
		t.Fatalf("built config: %+v", cfg)
	}
	if cfg.Roles[1].Capabilities == nil || len(cfg.Roles[1].Capabilities) != 0 {
		t.Fatalf("capability-less role should carry an empty list, got %#v", cfg.Roles[1].Capabilities)
	}
	if cfg.Engine.CapabilityCacheTTL != 1000 {
		t.Fatalf("engine settings not applied: %+v", cfg.Engine)
	}

	if _, err := NewConfigBuilder().Version(1).AddRole("x").ToYAML(); err != nil {
		t.Fatalf("builder ToYAML: %v", err)
	}
}

func TestEngineConfigDefaults(t *testing.T) {
	d := EngineConfig{}.withDefaults()
	if d.CapabilityCacheTTL != 30_000 || d.CapabilityCacheNumCounters != 10_000 {
		t.Fatalf("defaults: %+v", d)
	}
	if d.CapabilityCacheMaxCost != 1<<20 || d.CapabilityCacheBufferItems != 64 {
		t.Fatalf("defaults: %+v", d)
	}

	tuned := EngineConfig{CapabilityCacheTTL: 5}.withDefaults()
	if tuned.CapabilityCacheTTL != 5 {
		t.Fatalf("explicit TTL overwritten: %+v", tuned)
	}
}

// fakeCapabilityStore is the minimal in-package store for config tests.
type fakeCapabilityStore struct {
	grants map[string]CapabilitySet
}

func newFakeCapabilityStore() *fakeCapabilityStore {
	return &fakeCapabilityStore{grants: make(map[string]CapabilitySet)}
}

func (s *fakeCapabilityStore) Grant(_ context.Context, role string, caps ...Capability) error {
	set, ok := s.grants[role]
	if !ok {
		set = CapabilitySet{}
		s.grants[role] = set
	}
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return nil
}

func (s *fakeCapabilityStore) Revoke(_ context.Context, role string, caps ...Capability) error {
	set := s.grants[role]
	for _, c := range caps {
		delete(set, c)
	}
	return nil
}

func (s *fakeCapabilityStore) Capabilities(_ context.Context, role string) (CapabilitySet, error) {
	if set, ok := s.grants[role]; ok {
		return set.Clone(), nil
	}
	return CapabilitySet{}, nil
}

func (s *fakeCapabilityStore) Roles(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(s.grants))
	for role := range s.grants {
		out = append(out, role)
	}
	sort.Strings(out)
	return out, nil
}

func TestApplyConfigSeedsStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeCapabilityStore()

	if err := ApplyConfig(ctx, store, DefaultConfig()); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	caps, _ := store.Capabilities(ctx, "coordinator")
	if !caps.Has(CapabilityEditEvents) {
		t.Fatalf("coordinator grant missing: %v", caps.List())
	}

	// Re-applying changes nothing.
	if err := ApplyConfig(ctx, store, DefaultConfig()); err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	roles, _ := store.Roles(ctx)
	if len(roles) != 4 {
		t.Fatalf("roles after re-apply: %v", roles)
	}
}

func TestParseHelpers(t *testing.T) {
	if s, err := ParseStatus("published"); err != nil || s != StatusPublished {
		t.Fatalf("ParseStatus: %v %v", s, err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatalf("expected unknown status error")
	}
	if a, err := ParseAction(" Edit_Status "); err != nil || a != ActionEditStatus {
		t.Fatalf("ParseAction: %v %v", a, err)
	}
	if _, err := ParseAction("export"); err == nil {
		t.Fatalf("expected unknown action error")
	}
	if c, err := ParseCapability("FULL_ADMIN"); err != nil || c != CapabilityFullAdmin {
		t.Fatalf("ParseCapability: %v %v", c, err)
	}
	if o, err := ParseOutcome("attempted"); err != nil || o != OutcomeAttempted {
		t.Fatalf("ParseOutcome: %v %v", o, err)
	}
	if _, err := ParseOutcome("maybe"); err == nil {
		t.Fatalf("expected unknown outcome error")
	}
}
