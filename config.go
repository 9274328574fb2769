package eventguard

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

// Config is a deployable role→capability mapping plus engine tuning. Roles
// are plain configuration data: the policy layer only ever sees the
// capabilities resolved from them.
type Config struct {
	Version uint16       `json:"version" yaml:"version"`
	Roles   []RoleGrant  `json:"roles" yaml:"roles"`
	Engine  EngineConfig `json:"engine,omitempty" yaml:"engine,omitempty"`
}

// RoleGrant assigns a capability list to one role name. An empty list is
// legal and documents a role that relies on ownership checks alone.
type RoleGrant struct {
	Role         string       `json:"role" yaml:"role"`
	Capabilities []Capability `json:"capabilities" yaml:"capabilities"`
}

// EngineConfig tunes the capability resolver cache.
type EngineConfig struct {
	CapabilityCacheTTL         int64 `json:"capability_cache_ttl_ms" yaml:"capability_cache_ttl_ms"`
	CapabilityCacheNumCounters int64 `json:"capability_cache_num_counters" yaml:"capability_cache_num_counters"`
	CapabilityCacheMaxCost     int64 `json:"capability_cache_max_cost" yaml:"capability_cache_max_cost"`
	CapabilityCacheBufferItems int64 `json:"capability_cache_buffer_items" yaml:"capability_cache_buffer_items"`
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.CapabilityCacheTTL <= 0 {
		c.CapabilityCacheTTL = 30_000
	}
	if c.CapabilityCacheNumCounters <= 0 {
		c.CapabilityCacheNumCounters = 10_000
	}
	if c.CapabilityCacheMaxCost <= 0 {
		c.CapabilityCacheMaxCost = 1 << 20
	}
	if c.CapabilityCacheBufferItems <= 0 {
		c.CapabilityCacheBufferItems = 64
	}
	return c
}

// DefaultConfig is the shipped club role model. Only the admin role
// carries deletion authority; chairs and members hold no capabilities and
// act through ownership and registration rules.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Roles: []RoleGrant{
			{Role: "admin", Capabilities: []Capability{
				CapabilityFullAdmin,
				CapabilityViewAllEvents,
				CapabilityEditEvents,
				CapabilityDeleteEvents,
			}},
			{Role: "coordinator", Capabilities: []Capability{
				CapabilityViewAllEvents,
				CapabilityEditEvents,
			}},
			{Role: "chair", Capabilities: []Capability{}},
			{Role: "member", Capabilities: []Capability{}},
		},
	}
}

// ConfigLoader loads configuration from the supported formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate rejects unknown capabilities, duplicate or empty role names,
// and a missing version. Loading is lenient; validation is where a bad
// file stops.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return fmt.Errorf("config: version is required")
	}
	seen := make(map[string]struct{}, len(c.Roles))
	for _, grant := range c.Roles {
		if grant.Role == "" {
			return fmt.Errorf("config: role with empty name")
		}
		if _, dup := seen[grant.Role]; dup {
			return fmt.Errorf("config: duplicate role %q", grant.Role)
		}
		seen[grant.Role] = struct{}{}
		for _, cap := range grant.Capabilities {
			if _, err := ParseCapability(string(cap)); err != nil {
				return fmt.Errorf("config: role %q: %w", grant.Role, err)
			}
		}
	}
	return nil
}

// Resolver builds the immutable resolver for this config. Call Validate
// first; Resolver does not re-check.
func (c *Config) Resolver() *StaticResolver {
	grants := make(map[string][]Capability, len(c.Roles))
	for _, g := range c.Roles {
		grants[g.Role] = g.Capabilities
	}
	return NewStaticResolver(grants)
}

// ApplyConfig seeds a CapabilityStore with the config's grants. Existing
// grants for other roles are left alone; re-applying is idempotent.
func ApplyConfig(ctx context.Context, store CapabilityStore, cfg *Config) error {
	for _, g := range cfg.Roles {
		if err := store.Grant(ctx, g.Role, g.Capabilities...); err != nil {
			return fmt.Errorf("config: grant role %q: %w", g.Role, err)
		}
	}
	return nil
}
