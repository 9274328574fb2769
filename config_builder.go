package eventguard

// ConfigBuilder provides a fluent API for building capability configs
type ConfigBuilder struct {
	cfg *Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: &Config{
			Version: 1,
			Roles:   []RoleGrant{},
		},
	}
}

func (b *ConfigBuilder) Version(v uint16) *ConfigBuilder {
	b.cfg.Version = v
	return b
}

// AddRole appends one role grant. Passing no capabilities records an
// explicit empty grant, which Validate accepts.
func (b *ConfigBuilder) AddRole(role string, caps ...Capability) *ConfigBuilder {
	if caps == nil {
		caps = []Capability{}
	}
	b.cfg.Roles = append(b.cfg.Roles, RoleGrant{Role: role, Capabilities: caps})
	return b
}

func (b *ConfigBuilder) EngineSettings(fn func(*EngineConfig)) *ConfigBuilder {
	fn(&b.cfg.Engine)
	return b
}

func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

func (b *ConfigBuilder) ToYAML() ([]byte, error) {
	return b.cfg.ToYAML()
}

func (b *ConfigBuilder) ToJSON() ([]byte, error) {
	return b.cfg.ToJSON()
}
