package eventguard

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// ============================================================================
// CAPABILITY RESOLUTION
// ============================================================================

// CapabilityResolver maps a role name to its capability set. The policy
// layer never sees roles; callers resolve capabilities once per request
// and hand the engine a finished Actor.
type CapabilityResolver interface {
	Resolve(ctx context.Context, role string) (CapabilitySet, error)
}

// HasCapability answers the narrow membership question without exposing
// the whole set.
func HasCapability(ctx context.Context, r CapabilityResolver, role string, c Capability) (bool, error) {
	caps, err := r.Resolve(ctx, role)
	if err != nil {
		return false, err
	}
	return caps.Has(c), nil
}

// BuildActor assembles the request identity from the session's member ID
// and role. An unknown role resolves to an empty capability set, never an
// error: least privilege is the default.
func BuildActor(ctx context.Context, r CapabilityResolver, memberID, role string) (Actor, error) {
	caps, err := r.Resolve(ctx, role)
	if err != nil {
		return Actor{}, fmt.Errorf("eventguard: resolve capabilities for role %q: %w", role, err)
	}
	return Actor{MemberID: memberID, Role: role, Capabilities: caps}, nil
}

// CapabilityStore is a mutable source of role grants. stores provides SQL
// and in-memory implementations; ResolverFromStore adapts one into the
// resolver chain.
type CapabilityStore interface {
	Grant(ctx context.Context, role string, caps ...Capability) error
	Revoke(ctx context.Context, role string, caps ...Capability) error
	Capabilities(ctx context.Context, role string) (CapabilitySet, error)
	Roles(ctx context.Context) ([]string, error)
}

// StaticResolver serves an immutable role→capability map, usually built
// from a validated Config.
type StaticResolver struct {
	grants map[string]CapabilitySet
}

func NewStaticResolver(grants map[string][]Capability) *StaticResolver {
	m := make(map[string]CapabilitySet, len(grants))
	for role, caps := range grants {
		m[role] = NewCapabilitySet(caps...)
	}
	return &StaticResolver{grants: m}
}

func (r *StaticResolver) Resolve(_ context.Context, role string) (CapabilitySet, error) {
	if caps, ok := r.grants[role]; ok {
		return caps.Clone(), nil
	}
	return CapabilitySet{}, nil
}

// Roles returns the role names the resolver knows about.
func (r *StaticResolver) Roles() []string {
	out := make([]string, 0, len(r.grants))
	for role := range r.grants {
		out = append(out, role)
	}
	return out
}

// storeResolver adapts a CapabilityStore to the resolver interface.
type storeResolver struct {
	store CapabilityStore
}

// ResolverFromStore exposes a CapabilityStore as a CapabilityResolver.
func ResolverFromStore(store CapabilityStore) CapabilityResolver {
	return storeResolver{store: store}
}

func (r storeResolver) Resolve(ctx context.Context, role string) (CapabilitySet, error) {
	return r.store.Capabilities(ctx, role)
}

// CachedResolver fronts another resolver with a ristretto cache so hot
// roles skip the backing store. Capability grants change rarely; the TTL
// bounds how long a revocation can lag, and Invalidate removes a role
// immediately.
type CachedResolver struct {
	inner CapabilityResolver
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedResolver(inner CapabilityResolver, cfg EngineConfig) (*CachedResolver, error) {
	if inner == nil {
		return nil, fmt.Errorf("eventguard: nil inner resolver")
	}
	cfg = cfg.withDefaults()
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.CapabilityCacheNumCounters,
		MaxCost:     cfg.CapabilityCacheMaxCost,
		BufferItems: cfg.CapabilityCacheBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("eventguard: build capability cache: %w", err)
	}
	return &CachedResolver{
		inner: inner,
		cache: cache,
		ttl:   time.Duration(cfg.CapabilityCacheTTL) * time.Millisecond,
	}, nil
}

func (r *CachedResolver) Resolve(ctx context.Context, role string) (CapabilitySet, error) {
	if v, ok := r.cache.Get(role); ok {
		if caps, ok := v.(CapabilitySet); ok {
			return caps.Clone(), nil
		}
	}
	caps, err := r.inner.Resolve(ctx, role)
	if err != nil {
		return nil, err
	}
	r.cache.SetWithTTL(role, caps.Clone(), int64(len(caps))+1, r.ttl)
	return caps, nil
}

// Invalidate drops one role from the cache, forcing the next Resolve
// through to the backing resolver.
func (r *CachedResolver) Invalidate(role string) {
	r.cache.Del(role)
}

// Wait blocks until pending cache writes are applied. Tests use it to make
// Set visible before asserting.
func (r *CachedResolver) Wait() {
	r.cache.Wait()
}

func (r *CachedResolver) Close() {
	r.cache.Close()
}
