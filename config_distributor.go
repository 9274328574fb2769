package eventguard

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sbnctech/murmurant-eventguard/logger"
)

// ============================================================================
// CONFIG DISTRIBUTION
// ============================================================================

// ConfigSubscriber receives freshly signed capability configs. Embedders
// typically rebuild their resolver from the config in OnConfig and
// invalidate any CachedResolver in front of it.
type ConfigSubscriber interface {
	OnConfig(ctx context.Context, pub ed25519.PublicKey, signed *SignedConfig) error
}

type ConfigSubscriberFunc func(ctx context.Context, pub ed25519.PublicKey, signed *SignedConfig) error

func (f ConfigSubscriberFunc) OnConfig(ctx context.Context, pub ed25519.PublicKey, signed *SignedConfig) error {
	return f(ctx, pub, signed)
}

// ConfigDistributor publishes the current role→capability grants as a
// signed config whenever NotifyChange fires, so running processes can
// reload the role model without trusting the transport in between. The
// signing key rotates on a ticker; subscribers always receive the public
// key alongside the config.
type ConfigDistributor struct {
	store            CapabilityStore
	pub              ed25519.PublicKey
	priv             ed25519.PrivateKey
	rotationInterval time.Duration
	notifyCh         chan struct{}
	stopCh           chan struct{}
	subscribers      []ConfigSubscriber
	log              logger.Logger
	version          uint16
	mu               sync.RWMutex
	started          bool
	wg               sync.WaitGroup
}

type ConfigDistributorOption func(*ConfigDistributor)

func WithConfigSigningKey(priv ed25519.PrivateKey) ConfigDistributorOption {
	return func(d *ConfigDistributor) {
		if priv != nil && len(priv) == ed25519.PrivateKeySize {
			d.priv = append(ed25519.PrivateKey{}, priv...)
			d.pub = priv.Public().(ed25519.PublicKey)
		}
	}
}

func WithConfigRotationInterval(interval time.Duration) ConfigDistributorOption {
	return func(d *ConfigDistributor) {
		if interval > 0 {
			d.rotationInterval = interval
		}
	}
}

func WithConfigLogger(l logger.Logger) ConfigDistributorOption {
	return func(d *ConfigDistributor) {
		if l != nil {
			d.log = l
		}
	}
}

// WithConfigVersion sets the version stamped on published configs.
func WithConfigVersion(v uint16) ConfigDistributorOption {
	return func(d *ConfigDistributor) {
		if v > 0 {
			d.version = v
		}
	}
}

func NewConfigDistributor(store CapabilityStore, opts ...ConfigDistributorOption) (*ConfigDistributor, error) {
	if store == nil {
		return nil, fmt.Errorf("eventguard: capability store is required")
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("eventguard: generate signing key: %w", err)
	}
	dist := &ConfigDistributor{
		store:            store,
		priv:             priv,
		pub:              pub,
		rotationInterval: 24 * time.Hour,
		notifyCh:         make(chan struct{}, 1),
		stopCh:           make(chan struct{}),
		log:              logger.NewNullLogger(),
		version:          1,
	}
	for _, opt := range opts {
		opt(dist)
	}
	return dist, nil
}

func (d *ConfigDistributor) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.rotationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case <-d.notifyCh:
				if err := d.distribute(ctx); err != nil {
					d.log.Error("config distribution failed", "error", err.Error())
				}
			case <-ticker.C:
				if err := d.RotateSigningKey(); err != nil {
					d.log.Error("signing key rotation failed", "error", err.Error())
				}
			}
		}
	}()
}

func (d *ConfigDistributor) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopCh)
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// NotifyChange schedules a distribution. Safe from any goroutine; bursts
// collapse into one pending distribution.
func (d *ConfigDistributor) NotifyChange() {
	select {
	case d.notifyCh <- struct{}{}:
	default:
	}
}

func (d *ConfigDistributor) Subscribe(sub ConfigSubscriber) {
	if sub == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, sub)
}

func (d *ConfigDistributor) RotateSigningKey() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.priv = priv
	d.pub = pub
	d.mu.Unlock()
	return nil
}

func (d *ConfigDistributor) CurrentPublicKey() ed25519.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(ed25519.PublicKey(nil), d.pub...)
}

// Snapshot assembles the store's current grants into a Config, roles
// sorted so identical grants always sign identically.
func (d *ConfigDistributor) Snapshot(ctx context.Context) (*Config, error) {
	roles, err := d.store.Roles(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(roles)
	cfg := &Config{Version: d.version, Roles: make([]RoleGrant, 0, len(roles))}
	for _, role := range roles {
		caps, err := d.store.Capabilities(ctx, role)
		if err != nil {
			return nil, err
		}
		cfg.Roles = append(cfg.Roles, RoleGrant{Role: role, Capabilities: caps.List()})
	}
	return cfg, nil
}

func (d *ConfigDistributor) distribute(ctx context.Context) error {
	cfg, err := d.Snapshot(ctx)
	if err != nil {
		return err
	}
	d.mu.RLock()
	priv := d.priv
	d.mu.RUnlock()
	signed, err := NewSignedConfig(priv, cfg)
	if err != nil {
		return err
	}
	for _, sub := range d.collectSubscribers() {
		if err := sub.OnConfig(ctx, d.CurrentPublicKey(), signed); err != nil {
			d.log.Error("config subscriber failed", "error", err.Error())
		}
	}
	return nil
}

func (d *ConfigDistributor) collectSubscribers() []ConfigSubscriber {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]ConfigSubscriber(nil), d.subscribers...)
}
