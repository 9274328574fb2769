package eventguard

import (
	"context"
	"fmt"
	"time"

	"github.com/sbnctech/murmurant-eventguard/logger"
	"github.com/sbnctech/murmurant-eventguard/metrics"
)

// ============================================================================
// GUARD LAYER
// ============================================================================

// GuardResult is the normalized outcome of one guard call. On a denial the
// zero OK plus Error and Code mirror the decision so callers can map it
// straight onto their error taxonomy.
type GuardResult struct {
	OK       bool       `json:"ok"`
	Decision Decision   `json:"decision"`
	Error    string     `json:"error,omitempty"`
	Code     DenialCode `json:"code,omitempty"`
}

// BulkDenial is one refused item of a bulk operation.
type BulkDenial struct {
	Event  EventSnapshot `json:"event"`
	Reason string        `json:"reason"`
	Code   DenialCode    `json:"code,omitempty"`
}

// BulkResult partitions a bulk operation. Partial success is the expected
// outcome, not an error.
type BulkResult struct {
	Allowed []EventSnapshot `json:"allowed"`
	Denied  []BulkDenial    `json:"denied"`
}

func allowResult(d Decision) GuardResult {
	return GuardResult{OK: true, Decision: d}
}

func denyResult(d Decision) GuardResult {
	return GuardResult{OK: false, Decision: d, Error: d.Reason, Code: d.Code}
}

// failClosed is returned when the audit sink is unavailable. The embedded
// decision reads as denied so even callers that ignore the error cannot
// act on an unaudited allow.
func failClosed() GuardResult {
	return GuardResult{
		OK:       false,
		Decision: Decision{Allowed: false, Reason: "audit trail unavailable"},
		Error:    "audit trail unavailable",
	}
}

// Guard wraps the policy functions with the mandatory audit write. Every
// invocation evaluates policy, writes exactly one audit entry, and only
// then returns. A sink failure fails the action (fail closed); the error
// return is reserved for that case, a policy denial is a normal result.
type Guard struct {
	sink        AuditSink
	log         logger.Logger
	now         func() time.Time
	metrics     *metrics.Metrics
	detector    *Detector
	traceIDFunc logger.TraceIDFunc
}

// GuardOption configures a Guard at construction.
type GuardOption func(*Guard) error

// WithLogger installs a structured logger; decisions log at debug (allow)
// and info (deny).
func WithLogger(l logger.Logger) GuardOption {
	return func(g *Guard) error {
		if l == nil {
			return fmt.Errorf("eventguard: nil logger")
		}
		g.log = l
		return nil
	}
}

// WithClock overrides the time source used for registration windows and
// audit timestamps. Tests use it to pin the clock.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) error {
		if now == nil {
			return fmt.Errorf("eventguard: nil clock")
		}
		g.now = now
		return nil
	}
}

// WithMetrics installs decision/escalation/audit-failure counters.
func WithMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) error {
		g.metrics = m
		return nil
	}
}

// WithDetector installs an escalation detector run on every denial.
func WithDetector(d *Detector) GuardOption {
	return func(g *Guard) error {
		g.detector = d
		return nil
	}
}

// WithTraceIDFunc installs a request-ID generator used when the caller
// supplies none.
func WithTraceIDFunc(f logger.TraceIDFunc) GuardOption {
	return func(g *Guard) error {
		g.traceIDFunc = f
		return nil
	}
}

// NewGuard builds a Guard writing to sink. The sink is mandatory: this
// layer exists to guarantee the audit trail, so there is no unaudited mode.
func NewGuard(sink AuditSink, opts ...GuardOption) (*Guard, error) {
	if sink == nil {
		return nil, fmt.Errorf("eventguard: audit sink is required")
	}
	g := &Guard{
		sink: sink,
		log:  logger.NewNullLogger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ============================================================================
// CALL OPTIONS
// ============================================================================

// CallOption adjusts a single guard call.
type CallOption func(*callConfig)

type callConfig struct {
	metadata  map[string]any
	requestID string
	target    Status
	skipAudit bool
}

// WithMetadata attaches caller metadata to the audit entry.
func WithMetadata(m map[string]any) CallOption {
	return func(c *callConfig) { c.metadata = m }
}

// WithRequestID stamps the audit entry with a correlation ID.
func WithRequestID(id string) CallOption {
	return func(c *callConfig) { c.requestID = id }
}

// WithTarget supplies the transition target to AdminOverride when the
// overridden action is edit_status. Other guards ignore it.
func WithTarget(target Status) CallOption {
	return func(c *callConfig) { c.target = target }
}

// WithoutAudit suppresses the audit entry. Honored only by the read
// guards; mutating guards always audit.
func WithoutAudit() CallOption {
	return func(c *callConfig) { c.skipAudit = true }
}

func (g *Guard) applyCallOpts(opts []CallOption) callConfig {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.requestID == "" && g.traceIDFunc != nil {
		cfg.requestID = g.traceIDFunc()
	}
	return cfg
}

// auditMetadata builds a fresh map per entry so bulk items never share one.
func (c callConfig) auditMetadata() map[string]any {
	if len(c.metadata) == 0 && c.requestID == "" {
		return nil
	}
	m := make(map[string]any, len(c.metadata)+1)
	for k, v := range c.metadata {
		m[k] = v
	}
	if c.requestID != "" {
		m[MetaRequestID] = c.requestID
	}
	return m
}

// ============================================================================
// GUARDS
// ============================================================================

// View guards list/summary reads of one event.
func (g *Guard) View(ctx context.Context, actor Actor, ev EventSnapshot, opts ...CallOption) (GuardResult, error) {
	cfg := g.applyCallOpts(opts)
	return g.finish(ctx, g.now(), actor, ev, ActionView, CanViewEvent(actor, ev), cfg, "", "")
}

// ViewDetails guards the expanded detail read.
func (g *Guard) ViewDetails(ctx context.Context, actor Actor, ev EventSnapshot, opts ...CallOption) (GuardResult, error) {
	cfg := g.applyCallOpts(opts)
	return g.finish(ctx, g.now(), actor, ev, ActionViewDetails, CanViewEventDetails(actor, ev), cfg, "", "")
}

// EditContent guards non-status field edits.
func (g *Guard) EditContent(ctx context.Context, actor Actor, ev EventSnapshot, opts ...CallOption) (GuardResult, error) {
	cfg := g.applyCallOpts(opts)
	return g.finish(ctx, g.now(), actor, ev, ActionEditContent, CanEditEventContent(actor, ev), cfg, "", "")
}

// EditStatus guards one lifecycle transition. The audit entry records the
// current and target status as before/after.
func (g *Guard) EditStatus(ctx context.Context, actor Actor, ev EventSnapshot, target Status, opts ...CallOption) (GuardResult, error) {
	cfg := g.applyCallOpts(opts)
	d := CanEditEventStatus(actor, ev, target)
	return g.finish(ctx, g.now(), actor, ev, ActionEditStatus, d, cfg, string(ev.Status), string(target))
}

// Delete guards hard deletion.
func (g *Guard) Delete(ctx context.Context, actor Actor, ev EventSnapshot, opts ...CallOption) (GuardResult, error) {
	cfg := g.applyCallOpts(opts)
	return g.finish(ctx, g.now(), actor, ev, ActionDelete, CanDeleteEvent(actor, ev), cfg, "", "")
}

// Register guards member registration.
func (g *Guard) Register(ctx context.Context, actor Actor, ev EventSnapshot, opts ...CallOption) (GuardResult, error) {
	cfg := g.applyCallOpts(opts)
	now := g.now()
	return g.finish(ctx, now, actor, ev, ActionRegister, CanRegisterForEvent(actor, ev, now), cfg, "", "")
}

// CancelRegistration guards withdrawal of the actor's own registration.
func (g *Guard) CancelRegistration(ctx context.Context, actor Actor, ev EventSnapshot, opts ...CallOption) (GuardResult, error) {
	cfg := g.applyCallOpts(opts)
	now := g.now()
	return g.finish(ctx, now, actor, ev, ActionCancelRegistration, CanCancelRegistration(actor, ev, now), cfg, "", "")
}

// BulkEditStatus evaluates each snapshot independently against one target
// and partitions the input. Every item is audited (bulkOperation marker);
// an audit failure fails that item closed but never skips auditing the
// rest. The first sink error is returned after the sweep so callers still
// observe the outage alongside the partition.
func (g *Guard) BulkEditStatus(ctx context.Context, actor Actor, events []EventSnapshot, target Status, opts ...CallOption) (BulkResult, error) {
	cfg := g.applyCallOpts(opts)
	var res BulkResult
	var firstErr error
	for _, ev := range events {
		d := CanEditEventStatus(actor, ev, target)
		meta := cfg.auditMetadata()
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta[MetaBulkOperation] = true
		entry := newAuditEntry(g.now(), actor, ev, ActionEditStatus, d, meta)
		entry.Before, entry.After = string(ev.Status), string(target)
		if err := g.sink.Record(ctx, entry); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("eventguard: audit write failed: %w", err)
			}
			g.auditFailure(actor, ev, ActionEditStatus, err)
			res.Denied = append(res.Denied, BulkDenial{Event: ev, Reason: "audit trail unavailable"})
			continue
		}
		g.observe(actor, ev, ActionEditStatus, d, cfg.requestID)
		if d.Allowed {
			res.Allowed = append(res.Allowed, ev)
			continue
		}
		res.Denied = append(res.Denied, BulkDenial{Event: ev, Reason: d.Reason, Code: d.Code})
		if g.detector != nil {
			g.detector.Observe(ctx, actor, ev, ActionEditStatus, d)
		}
	}
	return res, firstErr
}

// AdminOverride is the break-glass path. It requires the full
// administrative capability and a justification; the override is always
// audited, with outcome APPROVED when executed and ATTEMPTED when refused,
// because the justification itself is the audit-worthy fact. The entry
// notes whether normal policy would have denied the action.
func (g *Guard) AdminOverride(ctx context.Context, actor Actor, ev EventSnapshot, action Action, justification string, opts ...CallOption) (GuardResult, error) {
	cfg := g.applyCallOpts(opts)
	now := g.now()

	refuse := func(d Decision) (GuardResult, error) {
		meta := cfg.auditMetadata()
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta[MetaJustification] = justification
		entry := newAuditEntry(now, actor, ev, action, d, meta)
		entry.Outcome = OutcomeAttempted
		if action == ActionEditStatus {
			entry.Before, entry.After = string(ev.Status), string(cfg.target)
		}
		if err := g.sink.Record(ctx, entry); err != nil {
			g.auditFailure(actor, ev, action, err)
			return failClosed(), fmt.Errorf("eventguard: audit write failed: %w", err)
		}
		g.log.Warn("administrative override refused",
			"action", string(action), "eventId", ev.ID,
			"memberId", actor.MemberID, "role", actor.Role, "reason", d.Reason)
		if g.metrics != nil {
			g.metrics.Decision(string(action), string(OutcomeAttempted))
		}
		if g.detector != nil {
			g.detector.Observe(ctx, actor, ev, action, d)
		}
		return denyResult(d), nil
	}

	if !actor.Can(CapabilityFullAdmin) {
		return refuse(deny(InvariantFullAdmin, CodeForbidden, "full administrative capability required"))
	}
	if justification == "" {
		return refuse(deny("", CodeForbidden, "override justification is required"))
	}
	if action == ActionEditStatus && cfg.target == StatusCompleted {
		return refuse(deny("", CodeInvalidState,
			"COMPLETED is derived from the event schedule and cannot be set directly"))
	}

	wouldBe := Evaluate(actor, ev, action, cfg.target, now)
	d := allow(InvariantFullAdmin, "administrative override: "+justification)
	meta := cfg.auditMetadata()
	if meta == nil {
		meta = make(map[string]any, 2)
	}
	meta[MetaJustification] = justification
	meta[MetaPolicyWouldDeny] = !wouldBe.Allowed
	entry := newAuditEntry(now, actor, ev, action, d, meta)
	entry.Outcome = OutcomeApproved
	if action == ActionEditStatus {
		entry.Before, entry.After = string(ev.Status), string(cfg.target)
	}
	if err := g.sink.Record(ctx, entry); err != nil {
		g.auditFailure(actor, ev, action, err)
		return failClosed(), fmt.Errorf("eventguard: audit write failed: %w", err)
	}
	g.log.Warn("administrative override executed",
		"action", string(action), "eventId", ev.ID,
		"memberId", actor.MemberID, "role", actor.Role,
		"policyWouldDeny", !wouldBe.Allowed)
	if g.metrics != nil {
		g.metrics.Decision(string(action), string(OutcomeApproved))
	}
	return allowResult(d), nil
}

// finish is the single exit path for the per-action guards: audit first,
// then classify, then return.
func (g *Guard) finish(ctx context.Context, now time.Time, actor Actor, ev EventSnapshot, action Action, d Decision, cfg callConfig, before, after string) (GuardResult, error) {
	if !cfg.skipAudit || action.Mutating() {
		entry := newAuditEntry(now, actor, ev, action, d, cfg.auditMetadata())
		entry.Before, entry.After = before, after
		if err := g.sink.Record(ctx, entry); err != nil {
			g.auditFailure(actor, ev, action, err)
			return failClosed(), fmt.Errorf("eventguard: audit write failed: %w", err)
		}
	}
	g.observe(actor, ev, action, d, cfg.requestID)
	if d.Allowed {
		return allowResult(d), nil
	}
	if g.detector != nil {
		g.detector.Observe(ctx, actor, ev, action, d)
	}
	return denyResult(d), nil
}

func (g *Guard) observe(actor Actor, ev EventSnapshot, action Action, d Decision, requestID string) {
	keyvals := []any{
		"action", string(action),
		"eventId", ev.ID,
		"status", string(ev.Status),
		"memberId", actor.MemberID,
		"role", actor.Role,
		"allowed", d.Allowed,
		"reason", d.Reason,
	}
	if d.Invariant != "" {
		keyvals = append(keyvals, "invariant", string(d.Invariant))
	}
	if requestID != "" {
		keyvals = append(keyvals, "requestId", requestID)
	}
	if d.Allowed {
		g.log.Debug("event action allowed", keyvals...)
	} else {
		g.log.Info("event action denied", keyvals...)
	}
	if g.metrics != nil {
		outcome := OutcomeDenied
		if d.Allowed {
			outcome = OutcomeAllowed
		}
		g.metrics.Decision(string(action), string(outcome))
	}
}

func (g *Guard) auditFailure(actor Actor, ev EventSnapshot, action Action, err error) {
	g.log.Error("audit write failed, action blocked",
		"action", string(action), "eventId", ev.ID,
		"memberId", actor.MemberID, "role", actor.Role, "error", err.Error())
	if g.metrics != nil {
		g.metrics.AuditFailure()
	}
}
