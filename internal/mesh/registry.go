package mesh

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgateway/agentgateway/internal/meshmetrics"
	"github.com/agentgateway/agentgateway/internal/store"
)

const (
	// staleThreshold is how long a node may go without a heartbeat before
	// the reaper considers it a zombie. Exactly this age is not stale —
	// only strictly greater ages are.
	staleThreshold = 90 * time.Second

	// reaperPeriod is how often the reaper scans for stale nodes.
	reaperPeriod = 30 * time.Second
)

// node is the registry's internal record for a service. Unexported: all
// access goes through Registry, which holds the single lock guarding the
// node table (see Registry.mu).
type node struct {
	metadata Heartbeat
	lastSeen time.Time
	token    string

	// registrationID correlates a node's log and journal lines across its
	// lifetime, including across token-preserving refreshes. Internal only
	// — never put on the wire.
	registrationID uuid.UUID
}

// Config holds Registry's dependencies.
type Config struct {
	Store       store.Handler
	JournalPath string
	Logger      *zap.Logger

	// Now returns the current time. Defaults to time.Now. Tests override
	// this to exercise the 90s staleness boundary deterministically.
	Now func() time.Time
}

// Registry is the concurrent map of service_name -> node, the token
// issuer/verifier, the config-store projector, and the event publisher.
// The zero value is not usable — create instances with New.
//
// Registry is safe for concurrent use by multiple goroutines: HTTP
// handlers, the reaper, and the config store interact with it from
// separate goroutines.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*node

	store   store.Handler
	journal *RecoveryJournal
	events  *EventBus
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an empty Registry. Construction is side-effect-free: no
// background goroutine is started here. Call StartReaper once the binary
// has a gocron.Scheduler to hand it — keeping construction and scheduling
// separate keeps Registry trivially constructible in unit tests that
// exercise Register/GetNodes/ValidateToken/Subscribe without a live reaper.
func New(cfg Config) *Registry {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		nodes:   make(map[string]*node),
		store:   cfg.Store,
		journal: NewRecoveryJournal(cfg.JournalPath, logger),
		events:  NewEventBus(),
		logger:  logger.Named("mesh_registry"),
		now:     now,
	}
}

// Register processes one heartbeat, authenticating it against the stored
// token for its service_name (if any), and returns the token the caller
// should use for subsequent heartbeats and log submissions.
func (r *Registry) Register(hb Heartbeat, providedToken string, tokenProvided bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.nodes[hb.ServiceName]

	var (
		chosenToken string
		blessed     bool
		regID       uuid.UUID
	)

	switch {
	case exists && !tokenProvided:
		r.logger.Warn("mesh registration rejected: token required for existing service",
			zap.String("service", hb.ServiceName))
		return "", ErrTokenRequired

	case exists && providedToken != existing.token:
		r.logger.Warn("mesh registration rejected: invalid token",
			zap.String("service", hb.ServiceName))
		return "", ErrInvalidToken

	case exists:
		// Token matches: still blessed, token reused unchanged.
		blessed = true
		chosenToken = existing.token
		regID = existing.registrationID

	case tokenProvided:
		// First-time registration with a caller-supplied token: accepted
		// verbatim so a leaf that persisted its last token can rejoin
		// without churn after a gateway restart or a reap.
		blessed = false
		chosenToken = providedToken
		regID = uuid.New()

	default:
		minted, err := generateToken()
		if err != nil {
			return "", fmt.Errorf("mesh: failed to mint token: %w", err)
		}
		blessed = false
		chosenToken = minted
		regID = uuid.New()
	}

	finalMeta := hb
	finalMeta.IsBlessed = blessed

	r.nodes[hb.ServiceName] = &node{
		metadata:       finalMeta,
		lastSeen:       r.now(),
		token:          chosenToken,
		registrationID: regID,
	}

	// Projection, journal append, and event publish all happen while still
	// holding the write lock. None of these do real network I/O — the
	// config store and journal are local calls — so the cost of holding the
	// lock across them is cheap. What it buys: two concurrent Register
	// calls for the same service_name can never have their journal entries
	// or published events land out of the order their write-lock
	// acquisitions were granted in. Releasing the lock first and doing
	// these as unsynchronized tail work would let the second-acquired call
	// finish its journal append or event publish before the first, visibly
	// reordering history for subscribers watching one service_name.
	if err := projectToStore(r.store, hb); err != nil {
		meshmetrics.ProjectionFailuresTotal.Inc()
		r.logger.Warn("failed to project mesh node into config store",
			zap.String("service", hb.ServiceName),
			zap.String("registration_id", regID.String()),
			zap.Error(err))
		// The in-memory entry is not rolled back: the next heartbeat will
		// re-project, and a live node should never become invisible just
		// because one config-store write failed.
		return "", fmt.Errorf("%w: %v", ErrProjectionFailed, err)
	}

	r.journal.Log(hb.ServiceName, "register", hb)
	r.events.Publish(NewNodeUpdated(finalMeta))

	meshmetrics.RegistrationsTotal.Inc()
	meshmetrics.Nodes.Set(float64(len(r.nodes)))

	r.logger.Info("mesh node registered",
		zap.String("service", hb.ServiceName),
		zap.String("registration_id", regID.String()),
		zap.Bool("blessed", blessed),
		zap.String("transport", string(hb.Transport)),
		zap.Uint16("port", hb.Port),
	)

	return chosenToken, nil
}

// nodeCount returns the current size of the node table.
func (r *Registry) nodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// GetNodes returns a point-in-time, value-copied list of all heartbeats.
// Order is unspecified.
func (r *Registry) GetNodes() []Heartbeat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Heartbeat, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n.metadata)
	}
	return out
}

// ValidateToken reports whether token is the current token for
// serviceName. A plain equality check suffices — mesh tokens are
// confidentiality-equivalent, not cryptographic secrets requiring
// constant-time comparison.
func (r *Registry) ValidateToken(serviceName, token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[serviceName]
	if !ok {
		return false
	}
	return n.token == token
}

// Subscribe returns a fresh event receiver that sees only future events.
func (r *Registry) Subscribe() *Subscription {
	return r.events.Subscribe()
}

// ReapOnce scans for nodes whose last heartbeat is older than
// staleThreshold and evicts them: removed from the node table, retracted
// from the config store, journaled with reason "timeout", and announced
// as a NodeRemoved event.
//
// Scanning happens under a read lock; only nodes actually found stale are
// then removed under a write lock, re-checking staleness at that point —
// a heartbeat that refreshed last_seen between the two phases must not be
// shadowed by an eviction decided on stale information.
func (r *Registry) ReapOnce() {
	start := r.now()
	defer func() {
		meshmetrics.ReaperDurationSeconds.Observe(r.now().Sub(start).Seconds())
	}()

	now := r.now()

	r.mu.RLock()
	var candidates []string
	for name, n := range r.nodes {
		if now.Sub(n.lastSeen) > staleThreshold {
			candidates = append(candidates, name)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return
	}

	r.mu.Lock()
	var removed []string
	for _, name := range candidates {
		n, ok := r.nodes[name]
		if !ok {
			continue // already removed concurrently
		}
		if now.Sub(n.lastSeen) <= staleThreshold {
			continue // refreshed between scan and mutation
		}
		delete(r.nodes, name)
		removed = append(removed, name)
	}
	r.mu.Unlock()

	for _, name := range removed {
		if err := evictFromStore(r.store, name); err != nil {
			r.logger.Warn("failed to retract mesh node from config store",
				zap.String("service", name),
				zap.Error(err))
		}

		r.journal.Log(name, "evict", map[string]string{"reason": "timeout"})
		r.events.Publish(NewNodeRemoved(name))
		meshmetrics.EvictionsTotal.Inc()

		r.logger.Warn("mesh node heartbeat timed out, evicted zombie",
			zap.String("service", name))
	}

	meshmetrics.Nodes.Set(float64(r.nodeCount()))
}

// StartReaper registers ReapOnce as a recurring gocron job, run every
// reaperPeriod in singleton mode: a slow scan is skipped rather than
// overlapped with the next tick.
func (r *Registry) StartReaper(sched gocron.Scheduler) error {
	_, err := sched.NewJob(
		gocron.DurationJob(reaperPeriod),
		gocron.NewTask(r.ReapOnce),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("mesh: failed to schedule reaper: %w", err)
	}
	return nil
}
