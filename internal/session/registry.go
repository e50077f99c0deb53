package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/cartstore"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid session id")

const maxSessionIDLength = 128

// Registry maps session ids to their cart engines. Engines are restored
// from the cart slot on first write and dropped by Sweep once idle; reads
// of a session without an engine go straight to the slot.
type Registry struct {
	catalog cart.ProductLookup
	slots   cartstore.Store
	idleTTL time.Duration

	mu      sync.Mutex
	engines map[string]*entry
}

type entry struct {
	engine   *cart.Engine
	lastUsed time.Time
}

func NewRegistry(catalog cart.ProductLookup, slots cartstore.Store, idleTTL time.Duration) *Registry {
	return &Registry{
		catalog: catalog,
		slots:   slots,
		idleTTL: idleTTL,
		engines: make(map[string]*entry),
	}
}

// Engine returns the session's engine, restoring it if needed.
func (r *Registry) Engine(ctx context.Context, sessionID string) (*cart.Engine, error) {
	if !ValidID(sessionID) {
		return nil, ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[sessionID]; ok {
		e.lastUsed = time.Now()
		return e.engine, nil
	}
	e := &entry{
		engine:   cart.NewEngine(ctx, r.catalog, r.slots, sessionID),
		lastUsed: time.Now(),
	}
	r.engines[sessionID] = e
	metrics.ActiveSessions.Set(float64(len(r.engines)))
	return e.engine, nil
}

// Cart returns the session's cart without creating an engine.
func (r *Registry) Cart(ctx context.Context, sessionID string) (domain.Cart, error) {
	if !ValidID(sessionID) {
		return domain.Cart{}, ErrInvalidSession
	}

	r.mu.Lock()
	e, ok := r.engines[sessionID]
	if ok {
		e.lastUsed = time.Now()
	}
	r.mu.Unlock()

	if ok {
		return e.engine.Snapshot(), nil
	}
	return r.slots.Load(ctx, sessionID), nil
}

// Sweep drops engines idle for longer than the idle TTL. Engines in the
// middle of a checkout are kept. It returns the number dropped.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.engines {
		if now.Sub(e.lastUsed) < r.idleTTL {
			continue
		}
		if !e.engine.TryLockCheckout() {
			continue
		}
		e.engine.UnlockCheckout()
		delete(r.engines, id)
		evicted++
	}
	metrics.ActiveSessions.Set(float64(len(r.engines)))
	return evicted
}

// Run sweeps idle engines every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().Dur("interval", interval).Dur("idle_ttl", r.idleTTL).Msg("session sweep started")

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("session sweep stopped")
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				logger.Ctx(ctx).Debug().Int("evicted", n).Int("active", r.Len()).Msg("idle sessions evicted")
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// NewID issues a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID accepts non-blank ids of bounded length without separators.
func ValidID(id string) bool {
	if strings.TrimSpace(id) == "" || len(id) > maxSessionIDLength {
		return false
	}
	return !strings.ContainsAny(id, " \t\r\n:;,")
}
