package subscription

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PlanStoreRegistry owns one PlanStore per organization.
// Stores are created on first access and share the registry-wide observers.
// Storage is never read while mu is held.
type PlanStoreRegistry struct {
	storage     subscription.PlanStorage
	logger      *zap.Logger
	loadTimeout time.Duration
	loads       singleflight.Group

	mu        sync.Mutex
	stores    map[uuid.UUID]*PlanStore
	observers []PlanObserver
}

// RegistryOption configures a PlanStoreRegistry
type RegistryOption func(*PlanStoreRegistry)

// WithLoadTimeout bounds the storage read performed when a store is first loaded.
// A slow backend then falls back to the default plan instead of stalling the request.
func WithLoadTimeout(d time.Duration) RegistryOption {
	return func(r *PlanStoreRegistry) {
		r.loadTimeout = d
	}
}

// NewPlanStoreRegistry creates a registry backed by storage
func NewPlanStoreRegistry(storage subscription.PlanStorage, logger *zap.Logger, opts ...RegistryOption) *PlanStoreRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &PlanStoreRegistry{
		storage: storage,
		logger:  logger,
		stores:  make(map[uuid.UUID]*PlanStore),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe attaches observer to every current and future store
func (r *PlanStoreRegistry) Observe(observer PlanObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, observer)
	for _, s := range r.stores {
		s.addObserver(observer)
	}
}

// Store returns the store for orgID, loading it from storage on first use.
// Concurrent first accesses for one organization share a single load.
func (r *PlanStoreRegistry) Store(ctx context.Context, orgID uuid.UUID) (*PlanStore, error) {
	if orgID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("organization id is required")
	}

	r.mu.Lock()
	s, ok := r.stores[orgID]
	r.mu.Unlock()

	if ok {
		if s.reloadPending.Load() {
			loadCtx, cancel := r.loadContext(ctx)
			s.refresh(loadCtx)
			cancel()
		}
		return s, nil
	}

	v, _, _ := r.loads.Do(orgID.String(), func() (any, error) {
		return r.load(ctx, orgID), nil
	})
	return v.(*PlanStore), nil
}

func (r *PlanStoreRegistry) load(ctx context.Context, orgID uuid.UUID) *PlanStore {
	r.mu.Lock()
	if s, ok := r.stores[orgID]; ok {
		r.mu.Unlock()
		return s
	}
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	opts := []PlanStoreOption{WithPlanStoreLogger(r.logger)}
	for _, o := range observers {
		opts = append(opts, WithObserver(o))
	}
	loadCtx, cancel := r.loadContext(ctx)
	s := NewPlanStore(loadCtx, orgID, r.storage, opts...)
	cancel()

	r.mu.Lock()
	// observers only grow, so anything past the snapshot arrived during the load
	for _, o := range r.observers[len(observers):] {
		s.addObserver(o)
	}
	r.stores[orgID] = s
	r.mu.Unlock()

	r.logger.Debug("Plan store loaded",
		zap.String("organization_id", orgID.String()),
		zap.String("plan", string(s.Current())))
	return s
}

// loadContext bounds a storage read by the load timeout. With a timeout set the
// read is also detached from the caller's cancellation, since its result is shared.
func (r *PlanStoreRegistry) loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.loadTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
}

// CurrentPlan is a shortcut for Store(ctx, orgID).Current()
func (r *PlanStoreRegistry) CurrentPlan(ctx context.Context, orgID uuid.UUID) (subscription.Plan, error) {
	s, err := r.Store(ctx, orgID)
	if err != nil {
		return "", err
	}
	return s.Current(), nil
}

// Evict marks the store of orgID stale so the next access reloads it from storage.
// The store stays registered, so holders of it observe the reloaded plan.
func (r *PlanStoreRegistry) Evict(orgID uuid.UUID) {
	r.mu.Lock()
	s, ok := r.stores[orgID]
	r.mu.Unlock()
	if ok {
		s.markForReload()
	}
}

// Len returns the number of loaded stores
func (r *PlanStoreRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close drops every store. Plans already persisted survive.
func (r *PlanStoreRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[uuid.UUID]*PlanStore)
}
