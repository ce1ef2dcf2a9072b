package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPlanNotPersisted is a non-fatal warning: the plan is active in memory but
// the write to durable storage failed, so it may revert on the next load.
var ErrPlanNotPersisted = shared.NewDomainError("PLAN_NOT_PERSISTED", "Plan change was applied but not saved")

// IsNotPersisted reports whether err is the unpersisted-plan warning
func IsNotPersisted(err error) bool {
	return errors.Is(err, ErrPlanNotPersisted)
}

// PlanChange describes one completed SetPlan call
type PlanChange struct {
	OrganizationID uuid.UUID
	Previous       subscription.Plan
	Current        subscription.Plan
	Persisted      bool
	ChangedAt      time.Time
}

// PlanObserver is notified synchronously after every SetPlan.
// Observers may call Current but must not call SetPlan on the same store.
type PlanObserver func(ctx context.Context, change PlanChange)

// PlanStore holds the current plan of one organization
type PlanStore struct {
	orgID   uuid.UUID
	storage subscription.PlanStorage
	logger  *zap.Logger
	now     func() time.Time

	// writeMu serializes the persist-update-notify sequence
	writeMu sync.Mutex

	mu      sync.RWMutex
	current subscription.Plan

	// reloadPending is set when storage is known to hold a newer value
	reloadPending atomic.Bool

	obsMu     sync.Mutex
	observers map[uint64]PlanObserver
	nextObsID uint64
}

// PlanStoreOption configures a PlanStore
type PlanStoreOption func(*PlanStore)

// WithPlanStoreLogger sets the logger
func WithPlanStoreLogger(logger *zap.Logger) PlanStoreOption {
	return func(s *PlanStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for change timestamps
func WithClock(now func() time.Time) PlanStoreOption {
	return func(s *PlanStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers an observer before the store is initialized
func WithObserver(observer PlanObserver) PlanStoreOption {
	return func(s *PlanStore) {
		s.addObserver(observer)
	}
}

// NewPlanStore creates the store and loads the persisted plan once.
// An absent or unrecognized stored value adopts the default plan and persists it.
// A storage read failure adopts the default plan without writing.
func NewPlanStore(ctx context.Context, orgID uuid.UUID, storage subscription.PlanStorage, opts ...PlanStoreOption) *PlanStore {
	s := &PlanStore{
		orgID:     orgID,
		storage:   storage,
		logger:    zap.NewNop(),
		now:       time.Now,
		current:   subscription.DefaultPlan,
		observers: make(map[uint64]PlanObserver),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *PlanStore) load(ctx context.Context) {
	raw, found, err := s.storage.Get(ctx, s.orgID, subscription.PlanSettingKey)
	if err != nil {
		s.logger.Warn("Failed to read subscription plan, using default",
			zap.String("organization_id", s.orgID.String()),
			zap.String("default_plan", string(subscription.DefaultPlan)),
			zap.Error(err))
		return
	}

	if found {
		plan, parseErr := subscription.ParseStoredPlan(raw)
		if parseErr == nil {
			s.current = plan
			return
		}
		s.logger.Warn("Stored subscription plan is not recognized, resetting to default",
			zap.String("organization_id", s.orgID.String()),
			zap.String("stored_value", raw))
	}

	if err := s.storage.Set(ctx, s.orgID, subscription.PlanSettingKey, string(subscription.DefaultPlan)); err != nil {
		s.logger.Warn("Failed to persist default subscription plan",
			zap.String("organization_id", s.orgID.String()),
			zap.Error(err))
	}
}

func (s *PlanStore) markForReload() {
	s.reloadPending.Store(true)
}

// refresh re-reads the stored plan when a reload is pending. Observers are not
// notified since the change was made and announced elsewhere. An absent or
// unrecognized value keeps the current plan; a read failure keeps the reload pending.
func (s *PlanStore) refresh(ctx context.Context) {
	if !s.reloadPending.Load() {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.reloadPending.Swap(false) {
		return
	}

	raw, found, err := s.storage.Get(ctx, s.orgID, subscription.PlanSettingKey)
	if err != nil {
		s.reloadPending.Store(true)
		s.logger.Warn("Failed to reload subscription plan",
			zap.String("organization_id", s.orgID.String()),
			zap.Error(err))
		return
	}
	if !found {
		return
	}
	plan, err := subscription.ParseStoredPlan(raw)
	if err != nil {
		s.logger.Warn("Stored subscription plan is not recognized, keeping current",
			zap.String("organization_id", s.orgID.String()),
			zap.String("stored_value", raw))
		return
	}

	s.mu.Lock()
	previous := s.current
	s.current = plan
	s.mu.Unlock()

	s.logger.Debug("Subscription plan reloaded",
		zap.String("organization_id", s.orgID.String()),
		zap.String("previous", string(previous)),
		zap.String("current", string(plan)))
}

// OrganizationID returns the organization this store belongs to
func (s *PlanStore) OrganizationID() uuid.UUID {
	return s.orgID
}

// Current returns the current plan
func (s *PlanStore) Current() subscription.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetPlan validates, persists and applies plan, then notifies every observer before returning.
// An invalid plan returns ErrInvalidPlan without touching storage. A storage write failure
// still applies the plan and returns an error matching ErrPlanNotPersisted.
func (s *PlanStore) SetPlan(ctx context.Context, plan subscription.Plan) error {
	next, err := subscription.ParsePlan(string(plan))
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.reloadPending.Store(false)

	var warn error
	if err := s.storage.Set(ctx, s.orgID, subscription.PlanSettingKey, string(next)); err != nil {
		s.logger.Warn("Subscription plan applied but not persisted",
			zap.String("organization_id", s.orgID.String()),
			zap.String("plan", string(next)),
			zap.Error(err))
		warn = ErrPlanNotPersisted.Wrap(err)
	}

	s.mu.Lock()
	previous := s.current
	s.current = next
	s.mu.Unlock()

	s.notify(ctx, PlanChange{
		OrganizationID: s.orgID,
		Previous:       previous,
		Current:        next,
		Persisted:      warn == nil,
		ChangedAt:      s.now(),
	})

	s.logger.Info("Subscription plan changed",
		zap.String("organization_id", s.orgID.String()),
		zap.String("previous", string(previous)),
		zap.String("current", string(next)))

	return warn
}

// Subscribe registers observer and returns a function removing it
func (s *PlanStore) Subscribe(observer PlanObserver) (unsubscribe func()) {
	id := s.addObserver(observer)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *PlanStore) addObserver(observer PlanObserver) uint64 {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.nextObsID++
	s.observers[s.nextObsID] = observer
	return s.nextObsID
}

func (s *PlanStore) notify(ctx context.Context, change PlanChange) {
	s.obsMu.Lock()
	observers := make([]PlanObserver, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.obsMu.Unlock()

	for _, o := range observers {
		s.callObserver(ctx, o, change)
	}
}

func (s *PlanStore) callObserver(ctx context.Context, o PlanObserver, change PlanChange) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Plan observer panicked",
				zap.String("organization_id", s.orgID.String()),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	o(ctx, change)
}
