package realtime

import (
	"context"

	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"go.uber.org/zap"
)

// PlanChangeNotifier turns PlanChanged domain events into subscription_updated invalidations
type PlanChangeNotifier struct {
	publisher  Publisher
	instanceID string
	logger     *zap.Logger
}

// NewPlanChangeNotifier creates the handler. instanceID marks events emitted by this process.
func NewPlanChangeNotifier(publisher Publisher, instanceID string, logger *zap.Logger) *PlanChangeNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanChangeNotifier{publisher: publisher, instanceID: instanceID, logger: logger}
}

// EventTypes implements shared.EventHandler
func (n *PlanChangeNotifier) EventTypes() []string {
	return []string{subscription.EventTypePlanChanged}
}

// Handle implements shared.EventHandler
func (n *PlanChangeNotifier) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*subscription.PlanChangedEvent)
	if !ok {
		return nil
	}

	evt, err := realtime.NewInvalidationEvent(realtime.EventSubscriptionUpdated, changed.OrganizationID(), string(changed.Current))
	if err != nil {
		return err
	}
	evt.EventID = changed.EventID()
	evt.OccurredAt = changed.OccurredAt()
	evt.Source = n.instanceID

	if err := n.publisher.Publish(ctx, evt); err != nil {
		n.logger.Warn("Failed to publish subscription invalidation",
			zap.String("organization_id", changed.OrganizationID().String()),
			zap.Error(err))
		return err
	}
	return nil
}
