package subscription

import (
	"context"

	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"go.uber.org/zap"
)

// PublishPlanChanges returns an observer publishing a PlanChangedEvent for every change
func PublishPlanChanges(publisher shared.EventPublisher, logger *zap.Logger) PlanObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, change PlanChange) {
		evt := subscription.NewPlanChangedEvent(change.OrganizationID, change.Previous, change.Current, change.Persisted, change.ChangedAt)
		if err := publisher.Publish(ctx, evt); err != nil {
			logger.Warn("Failed to publish plan change",
				zap.String("organization_id", change.OrganizationID.String()),
				zap.Error(err))
		}
	}
}

// EvictOnRemoteChange returns an invalidation sink that reloads an organization's plan
// when another process reports a subscription change.
func (r *PlanStoreRegistry) EvictOnRemoteChange(instanceID string) func(context.Context, realtime.InvalidationEvent) {
	return func(_ context.Context, evt realtime.InvalidationEvent) {
		if evt.Name != realtime.EventSubscriptionUpdated || evt.Source == instanceID {
			return
		}
		r.Evict(evt.OrganizationID)
		r.logger.Debug("Plan store marked for reload after remote change",
			zap.String("organization_id", evt.OrganizationID.String()),
			zap.String("source", evt.Source))
	}
}
