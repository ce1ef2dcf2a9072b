package telemetry

import (
	"context"
	"fmt"

	"github.com/flowstate/agency/internal/application/subscription"
	"github.com/flowstate/agency/internal/domain/realtime"
	domain "github.com/flowstate/agency/internal/domain/subscription"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by the subscription metrics
var (
	AttrEvent     = attribute.Key("event")
	AttrPlan      = attribute.Key("plan")
	AttrPrevPlan  = attribute.Key("previous_plan")
	AttrFeature   = attribute.Key("feature")
	AttrPersisted = attribute.Key("persisted")
)

// SubscriptionMetrics records plan changes, gate denials and invalidation traffic
type SubscriptionMetrics struct {
	invalidations metric.Int64Counter
	marked        metric.Int64Counter
	dropped       metric.Int64Counter
	planChanges   metric.Int64Counter
	gateDenials   metric.Int64Counter
}

// NewSubscriptionMetrics creates the instruments on meter
func NewSubscriptionMetrics(meter metric.Meter) (*SubscriptionMetrics, error) {
	m := &SubscriptionMetrics{}
	counters := []struct {
		dst              *metric.Int64Counter
		name, desc, unit string
	}{
		{&m.invalidations, "agency.realtime.invalidations", "Invalidation events applied to the query cache", "{event}"},
		{&m.marked, "agency.realtime.entries_marked", "Query cache entries marked stale", "{entry}"},
		{&m.dropped, "agency.realtime.dropped", "Invalidation events dropped by the listener", "{event}"},
		{&m.planChanges, "agency.subscription.plan_changes", "Organization plan changes", "{change}"},
		{&m.gateDenials, "agency.subscription.gate_denials", "Requests denied by a feature gate", "{request}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

// Invalidated implements the listener recorder
func (m *SubscriptionMetrics) Invalidated(ctx context.Context, name realtime.EventName, marked int) {
	attrs := metric.WithAttributes(AttrEvent.String(string(name)))
	m.invalidations.Add(ctx, 1, attrs)
	m.marked.Add(ctx, int64(marked), attrs)
}

// Dropped implements the listener recorder
func (m *SubscriptionMetrics) Dropped(ctx context.Context, name realtime.EventName) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(AttrEvent.String(string(name))))
}

// PlanChanged is a plan store observer
func (m *SubscriptionMetrics) PlanChanged(ctx context.Context, change subscription.PlanChange) {
	m.planChanges.Add(ctx, 1, metric.WithAttributes(
		AttrPrevPlan.String(change.Previous.String()),
		AttrPlan.String(change.Current.String()),
		AttrPersisted.Bool(change.Persisted),
	))
}

// GateDenied counts a request rejected because plan lacks feature
func (m *SubscriptionMetrics) GateDenied(ctx context.Context, feature domain.FeatureID, plan domain.Plan) {
	m.gateDenials.Add(ctx, 1, metric.WithAttributes(
		AttrFeature.String(string(feature)),
		AttrPlan.String(plan.String()),
	))
}
