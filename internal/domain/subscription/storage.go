package subscription

import (
	"context"

	"github.com/google/uuid"
)

// PlanSettingKey is the setting under which an organization's plan identifier is stored
const PlanSettingKey = "subscriptionPlan"

// PlanStorage is durable key-value storage of organization settings.
// Get returns found=false when the key has never been written.
type PlanStorage interface {
	Get(ctx context.Context, orgID uuid.UUID, key string) (value string, found bool, err error)
	Set(ctx context.Context, orgID uuid.UUID, key, value string) error
}
