package persistence

import (
	"context"
	"fmt"

	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var resourceTables = map[subscription.ResourceKind]string{
	subscription.ResourceProjects: "projects",
	subscription.ResourceUsers:    "users",
	subscription.ResourceTeams:    "teams",
	subscription.ResourceClients:  "clients",
	subscription.ResourceGoals:    "goals",
}

// ResourceCounter counts an organization's rows in the resource tables
type ResourceCounter struct {
	db *gorm.DB
}

// NewResourceCounter creates a counter
func NewResourceCounter(db *gorm.DB) *ResourceCounter {
	return &ResourceCounter{db: db}
}

// Count returns how many resources of kind orgID owns
func (c *ResourceCounter) Count(ctx context.Context, orgID uuid.UUID, kind subscription.ResourceKind) (int, error) {
	table, ok := resourceTables[kind]
	if !ok {
		return 0, subscription.ErrUnknownResourceKind.WithMessage(fmt.Sprintf("unknown resource kind %q", kind))
	}
	var n int64
	if err := c.db.WithContext(ctx).Table(table).Scopes(OrganizationScope(orgID)).Count(&n).Error; err != nil {
		return 0, shared.ErrStorageUnavailable.Wrap(fmt.Errorf("count %s: %w", table, err))
	}
	return int(n), nil
}
