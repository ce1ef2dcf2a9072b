// Package storage selects the durable backend for organization settings.
package storage

import (
	"fmt"

	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/flowstate/agency/internal/infrastructure/cache"
	"github.com/flowstate/agency/internal/infrastructure/config"
	"github.com/flowstate/agency/internal/infrastructure/persistence"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewPlanStorage returns the PlanStorage named by cfg.Storage.
// The redis backend falls back to the database, then to memory, when no client is available.
func NewPlanStorage(cfg config.SubscriptionConfig, db *gorm.DB, client *redis.Client, logger *zap.Logger) (subscription.PlanStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Storage {
	case config.StorageDatabase, "":
		if db == nil {
			return nil, fmt.Errorf("plan storage %q requires a database connection", config.StorageDatabase)
		}
		return persistence.NewGormPlanStorage(db), nil

	case config.StorageRedis:
		if client != nil {
			return cache.NewRedisPlanStorage(client, ""), nil
		}
		if db != nil {
			logger.Warn("Redis unavailable, storing plans in the database")
			return persistence.NewGormPlanStorage(db), nil
		}
		logger.Warn("Redis unavailable, storing plans in memory; plans are lost on restart")
		return cache.NewMemoryPlanStorage(), nil

	case config.StorageMemory:
		logger.Warn("Storing plans in memory; plans are lost on restart")
		return cache.NewMemoryPlanStorage(), nil

	default:
		return nil, fmt.Errorf("unknown plan storage %q", cfg.Storage)
	}
}
