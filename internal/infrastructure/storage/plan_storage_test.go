package storage

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/flowstate/agency/internal/infrastructure/cache"
	"github.com/flowstate/agency/internal/infrastructure/config"
	"github.com/flowstate/agency/internal/infrastructure/persistence"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNewPlanStorage(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tests := []struct {
		name    string
		storage string
		db      *gorm.DB
		client  *redis.Client
		want    any
		wantErr bool
	}{
		{name: "database", storage: config.StorageDatabase, db: db, want: &persistence.GormPlanStorage{}},
		{name: "default is database", storage: "", db: db, want: &persistence.GormPlanStorage{}},
		{name: "database without connection", storage: config.StorageDatabase, wantErr: true},
		{name: "redis", storage: config.StorageRedis, db: db, client: client, want: &cache.RedisPlanStorage{}},
		{name: "redis falls back to database", storage: config.StorageRedis, db: db, want: &persistence.GormPlanStorage{}},
		{name: "redis falls back to memory", storage: config.StorageRedis, want: &cache.MemoryPlanStorage{}},
		{name: "memory", storage: config.StorageMemory, want: &cache.MemoryPlanStorage{}},
		{name: "unknown", storage: "s3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPlanStorage(config.SubscriptionConfig{Storage: tt.storage}, tt.db, tt.client, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}
