package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/flowstate/agency/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPlanStorage stores organization settings in the organization_settings table
type GormPlanStorage struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormPlanStorage creates a database-backed settings store
func NewGormPlanStorage(db *gorm.DB) *GormPlanStorage {
	return &GormPlanStorage{db: db, now: time.Now}
}

// Get reads a setting
func (s *GormPlanStorage) Get(ctx context.Context, orgID uuid.UUID, key string) (string, bool, error) {
	var model models.OrganizationSettingModel
	err := s.db.WithContext(ctx).
		Scopes(OrganizationScope(orgID)).
		Where("setting_key = ?", key).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, shared.ErrStorageUnavailable.Wrap(fmt.Errorf("read setting %s: %w", key, err))
	}
	return model.Value, true, nil
}

// Set inserts or replaces a setting
func (s *GormPlanStorage) Set(ctx context.Context, orgID uuid.UUID, key, value string) error {
	model := models.OrganizationSettingModel{
		OrganizationID: orgID,
		Key:            key,
		Value:          value,
		UpdatedAt:      s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return shared.ErrStorageUnavailable.Wrap(fmt.Errorf("write setting %s: %w", key, err))
	}
	return nil
}

var _ subscription.PlanStorage = (*GormPlanStorage)(nil)
