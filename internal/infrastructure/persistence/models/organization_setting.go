package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationSettingModel is one key/value setting of an organization
type OrganizationSettingModel struct {
	OrganizationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Key            string    `gorm:"column:setting_key;type:varchar(100);primaryKey"`
	Value          string    `gorm:"type:text;not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrganizationSettingModel) TableName() string {
	return "organization_settings"
}
