package persistence

import (
	"fmt"

	"github.com/flowstate/agency/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AutoMigrate creates the settings and resource tables when missing. Used with sqlite,
// where the SQL migrations in migrations/ do not apply.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.OrganizationSettingModel{}); err != nil {
		return fmt.Errorf("migrate organization_settings: %w", err)
	}
	for _, table := range resourceTables {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, table)
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}
