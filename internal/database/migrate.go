package database

import (
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/model"
	"storefront/pkg/log"
)

// Tables managed by AutoMigrate, parents first
var Tables = []string{
	"products",
	"orders",
	"order_lines",
	"stock_logs",
}

// AutoMigrate auto migrate database table schema
func AutoMigrate(db *gorm.DB) error {
	log.Info("Starting database migration...")

	models := []interface{}{
		&model.Product{},
		&model.Order{},
		&model.OrderLine{},
		&model.StockLog{},
	}

	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
		log.Infof("Migrated model: %T", m)
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CheckTables returns the managed tables that do not exist yet
func CheckTables(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, table := range Tables {
		var count int64
		err := db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", table).Scan(&count).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if count == 0 {
			log.Warnf("Table not found: %s", table)
			missing = append(missing, table)
		}
	}
	return missing, nil
}
