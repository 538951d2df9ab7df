package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

// DataMigration represents a data migration
type DataMigration struct {
	Version     string
	Description string
	Up          func(*gorm.DB) error
}

// DataMigrationLog records applied data migrations.
type DataMigrationLog struct {
	ID          uint      `gorm:"primaryKey"`
	Version     string    `gorm:"size:50;not null;uniqueIndex"`
	Description string    `gorm:"type:text"`
	ExecutedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (DataMigrationLog) TableName() string {
	return "schema_migrations_log"
}

// GetDataMigrations return all data migrations
func GetDataMigrations() []DataMigration {
	return []DataMigration{
		{
			Version:     "data_001",
			Description: "Lowercase stored origin addresses",
			Up:          lowercaseAddresses,
		},
		{
			Version:     "data_002",
			Description: "Backfill error_code of rejected transfers",
			Up:          backfillRejectedErrorCodes,
		},
	}
}

// address columns written before Address.Value normalized case
var addressColumns = map[string][]string{
	"bridge_state":         {"locker_address", "metadata_connector"},
	"registered_assets":    {"asset"},
	"metadata_checkpoints": {"asset"},
	"bridge_transfers":     {"asset", "sender"},
	"withdraw_results":     {"asset", "recipient"},
	"bridged_contracts":    {"asset"},
}

func lowercaseAddresses(tx *gorm.DB) error {
	log.Println("🔄 Lowercasing stored addresses...")
	for table, columns := range addressColumns {
		for _, column := range columns {
			result := tx.Exec(fmt.Sprintf("UPDATE %s SET %s = LOWER(%s) WHERE %s <> LOWER(%s)",
				table, column, column, column, column))
			if result.Error != nil {
				log.Printf("❌ Failed to migrate %s.%s: %v", table, column, result.Error)
				return result.Error
			}
			if result.RowsAffected > 0 {
				log.Printf("✅ Migrated %d rows in %s.%s", result.RowsAffected, table, column)
			}
		}
	}
	return nil
}

func backfillRejectedErrorCodes(tx *gorm.DB) error {
	result := tx.Exec("UPDATE bridge_transfers SET error_code = ? WHERE status = ? AND (error_code IS NULL OR error_code = '')",
		"PROOF_REJECTED", "rejected")
	if result.Error != nil {
		return result.Error
	}
	log.Printf("✅ Backfilled error_code on %d rejected transfers", result.RowsAffected)
	return nil
}

// RunDataMigrations applies every data migration not yet recorded, each in its own transaction.
func RunDataMigrations(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&DataMigrationLog{}); err != nil {
		return fmt.Errorf("failed to create schema_migrations_log: %w", err)
	}

	for _, migration := range GetDataMigrations() {
		var count int64
		if err := conn.Model(&DataMigrationLog{}).Where("version = ?", migration.Version).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		log.Printf("🚀 Running data migration: %s", migration.Description)
		err := conn.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&DataMigrationLog{
				Version:     migration.Version,
				Description: migration.Description,
				ExecutedAt:  time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("data migration %s: %w", migration.Version, err)
		}
		log.Printf("✅ Data migration %s completed", migration.Version)
	}
	return nil
}
