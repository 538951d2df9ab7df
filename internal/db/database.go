package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
)

var DB *gorm.DB

// InitDB connects to postgres using config.AppConfig and migrates the schema.
func InitDB() (*gorm.DB, error) {
	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	dbCfg := config.AppConfig.Database

	logrus.WithField("driver", dbCfg.Driver).Info("Connecting to database")

	conn, err := Open(postgres.Open(dbCfg.DSN))
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if dbCfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	}
	if dbCfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	}
	if dbCfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.ConnMaxLifetime) * time.Second)
	}

	logrus.Info("✅ Database connected successfully")

	if err := Migrate(conn); err != nil {
		return nil, err
	}

	DB = conn
	return conn, nil
}

// Open opens a gorm handle with the settings every bridge database uses.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return conn, nil
}

// Migrate creates or updates every bridge table.
func Migrate(conn *gorm.DB) error {
	logrus.Info("🚀 Starting database schema migration with GORM AutoMigrate...")

	if err := conn.AutoMigrate(
		&models.BridgeState{},
		&models.RegisteredAsset{},
		&models.UsedProof{},
		&models.MetadataCheckpoint{},
		&models.BridgeTransfer{},
		&models.WithdrawResult{},
		&models.BridgedContract{},
		&models.BridgedToken{},
	); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}
	if err := RunDataMigrations(conn); err != nil {
		return err
	}

	logrus.Info("✅ Database schema migrated successfully")
	return nil
}
