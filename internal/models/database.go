package models

import (
	"fmt"
	"time"

	"github.com/huangang/feedbackbot/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to the configured database without touching the global handle.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY under concurrent handlers
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Migrate creates or updates every table the bot uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Event{},
		&Feedback{},
		&Rating{},
		&BotSetting{},
		&SystemLog{},
	)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// Seed inserts default settings that are missing. Existing values are kept.
func Seed(db *gorm.DB) error {
	for _, s := range DefaultSettings {
		setting := s
		var count int64
		if err := db.Model(&BotSetting{}).Where(&BotSetting{Key: setting.Key}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&setting).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedDefaultData creates default data if not exists
func SeedDefaultData() error {
	return Seed(DB)
}
