package database

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/portfolio-tracker/internal/models"
)

var DB *gorm.DB

func Initialize(dbPath string) error {
	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	log.Println("Database connected successfully")

	// Duplicate snapshot dates would violate the unique index AutoMigrate adds
	if err := cleanupDuplicateSnapshots(DB); err != nil {
		return err
	}

	err = DB.AutoMigrate(
		&models.Account{},
		&models.Holding{},
		&models.Settings{},
		&models.Snapshot{},
	)
	if err != nil {
		return err
	}

	if err := RunMigrations(DB); err != nil {
		return err
	}

	if err := EnsureSettings(DB); err != nil {
		return err
	}

	log.Println("Database migration completed")
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// EnsureSettings guarantees the singleton settings row exists, seeding it
// with defaults on first start.
func EnsureSettings(db *gorm.DB) error {
	defaults := models.DefaultSettings()
	var settings models.Settings
	return db.Where("id = ?", 1).Attrs(defaults).FirstOrCreate(&settings).Error
}
