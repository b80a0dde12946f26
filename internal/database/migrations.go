package database

import (
	"log"

	"gorm.io/gorm"
)

// cleanupDuplicateSnapshots removes duplicate snapshot rows for the same
// date before the unique constraint is added. This runs BEFORE AutoMigrate
// to prevent constraint violations on databases written by older builds.
func cleanupDuplicateSnapshots(db *gorm.DB) error {
	if !db.Migrator().HasTable("snapshots") {
		return nil // No table, no duplicates to clean
	}

	// Keep the newest row per date
	result := db.Exec(`
		DELETE FROM snapshots
		WHERE id NOT IN (
			SELECT MAX(id)
			FROM snapshots
			GROUP BY date
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d duplicate snapshot entries", result.RowsAffected)
	}

	return nil
}

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	if err := migrateHoldingCategories(db); err != nil {
		return err
	}
	if err := migrateSnapshotAccountAssets(db); err != nil {
		return err
	}
	return nil
}

func migrateHoldingCategories(db *gorm.DB) error {
	// Ensure holdings carry an explicit category label
	if db.Migrator().HasColumn("holdings", "category") {
		db.Exec(`UPDATE holdings SET category = '未分类' WHERE category IS NULL OR category = ''`)
	}
	return nil
}

func migrateSnapshotAccountAssets(db *gorm.DB) error {
	// Rows written before per-account totals existed get an empty map so
	// the JSON column always scans
	if db.Migrator().HasColumn("snapshots", "account_assets") {
		db.Exec(`UPDATE snapshots SET account_assets = '{}' WHERE account_assets IS NULL OR account_assets = ''`)
	}
	return nil
}
