package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/portfolio-tracker/internal/models"
)

// BackupService serializes the full persisted state into one JSON document
// and restores it with the same tolerant merge used on load: malformed
// sections fall back to defaults, a malformed document aborts the restore
// with the previous state intact.
type BackupService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewBackupService(db *gorm.DB) *BackupService {
	return &BackupService{
		db:  db,
		now: time.Now,
	}
}

// Export returns the full document and the dated filename to serve it as.
func (s *BackupService) Export() (*models.BackupDocument, string, error) {
	doc := &models.BackupDocument{}

	var settings models.Settings
	if err := s.db.First(&settings, "id = ?", 1).Error; err != nil {
		settings = models.DefaultSettings()
	}
	doc.Settings = settings

	if err := s.db.Preload("Holdings").Order("created_at ASC").Find(&doc.Accounts).Error; err != nil {
		return nil, "", err
	}
	if err := s.db.Find(&doc.History).Error; err != nil {
		return nil, "", err
	}
	sort.Slice(doc.History, func(i, j int) bool {
		return doc.History[i].Date < doc.History[j].Date
	})

	filename := fmt.Sprintf("portfolio-backup-%s.json", s.now().Format("2006-01-02"))
	return doc, filename, nil
}

// rawBackup lets each section parse independently so one bad section does
// not take down the whole restore.
type rawBackup struct {
	Settings json.RawMessage `json:"settings"`
	Accounts json.RawMessage `json:"accounts"`
	History  json.RawMessage `json:"history"`
}

// Restore replaces the entire state with the uploaded document. The swap
// is transactional: a failure mid-restore rolls back to the previous state.
func (s *BackupService) Restore(data []byte) error {
	var raw rawBackup
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("backup file is not valid JSON: %w", err)
	}

	// Unmarshal over defaults: fields the backup omits keep their default,
	// which is the shallow merge the loader has always done
	settings := models.DefaultSettings()
	if len(raw.Settings) > 0 {
		if err := json.Unmarshal(raw.Settings, &settings); err != nil {
			settings = models.DefaultSettings()
		}
	}
	settings.ID = 1
	if settings.FxRates == nil {
		settings.FxRates = models.DefaultSettings().FxRates
	}
	if settings.BaseCurrency == "" {
		settings.BaseCurrency = models.DefaultSettings().BaseCurrency
	}

	var accounts []models.Account
	if len(raw.Accounts) > 0 {
		if err := json.Unmarshal(raw.Accounts, &accounts); err != nil {
			accounts = nil
		}
	}

	var history []models.Snapshot
	if len(raw.History) > 0 {
		if err := json.Unmarshal(raw.History, &history); err != nil {
			history = nil
		}
	}
	for i := range history {
		history[i].ID = 0 // reassigned on insert
		if history[i].AccountAssets == nil {
			history[i].AccountAssets = models.AccountTotals{}
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Holding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.Account{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.Snapshot{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.Settings{}).Error; err != nil {
			return err
		}

		if err := tx.Create(&settings).Error; err != nil {
			return err
		}
		for i := range accounts {
			if err := tx.Create(&accounts[i]).Error; err != nil {
				return err
			}
		}
		for i := range history {
			if err := tx.Create(&history[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
