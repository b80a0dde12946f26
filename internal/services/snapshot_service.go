package services

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/portfolio-tracker/internal/metrics"
	"github.com/codyseavey/portfolio-tracker/internal/models"
)

// SnapshotService owns the daily history of aggregated totals. One row per
// calendar date; re-recording a date overwrites it in place, so recording
// is idempotent for unchanged holdings. Past dates are only ever touched by
// a base-currency rebase.
type SnapshotService struct {
	db        *gorm.DB
	portfolio *PortfolioService

	mu            sync.Mutex
	snapshotHour  int // Hour of day to take the automatic snapshot (0-23)
	checkInterval time.Duration
	now           func() time.Time
}

func NewSnapshotService(db *gorm.DB, portfolio *PortfolioService) *SnapshotService {
	return &SnapshotService{
		db:            db,
		portfolio:     portfolio,
		snapshotHour:  23, // Default: 11 PM
		checkInterval: 15 * time.Minute,
		now:           time.Now,
	}
}

// Start begins the background snapshot worker. Mutating operations call
// EnsureTodaySnapshot directly; this loop only guarantees a row exists for
// days with no user activity.
func (s *SnapshotService) Start(ctx context.Context) {
	log.Println("Snapshot service started: will record daily portfolio value")

	s.checkAndSnapshot()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot service stopping...")
			return
		case <-ticker.C:
			s.checkAndSnapshot()
		}
	}
}

func (s *SnapshotService) checkAndSnapshot() {
	now := s.now()
	today := now.Format("2006-01-02")

	var count int64
	s.db.Model(&models.Snapshot{}).Where("date = ?", today).Count(&count)
	if count > 0 {
		return
	}

	// Only take automatic snapshots at or after the configured hour
	if now.Hour() >= s.snapshotHour {
		if err := s.EnsureTodaySnapshot(); err != nil {
			log.Printf("Snapshot service: failed to record snapshot: %v", err)
		}
	}
}

// EnsureTodaySnapshot recomputes current totals and upserts today's row.
// Calling it twice with unchanged holdings writes an identical entry.
func (s *SnapshotService) EnsureTodaySnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().Format("2006-01-02")

	accounts, err := s.portfolio.Accounts()
	if err != nil {
		return err
	}
	settings, _ := s.portfolio.Settings()
	totals := ComputeTotals(accounts, &settings)
	accountTotals := ComputeAccountTotals(accounts, &settings)

	var existing models.Snapshot
	err = s.db.Where("date = ?", today).First(&existing).Error
	switch {
	case err == nil:
		existing.TotalAssetsBase = totals.Assets
		existing.TotalPnlBase = totals.Pnl
		existing.AccountAssets = accountTotals
		if err := s.db.Save(&existing).Error; err != nil {
			return err
		}
	case err == gorm.ErrRecordNotFound:
		entry := models.Snapshot{
			Date:            today,
			TotalAssetsBase: totals.Assets,
			TotalPnlBase:    totals.Pnl,
			AccountAssets:   accountTotals,
			CreatedAt:       s.now(),
		}
		if err := s.db.Create(&entry).Error; err != nil {
			return err
		}
	default:
		return err
	}

	metrics.SnapshotsRecorded.Inc()
	s.portfolio.PublishMetrics()
	log.Printf("Snapshot service: recorded snapshot for %s (assets: %.2f, pnl: %.2f)",
		today, totals.Assets, totals.Pnl)
	return nil
}

// History retrieves snapshots for a given period, ascending by date.
// Entries may have been appended out of order, so the sort is explicit.
func (s *SnapshotService) History(period string) ([]models.Snapshot, error) {
	now := s.now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{} // No filter
	default:
		startDate = now.AddDate(0, -1, 0) // Default to 1 month
	}

	var snapshots []models.Snapshot
	query := s.db.Model(&models.Snapshot{})
	if !startDate.IsZero() {
		query = query.Where("date >= ?", startDate.Format("2006-01-02"))
	}
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}

	// Lexicographic ISO order equals chronological order
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Date < snapshots[j].Date
	})
	return snapshots, nil
}

// Series converts history into chart points. With includeToday set and no
// persisted row for today, a live point computed from current totals is
// appended for preview; that synthetic point is never persisted.
func (s *SnapshotService) Series(period string, includeToday bool) ([]models.SeriesPoint, error) {
	snapshots, err := s.History(period)
	if err != nil {
		return nil, err
	}

	points := make([]models.SeriesPoint, 0, len(snapshots)+1)
	for _, snap := range snapshots {
		points = append(points, models.SeriesPoint{
			Date:   snap.Date,
			Assets: snap.TotalAssetsBase,
			Pnl:    snap.TotalPnlBase,
		})
	}

	if includeToday {
		today := s.now().Format("2006-01-02")
		if len(points) == 0 || points[len(points)-1].Date != today {
			totals, err := s.portfolio.Totals()
			if err == nil {
				points = append(points, models.SeriesPoint{
					Date:   today,
					Assets: totals.Assets,
					Pnl:    totals.Pnl,
				})
			}
		}
	}

	return points, nil
}

// PreviousSnapshot returns the latest entry strictly before the given date,
// or nil when there is none. It is the baseline for portfolio-level
// today's P&L.
func (s *SnapshotService) PreviousSnapshot(before string) (*models.Snapshot, error) {
	var snapshots []models.Snapshot
	if err := s.db.Where("date < ?", before).Find(&snapshots).Error; err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Date < snapshots[j].Date
	})
	latest := snapshots[len(snapshots)-1]
	return &latest, nil
}
