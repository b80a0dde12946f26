package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/portfolio-tracker/internal/models"
	"github.com/codyseavey/portfolio-tracker/internal/services"
)

type PortfolioHandler struct {
	portfolio *services.PortfolioService
	snapshots *services.SnapshotService
}

func NewPortfolioHandler(portfolio *services.PortfolioService, snapshots *services.SnapshotService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolio: portfolio,
		snapshots: snapshots,
	}
}

// GetSummary returns the dashboard figures: totals, return rate and
// today's P&L against the latest snapshot before today.
func (h *PortfolioHandler) GetSummary(c *gin.Context) {
	totals, err := h.portfolio.Totals()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	accounts, err := h.portfolio.Accounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	settings, _ := h.portfolio.Settings()

	todayPnl := 0.0
	baselineDate := ""
	previous, err := h.snapshots.PreviousSnapshot(h.portfolio.Today())
	if err == nil && previous != nil {
		todayPnl = totals.Assets - previous.TotalAssetsBase
		baselineDate = previous.Date
	}

	c.JSON(http.StatusOK, gin.H{
		"totals":        totals,
		"return_rate":   totals.ReturnRate(),
		"today_pnl":     todayPnl,
		"baseline_date": baselineDate, // empty until a prior snapshot exists
		"account_count": len(accounts),
		"base_currency": settings.BaseCurrency,
	})
}

// GetDistribution returns value slices grouped by account or by category,
// largest first.
func (h *PortfolioHandler) GetDistribution(c *gin.Context) {
	var items []models.DistributionItem
	var err error

	switch c.DefaultQuery("by", "account") {
	case "category":
		items, err = h.portfolio.DistributionByCategory()
	case "account":
		items, err = h.portfolio.DistributionByAccount()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "by must be account or category"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Value > items[j].Value })
	c.JSON(http.StatusOK, items)
}

// GetHistory returns persisted snapshots for a period.
func (h *PortfolioHandler) GetHistory(c *gin.Context) {
	period := c.DefaultQuery("period", "month")
	snapshots, err := h.snapshots.History(period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.HistoryResponse{Snapshots: snapshots, Period: period})
}

// GetHistorySeries returns chart points, optionally with a live preview
// point for today that is never persisted.
func (h *PortfolioHandler) GetHistorySeries(c *gin.Context) {
	period := c.DefaultQuery("period", "month")
	includeToday := c.DefaultQuery("includeToday", "true") != "false"

	points, err := h.snapshots.Series(period, includeToday)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, points)
}

// GetHistoryChart renders the series as a PNG line chart.
func (h *PortfolioHandler) GetHistoryChart(c *gin.Context) {
	period := c.DefaultQuery("period", "month")
	metric := c.DefaultQuery("metric", "assets")
	if metric != "assets" && metric != "pnl" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metric must be assets or pnl"})
		return
	}

	points, err := h.snapshots.Series(period, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	settings, _ := h.portfolio.Settings()
	png, err := services.RenderHistoryChart(points, metric, settings.BaseCurrency)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
