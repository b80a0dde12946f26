package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codyseavey/portfolio-tracker/internal/database"
	"github.com/codyseavey/portfolio-tracker/internal/models"
	"github.com/codyseavey/portfolio-tracker/internal/services"
)

type HoldingHandler struct {
	snapshots *services.SnapshotService
}

func NewHoldingHandler(snapshots *services.SnapshotService) *HoldingHandler {
	return &HoldingHandler{
		snapshots: snapshots,
	}
}

func (h *HoldingHandler) CreateHolding(c *gin.Context) {
	var req models.HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()
	var account models.Account
	if err := db.First(&account, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account not found"})
		return
	}

	holding, ok := h.buildFromRequest(c, uuid.NewString(), account.ID, req)
	if !ok {
		return
	}

	if err := db.Create(&holding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.snapshots.EnsureTodaySnapshot(); err != nil {
		log.Printf("Holding handler: snapshot after create failed: %v", err)
	}

	c.JSON(http.StatusCreated, holding)
}

func (h *HoldingHandler) UpdateHolding(c *gin.Context) {
	var req models.HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()
	var existing models.Holding
	if err := db.First(&existing, "id = ? AND account_id = ?",
		c.Param("holdingId"), c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "holding not found"})
		return
	}

	holding, ok := h.buildFromRequest(c, existing.ID, existing.AccountID, req)
	if !ok {
		return
	}

	// An edit rewrites the monetary fields but must not reset the intraday
	// baseline or the creation time
	holding.TodayStartPrice = existing.TodayStartPrice
	holding.TodayStartAmount = existing.TodayStartAmount
	holding.TodayStartDate = existing.TodayStartDate
	holding.CreatedAt = existing.CreatedAt

	if err := db.Save(&holding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.snapshots.EnsureTodaySnapshot(); err != nil {
		log.Printf("Holding handler: snapshot after update failed: %v", err)
	}

	c.JSON(http.StatusOK, holding)
}

func (h *HoldingHandler) DeleteHolding(c *gin.Context) {
	db := database.GetDB()
	var existing models.Holding
	if err := db.First(&existing, "id = ? AND account_id = ?",
		c.Param("holdingId"), c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "holding not found"})
		return
	}

	if err := db.Delete(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.snapshots.EnsureTodaySnapshot(); err != nil {
		log.Printf("Holding handler: snapshot after delete failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"deleted": existing.ID})
}

// buildFromRequest derives the stored holding from the form fields,
// answering validation errors directly. A false return means a response
// has already been written.
func (h *HoldingHandler) buildFromRequest(c *gin.Context, id, accountID string, req models.HoldingRequest) (models.Holding, bool) {
	if req.Name == "" && req.LastPrice == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "look up the code first to get its latest quote"})
		return models.Holding{}, false
	}

	var settings models.Settings
	if err := database.GetDB().First(&settings, "id = ?", 1).Error; err != nil {
		settings = models.DefaultSettings()
	}

	defaultSource := "proxy"
	if services.IsFundCode(req.Code) {
		defaultSource = models.SourceFund
	}
	if req.Symbol == "" {
		req.Symbol = services.NormalizeYahooSymbol(req.Code)
	}

	holding, err := models.BuildHolding(id, accountID, req, defaultSource, settings.BaseCurrency, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Holding{}, false
	}
	return holding, true
}
