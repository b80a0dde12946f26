package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/portfolio-tracker/internal/database"
	"github.com/codyseavey/portfolio-tracker/internal/models"
	"github.com/codyseavey/portfolio-tracker/internal/services"
)

type AccountHandler struct {
	portfolio *services.PortfolioService
	snapshots *services.SnapshotService
}

func NewAccountHandler(portfolio *services.PortfolioService, snapshots *services.SnapshotService) *AccountHandler {
	return &AccountHandler{
		portfolio: portfolio,
		snapshots: snapshots,
	}
}

// GetAccounts returns every account with holdings and valuation figures in
// the base currency.
func (h *AccountHandler) GetAccounts(c *gin.Context) {
	views, err := h.portfolio.AccountViews()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req models.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account := models.Account{
		ID:   uuid.NewString(),
		Name: req.Name,
	}
	if err := database.GetDB().Create(&account).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	var req models.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()
	var account models.Account
	if err := db.First(&account, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	account.Name = req.Name
	if err := db.Save(&account).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, account)
}

// DeleteAccount removes an account and all of its holdings (owned, not
// shared), then re-records today's snapshot.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	db := database.GetDB()
	var account models.Account
	if err := db.First(&account, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Holding{}).Error; err != nil {
			return err
		}
		return tx.Delete(&account).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.snapshots.EnsureTodaySnapshot(); err != nil {
		log.Printf("Account handler: snapshot after delete failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"deleted": account.ID})
}
