package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/portfolio-tracker/internal/services"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// RefreshRates triggers a rate fetch. A provider failure is advisory: the
// previous table survives and the response says the refresh did not take.
func (h *SettingsHandler) RefreshRates(c *gin.Context) {
	force := c.Query("force") == "true" || c.Query("force") == "1"

	settings, refreshed, err := h.settings.RefreshRates(c.Request.Context(), force)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"refreshed": false,
			"error":     err.Error(),
			"settings":  settings,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refreshed": refreshed,
		"settings":  settings,
	})
}

type changeBaseRequest struct {
	BaseCurrency string `json:"base_currency" binding:"required"`
}

// ChangeBaseCurrency switches the settlement currency and rewrites history.
func (h *SettingsHandler) ChangeBaseCurrency(c *gin.Context) {
	var req changeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "base_currency is required"})
		return
	}

	result, err := h.settings.ChangeBaseCurrency(c.Request.Context(), req.BaseCurrency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
