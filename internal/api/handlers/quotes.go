package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/portfolio-tracker/internal/services"
)

type QuoteHandler struct {
	quotes *services.QuoteService
	worker *services.QuoteWorker
}

func NewQuoteHandler(quotes *services.QuoteService, worker *services.QuoteWorker) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		worker: worker,
	}
}

// GetQuote resolves one code for the holding form.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	quote, err := h.quotes.Lookup(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "quote lookup failed"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// RefreshQuotes triggers a refresh batch over every holding.
func (h *QuoteHandler) RefreshQuotes(c *gin.Context) {
	force := c.Query("force") == "true" || c.Query("force") == "1"

	result, err := h.worker.RefreshAll(c.Request.Context(), force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRefreshStatus reports the worker's timing for the status line.
func (h *QuoteHandler) GetRefreshStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.Status())
}
