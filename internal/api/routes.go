package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/portfolio-tracker/internal/api/handlers"
	"github.com/codyseavey/portfolio-tracker/internal/metrics"
	"github.com/codyseavey/portfolio-tracker/internal/services"
)

func SetupRouter(portfolioService *services.PortfolioService, snapshotService *services.SnapshotService, settingsService *services.SettingsService, quoteService *services.QuoteService, quoteWorker *services.QuoteWorker, backupService *services.BackupService) *gin.Engine {
	router := gin.Default()

	// Get frontend dist path from env
	frontendPath := os.Getenv("FRONTEND_DIST_PATH")
	serveFrontend := frontendPath != "" && dirExists(frontendPath)

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))
	router.Use(requestMetrics())

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(portfolioService, snapshotService)
	holdingHandler := handlers.NewHoldingHandler(snapshotService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, snapshotService)
	quoteHandler := handlers.NewQuoteHandler(quoteService, quoteWorker)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	backupHandler := handlers.NewBackupHandler(backupService, snapshotService)

	// API routes
	api := router.Group("/api")
	{
		// Account and holding routes
		accounts := api.Group("/accounts")
		{
			accounts.GET("", accountHandler.GetAccounts)
			accounts.POST("", accountHandler.CreateAccount)
			accounts.PUT("/:id", accountHandler.UpdateAccount)
			accounts.DELETE("/:id", accountHandler.DeleteAccount)
			accounts.POST("/:id/holdings", holdingHandler.CreateHolding)
			accounts.PUT("/:id/holdings/:holdingId", holdingHandler.UpdateHolding)
			accounts.DELETE("/:id/holdings/:holdingId", holdingHandler.DeleteHolding)
		}

		// Portfolio routes
		api.GET("/summary", portfolioHandler.GetSummary)
		api.GET("/distribution", portfolioHandler.GetDistribution)
		api.GET("/history", portfolioHandler.GetHistory)
		api.GET("/history/series", portfolioHandler.GetHistorySeries)
		api.GET("/history/chart", portfolioHandler.GetHistoryChart)

		// Quote lookup for the holding form
		api.GET("/quote", quoteHandler.GetQuote)

		// Refresh routes
		refresh := api.Group("/refresh")
		{
			refresh.POST("/quotes", quoteHandler.RefreshQuotes)
			refresh.POST("/rates", settingsHandler.RefreshRates)
			refresh.GET("/status", quoteHandler.GetRefreshStatus)
		}

		// Settings routes
		settings := api.Group("/settings")
		{
			settings.GET("", settingsHandler.GetSettings)
			settings.PUT("/base-currency", settingsHandler.ChangeBaseCurrency)
		}

		// Backup routes
		api.GET("/backup", backupHandler.Backup)
		api.POST("/restore", backupHandler.Restore)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(frontendPath, "index.html")

		// Serve static assets
		router.Static("/assets", filepath.Join(frontendPath, "assets"))

		// Serve other static files (favicon, etc.)
		router.StaticFile("/vite.svg", filepath.Join(frontendPath, "vite.svg"))

		// Serve root index.html
		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			path := c.Request.URL.Path

			// Don't serve index.html for API routes
			if strings.HasPrefix(path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}

			// Serve index.html for SPA routing
			c.File(indexPath)
		})
	}

	return router
}

// requestMetrics records request counts and latency per route. The route
// template is used rather than the raw path so IDs do not explode the
// label cardinality.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
