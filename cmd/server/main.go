package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codyseavey/portfolio-tracker/internal/api"
	"github.com/codyseavey/portfolio-tracker/internal/database"
	"github.com/codyseavey/portfolio-tracker/internal/services"
)

func main() {
	// Load .env if present; real env vars win
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./portfolio_tracker.db"
	}

	// Initialize database
	if err := database.Initialize(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := database.GetDB()

	// Initialize services
	quoteService := services.NewQuoteService()
	rateService := services.NewRateService()
	portfolioService := services.NewPortfolioService(db)
	snapshotService := services.NewSnapshotService(db, portfolioService)
	settingsService := services.NewSettingsService(db, rateService, snapshotService)
	quoteWorker := services.NewQuoteWorker(db, quoteService, snapshotService)
	backupService := services.NewBackupService(db)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start quote worker in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in quote worker: %v - restarting in 30 seconds", r)
					}
				}()
				quoteWorker.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Quote worker restarting after panic recovery...")
			}
		}
	}()

	// Start snapshot service in background
	go snapshotService.Start(ctx)

	// Refresh FX rates on startup and then periodically; failures keep the
	// previous table so the app stays usable offline
	go func() {
		refresh := func() {
			refreshCtx, refreshCancel := context.WithTimeout(ctx, 30*time.Second)
			defer refreshCancel()
			if _, _, err := settingsService.RefreshRates(refreshCtx, false); err != nil {
				log.Printf("Rate refresh failed: %v", err)
			}
		}
		refresh()

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	// Setup router
	router := api.SetupRouter(portfolioService, snapshotService, settingsService, quoteService, quoteWorker, backupService)

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the background workers
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
