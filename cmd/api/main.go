package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexgsol/hmva/internal/api"
	"github.com/nexgsol/hmva/internal/batch"
	"github.com/nexgsol/hmva/internal/config"
	"github.com/nexgsol/hmva/internal/db"
	"github.com/nexgsol/hmva/internal/queue"
	"github.com/nexgsol/hmva/internal/script"
	"github.com/nexgsol/hmva/internal/services"
	"github.com/nexgsol/hmva/internal/worker"
)

func main() {
	log.Println("Starting HMVA API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Working directories for uploads and result artifacts
	for _, dir := range []string{cfg.UploadDir, cfg.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// The generator serves both the sync paragraph endpoint and the worker.
	generator := script.NewGenerator(cfg.OpenAIKey, cfg.OpenAIModel)

	// Create API handler
	handler := api.NewHandler(cfg, database, q, generator)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		sheets := services.NewSheetsService(cfg.GoogleAPIToken)
		collector := batch.NewCollector(sheets)
		tts := services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID)
		heygen := services.NewHeyGenService(cfg.HeyGenKey)
		airtable := services.NewAirtableService(cfg.AirtableToken, cfg.AirtableBaseID, cfg.AirtableTable)
		drive := services.NewDriveService(cfg.GoogleAPIToken, cfg.GDriveFolderID)

		w := worker.New(cfg, database, q, generator, collector, tts, heygen, airtable, drive)

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if workerCancel != nil {
		workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
