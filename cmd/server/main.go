// @title           Voice Clone TTS Backend API
// @version         1.0.0
// @description     Backend API for voice-clone text-to-speech generation: quota-gated request submission, asynchronous worker dispatch, queue status polling with realtime change notification, and post-hoc feedback.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"voiceclone-backend/internal/config"
	"voiceclone-backend/internal/database"
	"voiceclone-backend/internal/handlers"
	"voiceclone-backend/internal/middleware"
	"voiceclone-backend/internal/supabase"
	"voiceclone-backend/internal/usage"
	"voiceclone-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required (Supabase PostgreSQL connection string)")
	}

	// Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}
	storageClient := supabase.NewStorageClient(supabaseClient, cfg.SupabaseStorageBucket)

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database client: %v", err)
	}
	defer dbClient.Close()

	// Run migrations
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: Failed to initialize migrator: %v", err)
	} else {
		defer migrator.Close()
		if err := migrator.Run(); err != nil {
			log.Printf("Warning: Migration failed: %v", err)
		} else {
			log.Println("Migrations completed successfully")
		}
	}

	// Usage gate
	gate, err := usage.NewGate(dbClient, cfg.DailyGenerationLimit, cfg.UsageTimezone)
	if err != nil {
		log.Fatalf("Failed to initialize usage gate: %v", err)
	}

	// External TTS worker
	workerClient := worker.NewClient(cfg.TTSWorkerURL, cfg.TTSWorkerKey)

	// Handlers
	ttsHandler := handlers.NewTTSHandler(dbClient, gate, workerClient, storageClient)
	statusHandler := handlers.NewStatusHandler(dbClient, cfg.SecondsPerJob)
	feedbackHandler := handlers.NewFeedbackHandler(dbClient)
	webhookHandler := handlers.NewWebhookHandler(cfg, dbClient)

	// Setup router
	router := gin.Default()

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")

	// Generation requires an authenticated session
	authed := api.Group("")
	authed.Use(middleware.RequireAuth(cfg))
	authed.POST("/tts/start", ttsHandler.Start)
	authed.GET("/tts/:request_id/status", statusHandler.GetStatus)

	// Feedback resolves identity per-request: authenticated user id when a
	// valid token is present, explicit session id otherwise
	fb := api.Group("")
	fb.Use(middleware.OptionalAuth(cfg))
	fb.POST("/feedback", feedbackHandler.Create)
	fb.GET("/feedback", feedbackHandler.Get)
	fb.PUT("/feedback", feedbackHandler.Update)
	fb.POST("/site-feedback", feedbackHandler.CreateSite)

	// Worker completion callback (no session auth, uses webhook token)
	router.POST("/api/v1/webhooks/tts", webhookHandler.HandleWebhook)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
