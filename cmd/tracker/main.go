package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/form-automation/tracker/api/handlers"
	"github.com/form-automation/tracker/internal/db"
	"github.com/form-automation/tracker/internal/model"
	"github.com/form-automation/tracker/internal/repository"
	"github.com/form-automation/tracker/internal/tracker"
)

func main() {
	// Get configuration from environment
	port := getEnv("PORT", "8090")
	wsURL := getEnv("WS_URL", "ws://localhost:8080/ws/automation")
	userID := getEnv("USER_ID", "")
	dbPath := getEnv("DB_PATH", ":memory:")

	// Initialize database (in-memory by default, so history is session-scoped)
	database, err := db.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	// Initialize repository
	jobRepo := repository.NewJobRepository(database)

	// Initialize tracker
	jobTracker := tracker.New(tracker.Config{
		Endpoint:   wsURL,
		Repository: jobRepo,
		Callbacks: tracker.Callbacks{
			OnProgress: func(ev model.ProgressEvent) {
				log.Printf("Job %s: %s %.0f%% - %s", ev.JobID, ev.Phase, ev.Percentage, ev.Message)
			},
			OnComplete: func(jobID string) {
				log.Printf("Job %s completed", jobID)
			},
			OnError: func(jobID, errMsg string) {
				log.Printf("Job %s failed: %s", jobID, errMsg)
			},
			OnStatusChange: func(status tracker.Status) {
				log.Printf("Connection status: %s", status)
			},
		},
	})
	defer jobTracker.Close()

	// Connect immediately when a user id is configured; otherwise wait for
	// POST /api/connection.
	if userID != "" {
		if err := jobTracker.Connect(userID); err != nil {
			log.Fatalf("Failed to connect: %v", err)
		}
	}

	// Initialize handlers
	statusHandler := handlers.NewStatusHandler(jobTracker, jobRepo)

	// Initialize Gin router
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		statusHandler.RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down tracker...")
		jobTracker.Close()
		db.CloseDB()
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting status API on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
