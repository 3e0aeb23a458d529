package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"voipgate-backend/internal/auth"
	"voipgate-backend/internal/cache"
	"voipgate-backend/internal/config"
	"voipgate-backend/internal/dids"
	"voipgate-backend/internal/response"
	"voipgate-backend/internal/sms"
	"voipgate-backend/internal/storage"
	"voipgate-backend/internal/voicemail"
	"voipgate-backend/internal/voipms"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Database connection (with retries)
	var db *sqlx.DB
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("postgres", cfg.DSN())
		if err == nil {
			break
		}
		log.Printf("DB connection attempt %d failed: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	store := storage.NewStorage(db)

	// Rate limiting is optional; without redis the auth endpoints are open.
	var limiter cache.Client
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		limiter = redisClient
	} else {
		log.Println("WARN REDIS_URL not set; auth rate limiting disabled")
	}

	// Upstream VoIP.ms client
	api := voipms.NewClient(cfg.VoipmsAPIURL, cfg.VoipmsUsername, cfg.VoipmsPassword, cfg.APITimeout)

	// HTTP handlers
	authHandler := auth.NewHandler(store, api, limiter)
	smsHandler := sms.NewHandler(api)
	voicemailHandler := voicemail.NewHandler(api)
	didsHandler := dids.NewHandler(api)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Route("/api/auth", authHandler.RegisterRoutes)
	r.Route("/api/sms", smsHandler.RegisterRoutes)
	r.Route("/api/voicemail", voicemailHandler.RegisterRoutes)
	r.Route("/api/dids", didsHandler.RegisterRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on :%s", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
