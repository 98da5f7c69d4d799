package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/promptops/prompt-gateway/internal/admin"
	"github.com/promptops/prompt-gateway/internal/api"
	"github.com/promptops/prompt-gateway/internal/auth"
	"github.com/promptops/prompt-gateway/internal/cache"
	"github.com/promptops/prompt-gateway/internal/config"
	"github.com/promptops/prompt-gateway/internal/db"
	"github.com/promptops/prompt-gateway/internal/pipeline"
	"github.com/promptops/prompt-gateway/internal/provider"
	"github.com/promptops/prompt-gateway/internal/ratelimit"
	"github.com/promptops/prompt-gateway/internal/router"
	"github.com/promptops/prompt-gateway/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Initialize database
	database, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	// Initialize rate limiter
	limiter, err := ratelimit.NewRateLimiter(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to initialize rate limiter:", err)
	}
	defer limiter.Close()

	// Initialize response cache
	respCache, err := cache.NewResponseCache(cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		log.Fatal("Failed to initialize response cache:", err)
	}

	// Build the ordered provider credential pool
	pool, err := buildPool(cfg)
	if err != nil {
		log.Fatal("Failed to build provider pool:", err)
	}
	log.Printf("Provider pool ready with %d credential(s)", len(pool))

	modelRouter := router.New(pool, cfg.ProviderTimeout)

	// Telemetry writer (async, best-effort)
	recorder := telemetry.NewLogger(database)
	defer recorder.Close()

	// Execution pipeline
	pipe := pipeline.New(database, limiter, respCache, modelRouter, recorder, pipeline.Options{
		ExecuteLimit: cfg.ExecuteLimit,
		CLILimit:     cfg.CLILimit,
		RateWindow:   cfg.RateWindow,
		Timeout:      cfg.PipelineTimeout,
	})

	// Initialize router
	r := mux.NewRouter()

	// Auth middleware
	authMiddleware := auth.NewMiddleware(database, cfg.JWTSecret)

	// Public routes
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/auth/token", tokenHandler(database, cfg.JWTSecret)).Methods("POST")

	// Admin routes (usage analytics, cache stats)
	adminHandler := admin.NewAdminHandler(database)
	adminHandler.RegisterRoutes(r)

	// Protected execution routes
	handler := api.NewHandler(pipe)
	r.Handle("/api/v1/execute", authMiddleware.Authenticate(http.HandlerFunc(handler.Execute))).Methods("POST")
	r.Handle("/api/v1/cli", authMiddleware.Authenticate(http.HandlerFunc(handler.CLI))).Methods("POST")

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	log.Printf("Execution API available at /api/v1/execute and /api/v1/cli")
	if err := http.ListenAndServe(":"+cfg.ServerPort, r); err != nil {
		log.Fatal("Server failed:", err)
	}
}

// buildPool pairs the Gemini key pool with OpenAI keys by position. Pool
// order is failover order.
func buildPool(cfg *config.Config) ([]router.Executor, error) {
	ctx := context.Background()

	var pool []router.Executor
	for i, geminiKey := range cfg.GeminiAPIKeys {
		openaiKey := ""
		if i < len(cfg.OpenAIAPIKeys) {
			openaiKey = cfg.OpenAIAPIKeys[i]
		}

		cred, err := provider.NewCredential(ctx, fmt.Sprintf("pool-%d", i), geminiKey, openaiKey)
		if err != nil {
			return nil, err
		}
		pool = append(pool, cred)
	}

	return pool, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func tokenHandler(database *db.DB, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey string `json:"api_key"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		cred, err := database.GetCredentialByKey(r.Context(), req.APIKey)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				log.Printf("Credential lookup failed: %v", err)
			}
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		if cred.Revoked {
			http.Error(w, "API key has been revoked", http.StatusForbidden)
			return
		}

		token, err := auth.GenerateToken(cred.ID, cred.Key, jwtSecret)
		if err != nil {
			log.Printf("Token generation failed: %v", err)
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	}
}
