package main

import (
	"log"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/mev-inspect-engine/internal/api"
	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/engine"
	"github.com/rawblock/mev-inspect-engine/internal/feed"
	"github.com/rawblock/mev-inspect-engine/internal/shadow"
	"github.com/rawblock/mev-inspect-engine/internal/storage"
)

func main() {
	log.Println("Starting MEV Inspection Engine...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbUrl := requireEnv("DATABASE_URL")

	var store storage.Store
	pgStore, err := storage.Connect(dbUrl)
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL, continuing without persisting classifications. Error: %v", err)
	} else {
		defer pgStore.Close()
		if err := pgStore.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
		store = pgStore
	}

	cfg := config.LoadFromEnv()

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	eng := engine.New(cfg, store, nil, nil, api.BroadcastBundleAlert(wsHub))

	// Shadow comparison is optional: it compares the live thresholds
	// against an experimental config (overridable via MEV_SHADOW_FILTER_THRESHOLD)
	// on every candidate bundle, without affecting what gets persisted or
	// alerted on. With no DB pool, divergences are still logged but not
	// recorded for a later drift report.
	shadowCfg := cfg
	shadowCfg.FilterThreshold = getEnvIntOrDefault("MEV_SHADOW_FILTER_THRESHOLD", cfg.FilterThreshold)
	var pool *pgxpool.Pool
	if pgStore != nil {
		pool = pgStore.GetPool()
	}
	snapshotID := int64(getEnvIntOrDefault("MEV_SHADOW_SNAPSHOT_ID", 1))
	shadowRunner := shadow.NewShadowRunner(pool, snapshotID, cfg, shadowCfg)
	eng.SetShadowRunner(shadowRunner)

	// A block feed needs a BlockSource collaborator (trace/RPC provider)
	// supplied by the deployment; without one the engine still serves
	// bundle-query and health endpoints against whatever storage already
	// holds, matching the teacher's own RPC-unavailable fallback.
	var f *feed.Feed
	log.Println("No block source configured — running in API-only mode (no live/backfill scanning)")

	r := api.SetupRouter(store, f, eng, wsHub, shadowRunner)

	port := getEnvOrDefault("PORT", "5339")

	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvIntOrDefault returns the env var parsed as an int, or a safe
// default if unset or unparseable.
func getEnvIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
