package main

import (
	"context"
	"flag"
	"log"

	"onchain-ai-assistant/internal/config"
	"onchain-ai-assistant/internal/infra/db/postgres"
)

// Creates (or wipes, with -reset) the session tables for a fresh
// environment.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	reset := flag.Bool("reset", false, "truncate existing session data")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url is required")
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("[1/2] Ensuring schema...")
	_, err = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS chat_sessions (
    id                TEXT PRIMARY KEY,
    model             TEXT NOT NULL,
    status            TEXT NOT NULL,
    turn_count        INT NOT NULL DEFAULT 0,
    total_cost_micros BIGINT NOT NULL DEFAULT 0,
    start_time        TIMESTAMPTZ NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id         TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    encrypted  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id);
`)
	if err != nil {
		log.Fatalf("failed to create tables: %v", err)
	}

	if *reset {
		log.Println("[2/2] Wiping existing session data...")
		if _, err := pool.Exec(ctx, `TRUNCATE chat_sessions, chat_messages CASCADE;`); err != nil {
			log.Fatalf("failed to truncate tables: %v", err)
		}
	} else {
		log.Println("[2/2] Keeping existing data (use -reset to wipe)")
	}

	log.Println("--- Setup complete ---")
}
