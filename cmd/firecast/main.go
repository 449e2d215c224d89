package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/lox/firecast/internal/api"
	"github.com/lox/firecast/internal/config"
	"github.com/lox/firecast/internal/ingest"
	"github.com/lox/firecast/internal/store"
	"github.com/lox/firecast/internal/wxapi"
)

func main() {
	cfg, err := config.Load(os.Args[1:], ".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Printf("Warning: %v, using UTC", err)
		loc = time.UTC
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create data dir: %v", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	clock := clockwork.NewRealClock()
	st := store.New(db, clock)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	client := wxapi.NewClient(wxapi.Config{
		BaseURL:         cfg.APIURL,
		Token:           cfg.APIToken,
		Timeout:         cfg.APITimeout,
		MaxRetryElapsed: cfg.APIMaxRetry,
		ArchivePayloads: cfg.ArchivePayloads,
	}, st)

	dir := ingest.NewDirectory(client, clock, 12*time.Hour)
	scheduler := ingest.NewScheduler(dir, st, clock, cfg.PayloadDays)
	server := api.NewServer(st, client, dir, api.Options{
		Addr:        cfg.Listen,
		Location:    loc,
		Clock:       clock,
		IncludeBias: cfg.IncludeBias,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go scheduler.Run(ctx)

	log.Printf("starting server on %s", cfg.Listen)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
