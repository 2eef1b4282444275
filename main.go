package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"newsbuzz/config"
	"newsbuzz/enrich"
	"newsbuzz/notify"
	"newsbuzz/pipeline"
	"newsbuzz/store"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	defaultSources := "sources.yaml"
	if v := os.Getenv("SOURCES_FILE"); v != "" {
		defaultSources = v
	}
	configPath := flag.String("config", defaultSources, "path to the source inventory")
	interval := flag.Duration("interval", 0, "rerun period; 0 runs once and exits")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	notifier, err := notify.New(cfg.BotToken, cfg.ChatID, cfg.Watermark)
	if err != nil {
		log.Fatalf("telegram setup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enricher := enrich.New(cfg.CohereKey)
	mirror := store.NewMirror(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
	p := pipeline.New(cfg, notifier, enricher, mirror)

	log.Printf("Starting news pipeline with %d source(s), %d worker(s)", len(cfg.Sources), cfg.Workers)

	run := func() {
		if err := p.RunOnce(ctx); err != nil {
			log.Printf("Run finished with errors: %v", err)
		}
	}

	run()
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down")
			return
		case <-ticker.C:
			run()
		}
	}
}
