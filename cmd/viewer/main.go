package main

import (
	"chat-search/infrastructure/storage"
	"chat-search/internal"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger, closeLog := internal.NewLogger(config.LogLevel, config.LogFile)
	defer func() { _ = closeLog() }()

	// 2. Open Badger in Read-Only mode
	// BypassLockGuard allows opening while the server holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Start Debug Server Only
	// No pipeline runs here, stats only describe the viewer itself
	viewerStats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}
	server := internal.NewDebugServer(logger, db, config.DebugPort, storage.Prefixes, internal.StorageMapper, viewerStats)
	server.Start()
	fmt.Printf("Viewer started at http://localhost:%d/inspect\n", config.DebugPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
