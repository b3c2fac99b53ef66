package main

import (
	"chat-search/contract"
	"chat-search/infrastructure/broker/kafka"
	"chat-search/infrastructure/broker/memory"
	"chat-search/infrastructure/grpc/health"
	"chat-search/infrastructure/http/handler"
	"chat-search/infrastructure/index"
	"chat-search/infrastructure/storage"
	"chat-search/internal"
	"chat-search/moderation"
	"chat-search/runtime"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, blocks until a signal or a server failure,
// then shuts down in reverse order so deferred closes always run.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env file is fine, the environment wins anyway.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	if err := internal.ValidateBroker(config.Broker); err != nil {
		return exitConfig, err
	}

	logger, closeLog := internal.NewLogger(config.LogLevel, config.LogFile)
	defer func() { _ = closeLog() }()

	ctx := context.Background()

	// 2. Record store (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	records := storage.NewMessageRepository(db, logger)
	outbox := storage.NewOutboxRepository(db, logger)
	deadLetters := storage.NewDeadLetterRepository(db, logger)

	// 3. Search index (Bluge)
	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(filepath.Join(config.BlugeFilepath, index.Name)))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()
	searchIndex := index.NewBlugeIndex(blugeWriter, logger)

	// 4. Broker
	var (
		publisher   contract.EventPublisher
		brokerCheck contract.Pinger
		subscribe   runtime.SubscriberFactory
	)
	switch config.Broker {
	case internal.BrokerKafka:
		brokers := internal.SplitList(config.KafkaBrokers)
		kafkaPublisher := kafka.NewPublisher(logger, brokers)
		publisher, brokerCheck = kafkaPublisher, kafkaPublisher
		subscribe = func(topic, groupID string) contract.EventSubscriber {
			return kafka.NewSubscriber(brokers, topic, groupID)
		}
	default:
		broker := memory.NewBroker(logger, config.MemoryPartitions)
		publisher, brokerCheck = broker, broker
		subscribe = func(topic, groupID string) contract.EventSubscriber {
			return broker.Subscribe(topic, groupID)
		}
	}
	defer func() {
		logger.Info("Closing broker...")
		_ = publisher.Close()
	}()

	// 5. Content sanitizer
	censor, err := moderation.NewCensor(internal.SplitList(config.CensoredWords), charReplacement, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("censor error: %w", err)
	}

	// 6. Pipeline
	healthServer := health.NewServer(logger)
	pipeline := runtime.NewPipeline(logger, runtime.Settings{
		Topic:             config.KafkaTopic,
		ConsumerGroup:     config.KafkaConsumerGroup,
		NumberOfConsumers: config.NumberOfConsumers,
		EnableAPI:         config.EnableAPI,
		EnableIndexer:     config.EnableIndexer,
		PublishTimeout:    config.PublishTimeout,
		IndexTimeout:      config.IndexTimeout,
		SearchTimeout:     config.SearchTimeout,
		IndexMaxAttempts:  config.IndexMaxAttempts,
		IndexRetryBackoff: config.IndexRetryBackoff,
		OutboxInterval:    config.OutboxInterval,
		OutboxGracePeriod: config.OutboxGracePeriod,
		OutboxBatchSize:   config.OutboxBatchSize,
		MetricInterval:    config.MetricInterval,
		RestartInterval:   config.RestartInterval,
	}, runtime.Dependencies{
		Records:     records,
		Outbox:      outbox,
		Index:       searchIndex,
		DeadLetters: deadLetters,
		Publisher:   publisher,
		Subscribe:   subscribe,
		Sanitizer:   moderation.NewSanitizer(censor, logger),
		Health:      healthServer.Reporter(),
		Checks: map[string]contract.Pinger{
			health.ServiceRecordStore: records,
			health.ServiceSearchIndex: searchIndex,
			health.ServiceBroker:      brokerCheck,
		},
	})

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugServer := internal.NewDebugServer(logger, db, config.DebugPort, storage.Prefixes, internal.StorageMapper,
			func() map[string]any {
				return map[string]any{"metrics": pipeline.Metrics.Snapshot()}
			})
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		debugServer.Start()
		defer func() { _ = debugServer.Shutdown(context.Background()) }()
	}

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		logger.Info("Starting pipeline...")
		pipeline.Run(ctx)
	}()

	// 8. gRPC health server
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	grpcListener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		stop()
		<-pipelineDone
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	go func() {
		if err := healthServer.Serve(grpcListener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 9. HTTP API
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           handler.New(logger, pipeline.Messages, pipeline.Search, pipeline.Metrics.Snapshot, config.MaxPageLimit).NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if config.EnableAPI {
		go func() {
			logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	// 10. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
		stop()
	}

	// 11. Final Cleanup
	logger.Info("Shutting down gracefully...", "timeout", config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if config.EnableAPI {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server did not stop cleanly", "error", err)
		}
	}
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("Workers still running after shutdown timeout")
	}
	healthServer.Stop()
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
