// Package runtime assembles the write, index and search paths
// without containing business rules.
package runtime

import (
	"chat-search/contract"
	"chat-search/observability"
	"chat-search/runtime/workers"
	"chat-search/services"
	"context"
	"log/slog"
	"sync"
	"time"
)

// SubscriberFactory joins a consumer group, one call per consumer worker.
type SubscriberFactory func(topic, groupID string) contract.EventSubscriber

type Dependencies struct {
	Records     contract.RecordStore
	Outbox      contract.Outbox
	Index       contract.SearchIndex
	DeadLetters contract.DeadLetterStore
	Publisher   contract.EventPublisher
	Subscribe   SubscriberFactory
	Sanitizer   services.ContentSanitizer
	Health      workers.HealthReporter
	// Checks are probed by the health monitor, keyed by grpc health service name.
	Checks map[string]contract.Pinger
}

type Settings struct {
	Topic             string
	ConsumerGroup     string
	NumberOfConsumers int
	EnableAPI         bool
	EnableIndexer     bool
	PublishTimeout    time.Duration
	IndexTimeout      time.Duration
	SearchTimeout     time.Duration
	IndexMaxAttempts  int
	IndexRetryBackoff time.Duration
	OutboxInterval    time.Duration
	OutboxGracePeriod time.Duration
	OutboxBatchSize   int
	MetricInterval    time.Duration
	RestartInterval   time.Duration
}

// Pipeline owns the services and the supervised workers.
// The write side (MessageService, OutboxRelayWorker) runs when the API is enabled,
// the consumers when the indexer is enabled. Search is always available.
type Pipeline struct {
	Messages   *services.MessageService
	Indexer    *services.IndexerService
	Search     *services.SearchService
	Metrics    *observability.Metrics
	Supervisor *workers.Supervisor

	log         *slog.Logger
	mu          sync.Mutex
	subscribers []contract.EventSubscriber
}

func NewPipeline(log *slog.Logger, settings Settings, deps Dependencies) *Pipeline {
	metrics := observability.NewMetrics(log)
	p := &Pipeline{
		Messages: services.NewMessageService(log, deps.Records, deps.Outbox, deps.Publisher, metrics,
			settings.Topic, settings.PublishTimeout),
		Indexer:    services.NewIndexerService(log, deps.Index, deps.Sanitizer, metrics, settings.IndexTimeout),
		Search:     services.NewSearchService(log, deps.Index, metrics, settings.SearchTimeout),
		Metrics:    metrics,
		Supervisor: workers.NewSupervisor(log, settings.RestartInterval),
		log:        log,
	}

	if deps.Health != nil && settings.MetricInterval > 0 {
		p.Supervisor.Add(workers.NewHealthMonitoringWorker(log, deps.Health, metrics, settings.MetricInterval, deps.Checks))
	}
	if settings.EnableAPI && settings.OutboxInterval > 0 {
		p.Supervisor.Add(workers.NewOutboxRelayWorker(log, deps.Outbox, deps.Publisher, metrics, settings.Topic,
			settings.OutboxInterval, settings.OutboxGracePeriod, settings.OutboxBatchSize, settings.PublishTimeout))
	}
	if settings.EnableIndexer {
		for i := 0; i < max(settings.NumberOfConsumers, 1); i++ {
			subscriber := deps.Subscribe(settings.Topic, settings.ConsumerGroup)
			p.subscribers = append(p.subscribers, subscriber)
			p.Supervisor.Add(workers.NewConsumerWorker(log, subscriber, p.Indexer, deps.DeadLetters, metrics,
				settings.IndexMaxAttempts, settings.IndexRetryBackoff))
		}
	}
	return p
}

// Run blocks until ctx is done and every worker returned, then leaves the consumer group.
func (p *Pipeline) Run(ctx context.Context) {
	p.Supervisor.Run(ctx)
	p.closeSubscribers()
}

func (p *Pipeline) closeSubscribers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subscribers {
		if err := s.Close(); err != nil {
			p.log.Warn("Failed to close subscriber", "error", err)
		}
	}
	p.subscribers = nil
}
