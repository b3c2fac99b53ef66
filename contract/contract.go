//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-search/domain"
	"chat-search/domain/event"
	"chat-search/domain/search"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// RecordStore is the durable, append-only message storage.
type RecordStore interface {
	// Create persists the message together with its pending-publish marker.
	Create(ctx context.Context, message domain.Message) (domain.Message, error)
	FindByConversation(ctx context.Context, conversationID string, page domain.Page) ([]domain.Message, error)
}

// Outbox gives access to messages whose event has not been acknowledged yet.
type Outbox interface {
	PendingPublish(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Message, error)
	MarkPublished(ctx context.Context, message domain.Message) error
}

// EventPublisher returns only once the broker acknowledged the event.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, evt event.MessageCreated) error
	Close() error
}

// Delivery is one record handed to a consumer group member.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

// EventSubscriber is a consumer group member.
// Fetch blocks until a delivery is available or ctx is done.
// Commit must be called once the delivery has been processed.
type EventSubscriber interface {
	Fetch(ctx context.Context) (Delivery, error)
	Commit(ctx context.Context, delivery Delivery) error
	Close() error
}

// SearchIndex stores IndexDocuments keyed by ID with upsert semantics.
type SearchIndex interface {
	Upsert(ctx context.Context, doc domain.IndexDocument) error
	Search(ctx context.Context, query search.Query) ([]domain.IndexDocument, error)
}

// MessageIndexer never fails its caller, the outcome says what happened.
type MessageIndexer interface {
	Index(ctx context.Context, candidate domain.Message) domain.IndexOutcome
}

type DeadLetterStore interface {
	StoreDeadLetter(ctx context.Context, letter domain.DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error)
}

// Pinger is implemented by every backing dependency probed by the health monitor.
type Pinger interface {
	Ping(ctx context.Context) error
}
