package domain

import (
	"time"
)

type IndexStatus int

const (
	IndexStatusIndexed IndexStatus = iota
	// IndexStatusInvalid candidates are dropped, never retried.
	IndexStatusInvalid
	// IndexStatusBackendFailure candidates may be retried by the caller.
	IndexStatusBackendFailure
)

func (s IndexStatus) String() string {
	switch s {
	case IndexStatusIndexed:
		return "indexed"
	case IndexStatusInvalid:
		return "invalid"
	case IndexStatusBackendFailure:
		return "backend_failure"
	default:
		return "unknown"
	}
}

// IndexOutcome is the explicit result of one indexing attempt.
type IndexOutcome struct {
	ID     string
	Status IndexStatus
	Err    error
}

func (o IndexOutcome) Retryable() bool {
	return o.Status == IndexStatusBackendFailure
}

// DeadLetter keeps an event that exhausted its indexing attempts.
type DeadLetter struct {
	MessageID string
	Topic     string
	Partition int
	Offset    int64
	Payload   []byte
	Reason    string
	Attempts  int
	At        time.Time
}
