package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrPersistence      = fmt.Errorf("record store failure")
	ErrDuplicateMessage = fmt.Errorf("message id already exists")
	ErrPublish          = fmt.Errorf("event publish failure")
	ErrMalformedEvent   = fmt.Errorf("malformed event payload")
	ErrInvalidCandidate = fmt.Errorf("index candidate is missing required fields")
	ErrIndexingBackend  = fmt.Errorf("search index upsert failure")
	ErrSearchBackend    = fmt.Errorf("search backend failure")
	ErrUnknownBroker    = fmt.Errorf("unknown broker")
	ErrSubscriberClosed = fmt.Errorf("subscriber closed")
	ErrBrokerClosed     = fmt.Errorf("broker closed")
	ErrNotAssigned      = fmt.Errorf("partition is not assigned to this member")
	ErrCharacterNotRune = fmt.Errorf("character replacement must be a single character")
)
