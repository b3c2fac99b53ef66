package domain

// State is the forward only lifecycle of a message: Created, Published, Indexed.
// Any state may stay terminal if the next step never completes.
type State int

const (
	StateCreated State = iota
	StatePublished
	StateIndexed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePublished:
		return "published"
	case StateIndexed:
		return "indexed"
	default:
		return "unknown"
	}
}

// StoredMessage is the writer's result.
// PublishErr is set when the message is durable but its event is still pending.
type StoredMessage struct {
	Message    Message
	State      State
	PublishErr error
}

// Pending reports whether the publish step still has to be done by the outbox relay.
func (s StoredMessage) Pending() bool {
	return s.State == StateCreated
}
