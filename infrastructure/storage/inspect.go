package storage

import (
	"fmt"
	"strings"
	"time"
)

// Entry is a human readable view of one raw badger entry.
type Entry struct {
	Key      string
	Kind     string
	EntityID string
	At       string
	Detail   string
}

// Prefixes lists every key family, in the order shown by the inspectors.
var Prefixes = []string{messagePrefix, conversationPrefix, outboxPrefix, deadLetterPrefix}

// DescribeEntry decodes a raw key/value pair written by the repositories of this package.
func DescribeEntry(key, value []byte) Entry {
	k := string(key)
	entry := Entry{Key: k, Kind: "RAW", EntityID: "-", At: "-", Detail: fmt.Sprintf("Size: %d bytes", len(value))}

	switch {
	case strings.HasPrefix(k, messagePrefix):
		entry.Kind = "MESSAGE"
		message, err := unmarshalMessage(value)
		if err != nil {
			entry.Detail = "Error: " + err.Error()
			return entry
		}
		entry.EntityID = message.ID
		entry.At = message.Timestamp.Format(time.RFC3339)
		entry.Detail = fmt.Sprintf("[%s] %s: %s", message.ConversationID, message.SenderID, message.Content)
	case strings.HasPrefix(k, conversationPrefix):
		entry.Kind = "CONVERSATION"
		entry.EntityID = string(value)
		escaped, _, _ := strings.Cut(strings.TrimPrefix(k, conversationPrefix), ":")
		entry.At = formatKeyInstant(key, conversationPrefix+escaped+":")
		entry.Detail = "ordering index"
	case strings.HasPrefix(k, outboxPrefix):
		entry.Kind = "OUTBOX"
		entry.EntityID = string(value)
		entry.At = formatKeyInstant(key, outboxPrefix)
		entry.Detail = "pending publish"
	case strings.HasPrefix(k, deadLetterPrefix):
		entry.Kind = "DEADLETTER"
		letter, err := unmarshalDeadLetter(value)
		if err != nil {
			entry.Detail = "Error: " + err.Error()
			return entry
		}
		entry.EntityID = letter.MessageID
		entry.At = letter.At.Format(time.RFC3339)
		entry.Detail = fmt.Sprintf("%s/%d@%d after %d attempts: %s",
			letter.Topic, letter.Partition, letter.Offset, letter.Attempts, letter.Reason)
	}
	return entry
}

func formatKeyInstant(key []byte, prefix string) string {
	v, ok := instantFromKey(key, prefix)
	if !ok {
		return "-"
	}
	return time.Unix(0, int64(v^(1<<63))).UTC().Format(time.RFC3339)
}
