package storage

import (
	"bytes"
	"chat-search/domain"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Key layout:
//
//	msg:id:{id}                                  -> message record (unique on id)
//	msg:conv:{conversation}:{timestamp}:{id}     -> id (ordering index, read in reverse)
//	outbox:{createdAt}:{id}                      -> id (pending-publish marker)
//	deadletter:{at}:{id}                         -> dead letter record
//
// Conversation ids are query-escaped so that a ':' never leaks into another prefix.
// Instants are 20-digit zero-padded so lexicographical order is chronological.
const (
	messagePrefix      = "msg:id:"
	conversationPrefix = "msg:conv:"
	outboxPrefix       = "outbox:"
	deadLetterPrefix   = "deadletter:"
)

func messageKey(id string) []byte {
	return []byte(messagePrefix + id)
}

func conversationScanPrefix(conversationID string) []byte {
	return []byte(conversationPrefix + url.QueryEscape(conversationID) + ":")
}

func conversationKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s",
		conversationScanPrefix(message.ConversationID),
		sortableInstant(message.Timestamp),
		message.ID,
	))
}

func outboxKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", outboxPrefix, sortableInstant(message.CreatedAt), message.ID))
}

func deadLetterKey(letter domain.DeadLetter) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", deadLetterPrefix, sortableInstant(letter.At), letter.MessageID))
}

// sortableInstant flips the sign bit so that instants before 1970 still sort first.
func sortableInstant(t time.Time) uint64 {
	return uint64(t.UnixNano()) ^ (1 << 63)
}

// instantFromKey extracts the padded instant following prefix.
func instantFromKey(key []byte, prefix string) (uint64, bool) {
	rest := strings.TrimPrefix(string(key), prefix)
	padded, _, found := strings.Cut(rest, ":")
	if !found {
		return 0, false
	}
	v, err := strconv.ParseUint(padded, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// reverseSeekKey is the first key after every key sharing prefix.
func reverseSeekKey(prefix []byte) []byte {
	return append(bytes.Clone(prefix), 0xFF)
}
