package storage

import (
	"chat-search/domain"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Records are stored with the protobuf wire format, field numbers below must never be reused.
const (
	messageFieldID             protowire.Number = 1
	messageFieldConversationID protowire.Number = 2
	messageFieldSenderID       protowire.Number = 3
	messageFieldContent        protowire.Number = 4
	messageFieldTimestamp      protowire.Number = 5
	messageFieldMetadata       protowire.Number = 6
	messageFieldCreatedAt      protowire.Number = 7
)

const (
	letterFieldMessageID protowire.Number = 1
	letterFieldTopic     protowire.Number = 2
	letterFieldPartition protowire.Number = 3
	letterFieldOffset    protowire.Number = 4
	letterFieldPayload   protowire.Number = 5
	letterFieldReason    protowire.Number = 6
	letterFieldAttempts  protowire.Number = 7
	letterFieldAt        protowire.Number = 8
)

func marshalMessage(message domain.Message) ([]byte, error) {
	var b []byte
	b = appendString(b, messageFieldID, message.ID)
	b = appendString(b, messageFieldConversationID, message.ConversationID)
	b = appendString(b, messageFieldSenderID, message.SenderID)
	b = appendString(b, messageFieldContent, message.Content)
	b = appendInstant(b, messageFieldTimestamp, message.Timestamp)
	b = appendInstant(b, messageFieldCreatedAt, message.CreatedAt)
	if len(message.Metadata) > 0 {
		metadata, err := structpb.NewStruct(message.Metadata)
		if err != nil {
			return nil, fmt.Errorf("metadata of message %s: %w", message.ID, err)
		}
		raw, err := proto.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, messageFieldMetadata, protowire.BytesType)
		b = protowire.AppendBytes(b, raw)
	}
	return b, nil
}

func unmarshalMessage(b []byte) (domain.Message, error) {
	var message domain.Message
	err := consumeFields(b, func(num protowire.Number, value []byte, varint uint64) error {
		switch num {
		case messageFieldID:
			message.ID = string(value)
		case messageFieldConversationID:
			message.ConversationID = string(value)
		case messageFieldSenderID:
			message.SenderID = string(value)
		case messageFieldContent:
			message.Content = string(value)
		case messageFieldTimestamp:
			message.Timestamp = decodeInstant(varint)
		case messageFieldCreatedAt:
			message.CreatedAt = decodeInstant(varint)
		case messageFieldMetadata:
			var metadata structpb.Struct
			if err := proto.Unmarshal(value, &metadata); err != nil {
				return fmt.Errorf("metadata: %w", err)
			}
			message.Metadata = metadata.AsMap()
		}
		return nil
	})
	return message, err
}

func marshalDeadLetter(letter domain.DeadLetter) []byte {
	var b []byte
	b = appendString(b, letterFieldMessageID, letter.MessageID)
	b = appendString(b, letterFieldTopic, letter.Topic)
	b = protowire.AppendTag(b, letterFieldPartition, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(letter.Partition))
	b = protowire.AppendTag(b, letterFieldOffset, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(letter.Offset))
	b = protowire.AppendTag(b, letterFieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, letter.Payload)
	b = appendString(b, letterFieldReason, letter.Reason)
	b = protowire.AppendTag(b, letterFieldAttempts, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(letter.Attempts))
	b = appendInstant(b, letterFieldAt, letter.At)
	return b
}

func unmarshalDeadLetter(b []byte) (domain.DeadLetter, error) {
	var letter domain.DeadLetter
	err := consumeFields(b, func(num protowire.Number, value []byte, varint uint64) error {
		switch num {
		case letterFieldMessageID:
			letter.MessageID = string(value)
		case letterFieldTopic:
			letter.Topic = string(value)
		case letterFieldPartition:
			letter.Partition = int(varint)
		case letterFieldOffset:
			letter.Offset = protowire.DecodeZigZag(varint)
		case letterFieldPayload:
			letter.Payload = append([]byte(nil), value...)
		case letterFieldReason:
			letter.Reason = string(value)
		case letterFieldAttempts:
			letter.Attempts = int(varint)
		case letterFieldAt:
			letter.At = decodeInstant(varint)
		}
		return nil
	})
	return letter, err
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInstant(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(t.UnixNano()))
}

func decodeInstant(v uint64) time.Time {
	return time.Unix(0, protowire.DecodeZigZag(v)).UTC()
}

// consumeFields walks a wire encoded record. Length-delimited fields are passed as value,
// varint fields as varint. Unknown wire types are skipped.
func consumeFields(b []byte, visit func(num protowire.Number, value []byte, varint uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			value, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if err := visit(num, value, 0); err != nil {
				return err
			}
			b = b[n:]
		case protowire.VarintType:
			varint, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if err := visit(num, nil, varint); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}
