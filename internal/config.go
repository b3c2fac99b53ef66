package internal

import (
	"chat-search/errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	LogFile        string `env:"LOG_FILE"`
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=8080"`
	GrpcPort       int    `env:"GRPC_PORT,default=9090"`
	DebugPort      int    `env:"DEBUG_PORT,default=8081"`

	Broker             string `env:"BROKER,default=memory"`
	KafkaBrokers       string `env:"KAFKA_BROKERS,default=localhost:9092"`
	KafkaTopic         string `env:"KAFKA_TOPIC,default=message.created"`
	KafkaConsumerGroup string `env:"KAFKA_CONSUMER_GROUP,default=message-indexer"`
	MemoryPartitions   int    `env:"MEMORY_PARTITIONS,default=4"`
	NumberOfConsumers  int    `env:"NUMBER_OF_CONSUMERS,default=2"`
	EnableAPI          bool   `env:"ENABLE_API,default=true"`
	EnableIndexer      bool   `env:"ENABLE_INDEXER,default=true"`

	PublishTimeout    time.Duration `env:"PUBLISH_TIMEOUT,default=5s"`
	IndexTimeout      time.Duration `env:"INDEX_TIMEOUT,default=5s"`
	SearchTimeout     time.Duration `env:"SEARCH_TIMEOUT,default=3s"`
	IndexMaxAttempts  int           `env:"INDEX_MAX_ATTEMPTS,default=3"`
	IndexRetryBackoff time.Duration `env:"INDEX_RETRY_BACKOFF,default=500ms"`
	OutboxInterval    time.Duration `env:"OUTBOX_INTERVAL,default=5s"`
	OutboxGracePeriod time.Duration `env:"OUTBOX_GRACE_PERIOD,default=10s"`
	OutboxBatchSize   int           `env:"OUTBOX_BATCH_SIZE,default=100"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=10s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	MaxPageLimit      int           `env:"MAX_PAGE_LIMIT,default=100"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

const (
	BrokerMemory = "memory"
	BrokerKafka  = "kafka"
)

// ValidateBroker accepts the supported BROKER values.
func ValidateBroker(name string) error {
	switch name {
	case BrokerMemory, BrokerKafka:
		return nil
	}
	return fmt.Errorf("%w: BROKER got %q", errors.ErrUnknownBroker, name)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: CHARACTER_REPLACEMENT got %q", errors.ErrCharacterNotRune, str)
	}
	return r[0], nil
}

// SplitList parses a comma separated variable, ignoring blanks.
func SplitList(str string) []string {
	var out []string
	for _, item := range strings.Split(str, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
