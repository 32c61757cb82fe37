package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Producer tunes the booking events writer.
type Producer struct {
	MaxAttempts  int
	BatchTimeout time.Duration
	RequiredAcks int    // -1 all replicas, 0 none, 1 leader
	Compression  string // none, gzip, snappy, lz4, zstd
	Async        bool
}

// Consumer tunes the payment results reader.
type Consumer struct {
	StartOffset       int64 // -1 newest, -2 oldest
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	CommitInterval    time.Duration
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	RebalanceTimeout  time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
}

type Config struct {
	Brokers  []string
	ClientID string

	Producer Producer
	Consumer Consumer

	// DLQSuffix is appended to a topic to name its dead letter topic.
	DLQSuffix string

	EnableMiddleware bool
}

// Load reads the Kafka settings. It is only called when the events broker is kafka.
func Load() (*Config, error) {
	cfg := &Config{
		Brokers:  splitBrokers(envStr(EnvKafkaBrokers, DefaultKafkaBrokers)),
		ClientID: envStr(EnvKafkaClientID, DefaultClientID),

		Producer: Producer{
			MaxAttempts:  envInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
			BatchTimeout: envDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
			RequiredAcks: envInt(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
			Compression:  strings.ToLower(envStr(EnvKafkaProducerCompression, DefaultProducerCompression)),
			Async:        envBool(EnvKafkaProducerAsync, DefaultProducerAsync),
		},

		Consumer: Consumer{
			StartOffset:       int64(envInt(EnvKafkaConsumerStartOffset, DefaultConsumerStartOffset)),
			MinBytes:          envInt(EnvKafkaConsumerMinBytes, DefaultConsumerMinBytes),
			MaxBytes:          envInt(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes),
			MaxWait:           envDuration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
			CommitInterval:    envDuration(EnvKafkaConsumerCommitInterval, DefaultConsumerCommitInterval),
			HeartbeatInterval: envDuration(EnvKafkaConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
			SessionTimeout:    envDuration(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout),
			RebalanceTimeout:  envDuration(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
			MaxRetries:        envInt(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries),
			RetryBackoff:      envDuration(EnvKafkaConsumerRetryBackoff, DefaultConsumerRetryBackoff),
		},

		DLQSuffix:        envStrAllowEmpty(EnvKafkaDLQSuffix, DefaultDLQSuffix),
		EnableMiddleware: envBool(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DLQTopic names the dead letter topic for topic, or "" when disabled.
func (cfg *Config) DLQTopic(topic string) string {
	if cfg.DLQSuffix == "" {
		return ""
	}
	return topic + cfg.DLQSuffix
}

var compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}

func (cfg *Config) Validate() error {
	var problems []string

	if len(cfg.Brokers) == 0 {
		problems = append(problems, "At least one Kafka broker is required")
	}

	p := cfg.Producer
	if p.MaxAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("Producer.MaxAttempts must be positive, got: %d", p.MaxAttempts))
	}
	if p.RequiredAcks < -1 || p.RequiredAcks > 1 {
		problems = append(problems, fmt.Sprintf("Producer.RequiredAcks must be -1, 0, or 1, got: %d", p.RequiredAcks))
	}
	if !contains(compressions, p.Compression) {
		problems = append(problems, fmt.Sprintf("Producer.Compression must be one of [%s], got: %s", strings.Join(compressions, ", "), p.Compression))
	}

	c := cfg.Consumer
	if c.StartOffset != -1 && c.StartOffset != -2 {
		problems = append(problems, fmt.Sprintf("Consumer.StartOffset must be -1 (newest) or -2 (oldest), got: %d", c.StartOffset))
	}
	if c.MinBytes <= 0 || c.MaxBytes < c.MinBytes {
		problems = append(problems, fmt.Sprintf("Consumer byte bounds must satisfy 0 < MinBytes <= MaxBytes, got: %d..%d", c.MinBytes, c.MaxBytes))
	}
	if c.MaxRetries < 0 || c.RetryBackoff < 0 {
		problems = append(problems, "Consumer.MaxRetries and Consumer.RetryBackoff cannot be negative")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"Producer.BatchTimeout", p.BatchTimeout},
		{"Consumer.MaxWait", c.MaxWait},
		{"Consumer.CommitInterval", c.CommitInterval},
		{"Consumer.HeartbeatInterval", c.HeartbeatInterval},
		{"Consumer.SessionTimeout", c.SessionTimeout},
		{"Consumer.RebalanceTimeout", c.RebalanceTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("Kafka configuration validation failed:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func (cfg *Config) LogConfiguration(logFunc func(msg string, args ...any)) {
	logFunc("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"client_id", cfg.ClientID,
		"producer", cfg.Producer,
		"consumer", cfg.Consumer,
		"dlq_suffix", cfg.DLQSuffix,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func envStrAllowEmpty(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
