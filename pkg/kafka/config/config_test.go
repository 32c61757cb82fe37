package kafka_config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr []string
	}{
		{
			name: "defaults with broker list",
			env:  map[string]string{EnvKafkaBrokers: "a:9092, b:9092,"},
			check: func(t *testing.T, cfg *Config) {
				if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" {
					t.Errorf("Brokers = %v", cfg.Brokers)
				}
				if cfg.Consumer.StartOffset != -2 {
					t.Errorf("StartOffset = %d, want -2", cfg.Consumer.StartOffset)
				}
				if got := cfg.DLQTopic("payment-results"); got != "payment-results.dlq" {
					t.Errorf("DLQTopic = %s", got)
				}
			},
		},
		{
			name: "empty suffix disables dead lettering",
			env:  map[string]string{EnvKafkaDLQSuffix: ""},
			check: func(t *testing.T, cfg *Config) {
				if got := cfg.DLQTopic("payment-results"); got != "" {
					t.Errorf("DLQTopic = %q, want empty", got)
				}
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				EnvKafkaProducerCompression:  "ZSTD",
				EnvKafkaConsumerRetryBackoff: "1s",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Producer.Compression != "zstd" {
					t.Errorf("Compression = %s", cfg.Producer.Compression)
				}
				if cfg.Consumer.RetryBackoff != time.Second {
					t.Errorf("RetryBackoff = %s", cfg.Consumer.RetryBackoff)
				}
			},
		},
		{
			name: "invalid values are all reported",
			env: map[string]string{
				EnvKafkaProducerCompression: "brotli",
				EnvKafkaProducerRequireAcks: "2",
				EnvKafkaConsumerStartOffset: "5",
				EnvKafkaConsumerMaxWait:     "0s",
			},
			wantErr: []string{"Producer.Compression", "Producer.RequiredAcks", "Consumer.StartOffset", "Consumer.MaxWait"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if len(tt.wantErr) > 0 {
				if err == nil {
					t.Fatal("expected validation error")
				}
				for _, want := range tt.wantErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("error should mention %s: %v", want, err)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}
