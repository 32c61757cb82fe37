package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"trainerbook/pkg/client"
	"trainerbook/pkg/logger"
)

type Config struct {
	ServiceName string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	LedgerBackend string
	PostgresURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SlotGranularityMin  int
	PaymentTimeout      time.Duration
	ExpirySweepInterval time.Duration
	SweepLeaseTTL       time.Duration
	BookingHorizonDays  int
	DefaultTimeZone     string
	DefaultCurrency     string

	PaymentProvider string
	StripeSecretKey string

	TrainerDirectoryURL string

	EventsBroker        string
	AMQPURL             string
	AMQPExchange        string
	BookingEventsTopic  string
	PaymentResultsTopic string
	PaymentResultsGroup string

	OtelEnabled  bool
	OtelEndpoint string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file and the process environment, then exits
// the process if the result does not validate.
func Load(serviceName string) *Config {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := FromEnv(serviceName)
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func FromEnv(serviceName string) *Config {
	cfg := &Config{
		ServiceName: serviceName,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		LedgerBackend: strings.ToLower(getEnvStr(EnvLedgerBackend, DefaultLedgerBackend)),
		PostgresURL:   getEnvStr(EnvPostgresURL, ""),

		RedisAddr:     getEnvStr(EnvRedisAddr, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, 0),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SlotGranularityMin:  getEnvNum(EnvSlotGranularityMin, DefaultSlotGranularityMin),
		PaymentTimeout:      getEnvDuration(EnvPaymentTimeout, DefaultPaymentTimeout),
		ExpirySweepInterval: getEnvDuration(EnvExpirySweepInterval, DefaultExpirySweepInterval),
		SweepLeaseTTL:       getEnvDuration(EnvSweepLeaseTTL, DefaultSweepLeaseTTL),
		BookingHorizonDays:  getEnvNum(EnvBookingHorizonDays, DefaultBookingHorizonDays),
		DefaultTimeZone:     getEnvStr(EnvDefaultTimeZone, DefaultTimeZone),
		DefaultCurrency:     strings.ToLower(getEnvStr(EnvDefaultCurrency, DefaultCurrency)),

		PaymentProvider: strings.ToLower(getEnvStr(EnvPaymentProvider, DefaultPaymentProvider)),
		StripeSecretKey: getEnvStr(EnvStripeSecretKey, ""),

		TrainerDirectoryURL: getEnvStr(EnvTrainerDirectoryURL, ""),

		EventsBroker:        strings.ToLower(getEnvStr(EnvEventsBroker, DefaultEventsBroker)),
		AMQPURL:             getEnvStr(EnvAMQPURL, ""),
		AMQPExchange:        getEnvStr(EnvAMQPExchange, DefaultAMQPExchange),
		BookingEventsTopic:  getEnvStr(EnvBookingTopic, DefaultBookingTopic),
		PaymentResultsTopic: getEnvStr(EnvPaymentTopic, DefaultPaymentTopic),
		PaymentResultsGroup: getEnvStr(EnvConsumerGroup, DefaultConsumerGroup),

		OtelEnabled:  getEnvBool(EnvOtelEnabled, false),
		OtelEndpoint: getEnvStr(EnvOtelEndpoint, ""),

		Client: client.NewClient(),
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresURL, cfg.MongoConnTimeout)
}

// SetRedis connects only when REDIS_ADDR is configured.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

// Location is the zone used for trainers that do not declare one.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.DefaultTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	switch cfg.LedgerBackend {
	case LedgerMongo, LedgerMemory:
	case LedgerPostgres:
		if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.PostgresURL) {
			errors = append(errors, "PostgresURL must start with 'postgres://' when LedgerBackend is postgres")
		}
	default:
		errors = append(errors, fmt.Sprintf("LedgerBackend must be one of [mongo, postgres, memory], got: %s", cfg.LedgerBackend))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.SlotGranularityMin <= 0 || cfg.SlotGranularityMin > 24*60 {
		errors = append(errors, fmt.Sprintf("SlotGranularityMin must be between 1 and 1440, got: %d", cfg.SlotGranularityMin))
	}
	if cfg.PaymentTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("PaymentTimeout must be positive, got: %s", cfg.PaymentTimeout))
	}
	if cfg.ExpirySweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("ExpirySweepInterval must be positive, got: %s", cfg.ExpirySweepInterval))
	}
	if cfg.SweepLeaseTTL < 0 {
		errors = append(errors, fmt.Sprintf("SweepLeaseTTL cannot be negative, got: %s", cfg.SweepLeaseTTL))
	}
	if cfg.BookingHorizonDays < 0 {
		errors = append(errors, fmt.Sprintf("BookingHorizonDays cannot be negative, got: %d", cfg.BookingHorizonDays))
	}
	if _, err := time.LoadLocation(cfg.DefaultTimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("DefaultTimeZone must be an IANA zone name, got: %s", cfg.DefaultTimeZone))
	}
	if len(cfg.DefaultCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("DefaultCurrency must be a 3-letter ISO code, got: %s", cfg.DefaultCurrency))
	}

	switch cfg.PaymentProvider {
	case PaymentSandbox:
	case PaymentStripe:
		if cfg.StripeSecretKey == "" {
			errors = append(errors, "StripeSecretKey is required when PaymentProvider is stripe")
		}
	default:
		errors = append(errors, fmt.Sprintf("PaymentProvider must be one of [sandbox, stripe], got: %s", cfg.PaymentProvider))
	}

	switch cfg.EventsBroker {
	case BrokerNone, BrokerKafka:
	case BrokerAMQP:
		if !strings.HasPrefix(cfg.AMQPURL, "amqp://") && !strings.HasPrefix(cfg.AMQPURL, "amqps://") {
			errors = append(errors, "AMQPURL must start with 'amqp://' or 'amqps://' when EventsBroker is amqp")
		}
		if cfg.AMQPExchange == "" {
			errors = append(errors, "AMQPExchange cannot be empty when EventsBroker is amqp")
		}
	default:
		errors = append(errors, fmt.Sprintf("EventsBroker must be one of [none, kafka, amqp], got: %s", cfg.EventsBroker))
	}

	if cfg.TrainerDirectoryURL != "" && !regexp.MustCompile(`^https?://`).MatchString(cfg.TrainerDirectoryURL) {
		errors = append(errors, fmt.Sprintf("TrainerDirectoryURL must be an http(s) URL, got: %s", cfg.TrainerDirectoryURL))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"ledger_backend", cfg.LedgerBackend,
		"postgres_url", redactURI(cfg.PostgresURL),
		"redis_addr", cfg.RedisAddr,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"slot_granularity_min", cfg.SlotGranularityMin,
		"payment_timeout", cfg.PaymentTimeout,
		"expiry_sweep_interval", cfg.ExpirySweepInterval,
		"sweep_lease_ttl", cfg.SweepLeaseTTL,
		"booking_horizon_days", cfg.BookingHorizonDays,
		"default_time_zone", cfg.DefaultTimeZone,
		"default_currency", cfg.DefaultCurrency,
		"payment_provider", cfg.PaymentProvider,
		"stripe_key_set", cfg.StripeSecretKey != "",
		"trainer_directory_url", cfg.TrainerDirectoryURL,
		"events_broker", cfg.EventsBroker,
		"amqp_url", redactURI(cfg.AMQPURL),
		"booking_events_topic", cfg.BookingEventsTopic,
		"payment_results_topic", cfg.PaymentResultsTopic,
		"otel_enabled", cfg.OtelEnabled,
		"otel_endpoint", cfg.OtelEndpoint,
	)
}

var credentialRegex = regexp.MustCompile(`^([a-z+]+://)[^:/@]+:[^@]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	cfg.Client.GracefulShutdown(ctx, cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
