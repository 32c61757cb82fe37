package config

import "time"

const (
	LedgerMongo    = "mongo"
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"

	PaymentSandbox = "sandbox"
	PaymentStripe  = "stripe"

	BrokerNone  = "none"
	BrokerKafka = "kafka"
	BrokerAMQP  = "amqp"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "trainerbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultLedgerBackend = LedgerMongo

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSlotGranularityMin  = 60
	DefaultPaymentTimeout      = 15 * time.Minute
	DefaultExpirySweepInterval = 1 * time.Minute
	DefaultSweepLeaseTTL       = 50 * time.Second
	DefaultBookingHorizonDays  = 30
	DefaultTimeZone            = "UTC"
	DefaultCurrency            = "usd"

	DefaultPaymentProvider = PaymentSandbox
	DefaultEventsBroker    = BrokerNone
	DefaultAMQPExchange    = "booking-events"
	DefaultBookingTopic    = "booking-events"
	DefaultPaymentTopic    = "payment-results"
	DefaultConsumerGroup   = "trainerbook-bookings"

	DefaultPaginationLimit = 100
)
