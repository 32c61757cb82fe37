package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvLedgerBackend = "LEDGER_BACKEND"
	EnvPostgresURL   = "POSTGRES_URL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSlotGranularityMin  = "SLOT_GRANULARITY_MIN"
	EnvPaymentTimeout      = "PAYMENT_TIMEOUT"
	EnvExpirySweepInterval = "EXPIRY_SWEEP_INTERVAL"
	EnvSweepLeaseTTL       = "SWEEP_LEASE_TTL"
	EnvBookingHorizonDays  = "BOOKING_HORIZON_DAYS"
	EnvDefaultTimeZone     = "DEFAULT_TIME_ZONE"
	EnvDefaultCurrency     = "DEFAULT_CURRENCY"

	EnvPaymentProvider = "PAYMENT_PROVIDER"
	EnvStripeSecretKey = "STRIPE_SECRET_KEY"

	EnvTrainerDirectoryURL = "TRAINER_DIRECTORY_URL"

	EnvEventsBroker  = "EVENTS_BROKER"
	EnvAMQPURL       = "AMQP_URL"
	EnvAMQPExchange  = "AMQP_EXCHANGE"
	EnvBookingTopic  = "BOOKING_EVENTS_TOPIC"
	EnvPaymentTopic  = "PAYMENT_RESULTS_TOPIC"
	EnvConsumerGroup = "PAYMENT_RESULTS_GROUP"

	EnvOtelEnabled  = "OTEL_ENABLED"
	EnvOtelEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)
