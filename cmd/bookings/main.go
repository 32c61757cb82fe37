package main

import (
	"context"
	_ "time/tzdata"

	availabilityhandler "trainerbook/internal/availability/handler"
	"trainerbook/internal/availability/index"
	availabilityservice "trainerbook/internal/availability/service"
	"trainerbook/internal/bookings/events"
	"trainerbook/internal/bookings/handler"
	"trainerbook/internal/bookings/repository"
	"trainerbook/internal/bookings/service"
	"trainerbook/internal/bookings/validator"
	trainersrepo "trainerbook/internal/trainers/repository"
	"trainerbook/pkg/amqp"
	"trainerbook/pkg/app"
	"trainerbook/pkg/config"
	"trainerbook/pkg/contracts"
	"trainerbook/pkg/kafka"
	kafka_config "trainerbook/pkg/kafka/config"
	kafka_middleware "trainerbook/pkg/kafka/middleware"
	"trainerbook/pkg/payment"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Bookings service")

	connectBackends(cfg)
	defer cfg.GracefulShutdown()

	checks := map[string]contracts.Pinger{}
	ledger := initLedger(cfg, checks)
	availability := initAvailability(cfg, ledger)
	publisher, workerFor := initEvents(cfg, checks)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	bookingService := service.NewBookingService(
		ledger,
		availability,
		initProcessor(cfg),
		publisher,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewHealthHandler(checks, cfg.Log),
		handler.NewBookingHandler(bookingService, cfg.Log),
		availabilityhandler.NewAvailabilityHandler(availability, cfg.Log),
	)

	var lease repository.SweepLease
	if cfg.LedgerBackend == config.LedgerMongo {
		lease = repository.NewMongoSweepLease(cfg)
	}
	serverApp.AddWorker(service.NewSweeper(bookingService, lease, cfg.ExpirySweepInterval, cfg.SweepLeaseTTL, cfg.Log))
	if worker := workerFor(bookingService); worker != nil {
		serverApp.AddWorker(worker)
	}

	serverApp.Run()
}

// connectBackends opens only the connections the configured backends need.
// Mongo is also required when it serves as the trainer directory.
func connectBackends(cfg *config.Config) {
	if cfg.LedgerBackend == config.LedgerMongo || cfg.TrainerDirectoryURL == "" {
		cfg.SetMongo()
	}
	if cfg.LedgerBackend == config.LedgerPostgres {
		cfg.SetPostgres()
	}
	cfg.SetRedis()
}

func initLedger(cfg *config.Config, checks map[string]contracts.Pinger) repository.BookingRepository {
	if cfg.Client.Mongo != nil {
		checks["mongo"] = handler.PingFunc(func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, nil)
		})
	}
	if cfg.Client.Redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return cfg.Client.Redis.Ping(ctx).Err()
		})
	}

	switch cfg.LedgerBackend {
	case config.LedgerPostgres:
		checks["postgres"] = handler.PingFunc(cfg.Client.Postgres.Ping)
		cfg.Log.Info("Booking ledger backed by PostgreSQL")
		return repository.NewPostgresBookingRepository(cfg)
	case config.LedgerMemory:
		cfg.Log.Warn("Booking ledger kept in process memory; bookings are lost on restart and not shared between replicas")
		return repository.NewMemoryBookingRepository(nil)
	default:
		cfg.Log.Info("Booking ledger backed by MongoDB")
		return repository.NewMongoBookingRepository(cfg)
	}
}

func initAvailability(cfg *config.Config, ledger repository.BookingRepository) availabilityservice.AvailabilityService {
	var directory trainersrepo.TrainerDirectory
	if cfg.TrainerDirectoryURL != "" {
		directory = trainersrepo.NewHTTPTrainerDirectory(cfg.TrainerDirectoryURL, cfg.ReadTimeout)
		cfg.Log.Info("Trainer directory served over HTTP", "url", cfg.TrainerDirectoryURL)
	} else {
		directory = trainersrepo.NewMongoTrainerRepository(cfg)
		cfg.Log.Info("Trainer directory read from MongoDB")
	}

	ix := index.New(index.Policy{
		HorizonDays:     cfg.BookingHorizonDays,
		DefaultLocation: cfg.Location(),
	})
	return availabilityservice.NewAvailabilityService(directory, ledger, ix, cfg.SlotGranularityMin, nil, cfg.Log)
}

func initProcessor(cfg *config.Config) payment.Processor {
	if cfg.PaymentProvider == config.PaymentStripe {
		cfg.Log.Info("Payments processed by Stripe")
		return payment.NewStripe(cfg.StripeSecretKey)
	}
	cfg.Log.Warn("Payments processed by the sandbox processor; every payment succeeds")
	return payment.NewSandbox(payment.OutcomeSuccess)
}

type workerFactory func(h events.PaymentResultHandler) contracts.Worker

// initEvents wires the outbound event publisher and returns a factory for the
// matching payment results consumer. With no broker both are inert.
func initEvents(cfg *config.Config, checks map[string]contracts.Pinger) (events.Publisher, workerFactory) {
	switch cfg.EventsBroker {
	case config.BrokerKafka:
		return initKafka(cfg)
	case config.BrokerAMQP:
		return initAMQP(cfg, checks)
	default:
		cfg.Log.Info("Domain events disabled")
		return events.NewNoopPublisher(cfg.Log), func(events.PaymentResultHandler) contracts.Worker { return nil }
	}
}

func initKafka(cfg *config.Config) (events.Publisher, workerFactory) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	producer.Use(kafka_middleware.TracingProducerMiddleware())

	factory := func(h events.PaymentResultHandler) contracts.Worker {
		consumer, err := kafka.NewConsumer(kafkaCfg, cfg.PaymentResultsTopic, cfg.PaymentResultsGroup, events.KafkaPaymentResultHandler(h), cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
		}
		if kafkaCfg.EnableMiddleware {
			consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		}
		consumer.Use(kafka_middleware.TracingConsumerMiddleware())
		return events.NewKafkaPaymentResultsWorker(consumer)
	}

	cfg.Log.Info("Domain events published to Kafka", "topic", cfg.BookingEventsTopic)
	return events.NewKafkaPublisher(producer, ServiceName), factory
}

func initAMQP(cfg *config.Config, checks map[string]contracts.Pinger) (events.Publisher, workerFactory) {
	publisher, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		cfg.Log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	checks["rabbitmq"] = publisher

	factory := func(h events.PaymentResultHandler) contracts.Worker {
		consumer, err := amqp.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.PaymentResultsGroup, []string{cfg.PaymentResultsTopic}, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create RabbitMQ consumer", "error", err)
		}
		return events.NewAMQPPaymentResultsWorker(consumer, h)
	}

	cfg.Log.Info("Domain events published to RabbitMQ", "exchange", cfg.AMQPExchange)
	return events.NewAMQPPublisher(publisher, ServiceName), factory
}
