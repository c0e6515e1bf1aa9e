package main

import (
	"servicehub/internal/bookings/handler"
	"servicehub/internal/bookings/repository"
	"servicehub/internal/bookings/service"
	"servicehub/internal/bookings/validator"
	"servicehub/pkg/app"
	"servicehub/pkg/client"
	"servicehub/pkg/config"
	"servicehub/pkg/kafka"
	kafka_config "servicehub/pkg/kafka/config"
	kafkamiddleware "servicehub/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)

	producer, topics := initProducer(cfg)
	if producer != nil {
		serverApp.OnShutdown(func() {
			producer.LogStats(cfg.Log)
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		})
	}

	bookingService := initServices(cfg, producer, topics)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

// initProducer returns a nil producer when Kafka is misconfigured; bookings are still taken, only
// the events are skipped.
func initProducer(cfg *config.Config) (*kafka.Producer, service.EventTopics) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Warn("Kafka configuration invalid, booking events disabled", "error", err)
		return nil, service.EventTopics{}
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	topics := service.EventTopics{
		Requested: kafkaCfg.TopicBookingRequested,
		Cancelled: kafkaCfg.TopicBookingCancelled,
	}

	producer, err := kafka.NewProducer(kafkaCfg, topics.Requested, kafkaCfg.TopicDLQ, cfg.Log)
	if err != nil {
		cfg.Log.Warn("Failed to create Kafka producer, booking events disabled", "error", err)
		return nil, topics
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	}

	cfg.Log.Info("Kafka producer initialized", "brokers", kafkaCfg.Brokers)
	return producer, topics
}

func initServices(cfg *config.Config, producer *kafka.Producer, topics service.EventTopics) service.BookingService {
	var events service.EventPublisher
	if producer != nil {
		events = producer
	}

	bookingService := service.NewBookingService(
		repository.NewMongoBookingRepository(cfg),
		repository.NewBookingLockRepository(cfg),
		client.NewServiceItemClient(cfg.CatalogURL),
		events,
		topics,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Booking service initialized",
		"database", cfg.MongoDatabaseName,
		"catalog_url", cfg.CatalogURL,
		"events_enabled", events != nil,
	)
	return bookingService
}
