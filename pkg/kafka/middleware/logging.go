package kafka_middleware

import (
	"context"
	"time"

	"servicehub/pkg/kafka"
	"servicehub/pkg/logger"
)

// LoggingProducerMiddleware logs message publishing operations
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		log.Debug("Publishing kafka message",
			"topic", msg.Topic,
			"key", msg.Key,
			"event_type", msg.GetEventType(),
			"event_id", msg.GetEventID(),
			"correlation_id", msg.GetCorrelationID(),
		)

		err := next(ctx, msg)

		if err != nil {
			log.Error("Failed to publish kafka message",
				"topic", msg.Topic,
				"key", msg.Key,
				"event_id", msg.GetEventID(),
				"correlation_id", msg.GetCorrelationID(),
				"duration", time.Since(start),
				"error_type", kafka.ClassifyError(err).String(),
				"error", err,
			)
		} else {
			log.Info("Published kafka message",
				"topic", msg.Topic,
				"key", msg.Key,
				"event_type", msg.GetEventType(),
				"event_id", msg.GetEventID(),
				"duration", time.Since(start),
			)
		}

		return err
	}
}
