package service

import (
	"context"
	"time"

	"servicehub/pkg/kafka"
	"servicehub/pkg/middleware"
	"servicehub/pkg/model"
)

const (
	EventBookingRequested = "booking.requested"
	EventBookingCancelled = "booking.cancelled"

	eventSchemaVersion = "1"
	eventSource        = "bookings"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// EventTopics names the topic of each booking event.
type EventTopics struct {
	Requested string
	Cancelled string
}

// BookingEvent is the JSON value of booking.requested and booking.cancelled.
type BookingEvent struct {
	BookingID    string     `json:"booking_id"`
	ServiceID    string     `json:"service_id"`
	OwnerID      string     `json:"owner_id"`
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	StartDate    model.Date `json:"start_date,omitzero"`
	EndDate      model.Date `json:"end_date,omitzero"`
	TimeSlot     string     `json:"time_slot,omitempty"`
	Total        float64    `json:"total"`
	Currency     string     `json:"currency"`
	RefundAmount float64    `json:"refund_amount,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

func newBookingEvent(b *model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		BookingID:    b.ID,
		ServiceID:    b.ServiceID,
		OwnerID:      b.OwnerID,
		UserID:       b.UserID,
		Status:       b.Status,
		StartDate:    b.Selection.StartDate,
		EndDate:      b.Selection.EndDate,
		TimeSlot:     b.Selection.TimeSlot,
		Total:        b.Quote.Total,
		Currency:     b.Quote.Currency,
		RefundAmount: b.RefundAmount,
		OccurredAt:   at.UTC(),
	}
}

// publish sends the event keyed by service id so a listing's events stay ordered. The booking is
// already committed, so failures are logged and never returned.
func (s *bookingService) publish(ctx context.Context, eventType, topic string, b *model.Booking) {
	if s.events == nil {
		return
	}

	now := s.now()
	msg, err := kafka.NewMessage().
		WithTopic(topic).
		WithKey(b.ServiceID).
		WithValue(newBookingEvent(b, now)).
		WithEventID("").
		WithEventType(eventType).
		WithCorrelationID(middleware.RequestID(ctx)).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(eventSource).
		WithTimestamp(now).
		Build()
	if err != nil {
		s.cfg.Log.Error("Failed to build booking event",
			"event_type", eventType,
			"booking_id", b.ID,
			"error", err,
		)
		return
	}

	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish booking event",
			"event_type", eventType,
			"topic", topic,
			"booking_id", b.ID,
			"service_id", b.ServiceID,
			"error", err,
		)
		return
	}

	s.cfg.Log.Debug("Booking event published",
		"event_type", eventType,
		"booking_id", b.ID,
		"event_id", msg.GetEventID(),
	)
}
