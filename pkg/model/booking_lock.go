package model

import "time"

// BookingLock is a short-lived advisory lock keyed by listing, start date and time slot. A duplicate _id on
// insert means another submission for the same slot is in flight.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	ServiceID string    `bson:"service_id" json:"service_id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
