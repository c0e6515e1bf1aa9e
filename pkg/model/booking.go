package model

import (
	"time"
)

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// NonRefundableOption opts the guest out of the listing's cancellation policy.
const NonRefundableOption = "non-refundable"

// BookingSelection is the guest's transient choice for one listing. It is passed explicitly to
// the availability and pricing code rather than held as ambient state.
type BookingSelection struct {
	StartDate          Date           `json:"start_date,omitzero" bson:"start_date"`
	EndDate            Date           `json:"end_date,omitzero" bson:"end_date"`
	TimeSlot           string         `json:"time_slot,omitempty" bson:"time_slot,omitempty" validate:"omitempty,slot_time"`
	Guests             int            `json:"guests" bson:"guests" validate:"gte=0,lte=500"`
	Quantity           int            `json:"quantity,omitempty" bson:"quantity,omitempty" validate:"gte=0,lte=1000"`
	AddOnIDs           []string       `json:"add_on_ids,omitempty" bson:"add_on_ids,omitempty" validate:"omitempty,max=50,dive,required"`
	CancellationOption string         `json:"cancellation_option,omitempty" bson:"cancellation_option,omitempty" validate:"omitempty,max=40"`
	Emergency          bool           `json:"emergency,omitempty" bson:"emergency,omitempty"`
	Fields             map[string]any `json:"fields,omitempty" bson:"fields,omitempty"`
}

// BookingRequest is the body of a booking submission.
type BookingRequest struct {
	ServiceID string           `json:"service_id" validate:"required,mongodb"`
	Selection BookingSelection `json:"selection"`
}

// Charge is a named monetary line of a quote.
type Charge struct {
	Name   string  `json:"name" bson:"name"`
	Amount float64 `json:"amount" bson:"amount"`
}

// Quote is the computed price breakdown for one selection.
type Quote struct {
	Currency           string   `json:"currency" bson:"currency"`
	Unit               string   `json:"unit" bson:"unit"`
	UnitCount          int      `json:"unit_count" bson:"unit_count"`
	BasePrice          float64  `json:"base_price" bson:"base_price"`
	Subtotal           float64  `json:"subtotal" bson:"subtotal"`
	DiscountName       string   `json:"discount_name,omitempty" bson:"discount_name,omitempty"`
	DiscountAmount     float64  `json:"discount_amount" bson:"discount_amount"`
	DiscountedSubtotal float64  `json:"discounted_subtotal" bson:"discounted_subtotal"`
	AddOns             []Charge `json:"add_ons,omitempty" bson:"add_ons,omitempty"`
	AddOnTotal         float64  `json:"add_on_total" bson:"add_on_total"`
	Surcharges         []Charge `json:"surcharges,omitempty" bson:"surcharges,omitempty"`
	SurchargeTotal     float64  `json:"surcharge_total" bson:"surcharge_total"`
	Total              float64  `json:"total" bson:"total"`
	RefundableHolds    []Charge `json:"refundable_holds,omitempty" bson:"refundable_holds,omitempty"`
	PackageSessions    int      `json:"package_sessions,omitempty" bson:"package_sessions,omitempty"`
	PackageTotal       *float64 `json:"package_total,omitempty" bson:"package_total,omitempty"`
}

// ServiceSnapshot freezes the listing terms at submission time so later edits to the listing do
// not alter an in-flight booking.
type ServiceSnapshot struct {
	Name               string             `json:"name" bson:"name"`
	Category           string             `json:"category" bson:"category"`
	BasePrice          float64            `json:"base_price" bson:"base_price"`
	Currency           string             `json:"currency" bson:"currency"`
	Unit               string             `json:"unit" bson:"unit"`
	Location           string             `json:"location" bson:"location"`
	CancellationPolicy CancellationPolicy `json:"cancellation_policy" bson:"cancellation_policy"`
}

// BookingPayload is what the submission step hands to the booking ledger.
type BookingPayload struct {
	ServiceID      string           `json:"service_id" bson:"service_id"`
	OwnerID        string           `json:"owner_id" bson:"owner_id"`
	UserID         string           `json:"user_id" bson:"user_id"`
	Selection      BookingSelection `json:"selection" bson:"selection"`
	Quote          Quote            `json:"quote" bson:"quote"`
	Snapshot       ServiceSnapshot  `json:"snapshot" bson:"snapshot"`
	InstantConfirm bool             `json:"instant_confirm" bson:"instant_confirm"`
	SubmittedAt    time.Time        `json:"submitted_at" bson:"submitted_at"`
}

// Booking is a ledger row.
type Booking struct {
	ID             string `json:"id,omitempty" bson:"_id,omitempty"`
	BookingPayload `bson:",inline"`
	Status         string     `json:"status" bson:"status"`
	RefundAmount   float64    `json:"refund_amount,omitempty" bson:"refund_amount,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}

// Nights returns the dates occupied by the booking, [start, end).
func (b *Booking) Nights() []Date {
	start, end := b.Selection.StartDate, b.Selection.EndDate
	if start.IsZero() || !end.After(start) {
		return nil
	}
	out := make([]Date, 0, start.DaysUntil(end))
	for d := start; d.Before(end); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// StartTime returns the booked start instant in UTC: the start date at the selected slot, or
// midnight when there is no slot.
func (b *Booking) StartTime() time.Time {
	start := b.Selection.StartDate.Time()
	if b.Selection.TimeSlot == "" {
		return start
	}
	slot, err := time.Parse("15:04", b.Selection.TimeSlot)
	if err != nil {
		return start
	}
	return start.Add(time.Duration(slot.Hour())*time.Hour + time.Duration(slot.Minute())*time.Minute)
}
