package model

import (
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

const (
	UnitNight   = "night"
	UnitHour    = "hour"
	UnitSession = "session"
	UnitPerson  = "person"
	UnitProject = "project"
)

const (
	DiscountPercentage = "percentage"
	DiscountFlat       = "flat"
)

// ServiceItem is a bookable listing owned by the publishing user. Items are never hard-deleted;
// retiring one moves it to StatusArchived.
type ServiceItem struct {
	ID                 string             `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID             string             `json:"user_id" bson:"user_id" validate:"required,max=128"`
	ServiceCategory    string             `json:"service_category" bson:"service_category" validate:"required,category_slug"`
	Name               string             `json:"name" bson:"name" validate:"omitempty,min=2,max=120"`
	Description        string             `json:"description" bson:"description" validate:"omitempty,max=4000"`
	Location           string             `json:"location" bson:"location" validate:"omitempty,max=200"`
	Photos             []string           `json:"photos" bson:"photos" validate:"omitempty,max=30,dive,url"`
	Pricing            Pricing            `json:"pricing" bson:"pricing"`
	Specifications     map[string]any     `json:"specifications,omitempty" bson:"specifications,omitempty"`
	Amenities          []string           `json:"amenities" bson:"amenities" validate:"omitempty,max=50,dive,min=1,max=60"`
	Availability       AvailabilityRecord `json:"availability" bson:"availability"`
	CancellationPolicy CancellationPolicy `json:"cancellation_policy" bson:"cancellation_policy"`
	AddOns             []AddOn            `json:"add_ons" bson:"add_ons" validate:"omitempty,max=50,dive"`
	Discounts          []Discount         `json:"discounts" bson:"discounts" validate:"omitempty,max=20,dive"`
	Status             string             `json:"status" bson:"status" validate:"required,oneof=draft published archived"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

// Pricing holds the base rate and the optional category fee fields. Fee pointers distinguish
// "unset" from an explicit zero.
type Pricing struct {
	BasePrice             float64  `json:"base_price" bson:"base_price" validate:"gte=0"`
	Currency              string   `json:"currency" bson:"currency" validate:"omitempty,len=3,alpha"`
	Unit                  string   `json:"unit" bson:"unit" validate:"omitempty,oneof=night hour session person project"`
	TravelFee             *float64 `json:"travel_fee,omitempty" bson:"travel_fee,omitempty" validate:"omitempty,gte=0"`
	CleaningFee           *float64 `json:"cleaning_fee,omitempty" bson:"cleaning_fee,omitempty" validate:"omitempty,gte=0"`
	EmergencySurchargePct *float64 `json:"emergency_surcharge_pct,omitempty" bson:"emergency_surcharge_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	SecurityDeposit       *float64 `json:"security_deposit,omitempty" bson:"security_deposit,omitempty" validate:"omitempty,gte=0"`
	Deposit               *float64 `json:"deposit,omitempty" bson:"deposit,omitempty" validate:"omitempty,gte=0"`
	PackageSessions       int      `json:"package_sessions,omitempty" bson:"package_sessions,omitempty" validate:"gte=0,lte=100"`
	PackagePrice          *float64 `json:"package_price,omitempty" bson:"package_price,omitempty" validate:"omitempty,gte=0"`
}

type AvailabilityRecord struct {
	BlockedDates       []Date   `json:"blocked_dates" bson:"blocked_dates"`
	AvailableSlots     []string `json:"available_slots" bson:"available_slots" validate:"omitempty,max=96,dive,slot_time"`
	MinStay            int      `json:"min_stay" bson:"min_stay" validate:"gte=0,lte=365"`
	MaxStay            int      `json:"max_stay" bson:"max_stay" validate:"gte=0,lte=365"`
	AdvanceBookingDays int      `json:"advance_booking_days" bson:"advance_booking_days" validate:"gte=0,lte=730"`
	InstantBooking     bool     `json:"instant_booking" bson:"instant_booking"`
}

type AddOn struct {
	ID          string  `json:"id" bson:"id" validate:"omitempty,max=64"`
	Name        string  `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=500"`
	Price       float64 `json:"price" bson:"price" validate:"gte=0"`
	Required    bool    `json:"required" bson:"required"`
}

type Discount struct {
	Name      string  `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Type      string  `json:"type" bson:"type" validate:"required,oneof=percentage flat"`
	Value     float64 `json:"value" bson:"value" validate:"gte=0"`
	StartDate Date    `json:"start_date" bson:"start_date"`
	EndDate   Date    `json:"end_date" bson:"end_date"`
}

// IsActive reports whether on falls within [StartDate, EndDate] inclusive.
func (d Discount) IsActive(on Date) bool {
	if d.StartDate.IsZero() || d.EndDate.IsZero() || on.IsZero() {
		return false
	}
	return !on.Before(d.StartDate) && !on.After(d.EndDate)
}

// columnFields are form fields backed by a typed column. Fees live only under pricing, so the
// value the schema checks is the value the quote charges.
var columnFields = map[string]bool{
	"name":               true,
	"description":        true,
	"location":           true,
	"currency":           true,
	"price":              true,
	"amenities":          true,
	"travelFee":          true,
	"cleaningFee":        true,
	"emergencySurcharge": true,
	"securityDeposit":    true,
	"deposit":            true,
}

// IsColumnField reports whether a form field is filled from a typed column rather than from
// specifications.
func IsColumnField(name string) bool {
	return columnFields[name]
}

// FormValues flattens the item into the field map the category form schema is checked against.
// Specification keys that shadow a typed column are ignored.
func (s *ServiceItem) FormValues() map[string]any {
	values := make(map[string]any, len(s.Specifications)+10)
	for k, v := range s.Specifications {
		if !columnFields[k] {
			values[k] = v
		}
	}
	putString(values, "name", s.Name)
	putString(values, "description", s.Description)
	putString(values, "location", s.Location)
	putString(values, "currency", s.Pricing.Currency)
	if s.Pricing.BasePrice > 0 {
		values["price"] = s.Pricing.BasePrice
	}
	putAmount(values, "travelFee", s.Pricing.TravelFee)
	putAmount(values, "cleaningFee", s.Pricing.CleaningFee)
	putAmount(values, "emergencySurcharge", s.Pricing.EmergencySurchargePct)
	putAmount(values, "securityDeposit", s.Pricing.SecurityDeposit)
	putAmount(values, "deposit", s.Pricing.Deposit)
	if len(s.Amenities) > 0 {
		values["amenities"] = s.Amenities
	}
	return values
}

// AddOnByID returns the add-on with the given id.
func (s *ServiceItem) AddOnByID(id string) (AddOn, bool) {
	for _, a := range s.AddOns {
		if a.ID == id {
			return a, true
		}
	}
	return AddOn{}, false
}

func putString(values map[string]any, key, value string) {
	if value != "" {
		values[key] = value
	}
}

func putAmount(values map[string]any, key string, value *float64) {
	if value != nil {
		values[key] = *value
	}
}

// Amount dereferences an optional fee, treating nil as zero.
func Amount(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Float returns a pointer to v, for optional fee fields.
func Float(v float64) *float64 {
	return &v
}

// ServiceItemUpdate carries the owner-editable fields. Nil or empty values are left unchanged.
type ServiceItemUpdate struct {
	Name               string              `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Description        string              `json:"description,omitempty" validate:"omitempty,max=4000"`
	Location           string              `json:"location,omitempty" validate:"omitempty,max=200"`
	Photos             *[]string           `json:"photos,omitempty" validate:"omitempty,max=30,dive,url"`
	Pricing            *Pricing            `json:"pricing,omitempty"`
	Specifications     map[string]any      `json:"specifications,omitempty"`
	Amenities          *[]string           `json:"amenities,omitempty" validate:"omitempty,max=50,dive,min=1,max=60"`
	Availability       *AvailabilityRecord `json:"availability,omitempty"`
	CancellationPolicy *CancellationPolicy `json:"cancellation_policy,omitempty"`
	AddOns             *[]AddOn            `json:"add_ons,omitempty" validate:"omitempty,max=50,dive"`
	Discounts          *[]Discount         `json:"discounts,omitempty" validate:"omitempty,max=20,dive"`
}
