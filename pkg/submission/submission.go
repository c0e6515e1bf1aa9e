// Package submission turns a guest's selection into the booking payload handed to the ledger.
package submission

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"servicehub/pkg/auth"
	"servicehub/pkg/availability"
	"servicehub/pkg/model"
	"servicehub/pkg/pricing"
	"servicehub/pkg/schema"
)

var ErrNoItem = errors.New("service item is required")

// Context carries what a build needs beyond the listing and the selection.
type Context struct {
	UserID string
	Today  model.Date
	// Booked lists dates already occupied in the booking ledger.
	Booked             []model.Date
	DefaultHorizonDays int
	Now                time.Time
}

// Build validates the selection against the listing and prices it. Checks run in a fixed order and
// the first failure is returned: dates, guests, availability, guest fields, the listing's category
// fields, then add-ons, the time slot and the cancellation option.
func Build(item *model.ServiceItem, sel model.BookingSelection, bc Context) (*model.BookingPayload, error) {
	if item == nil {
		return nil, ErrNoItem
	}
	if bc.UserID == "" {
		return nil, auth.ErrNoIdentity
	}

	form := schema.GetSchema(item.ServiceCategory)
	unit := item.Pricing.Unit
	if unit == "" {
		unit = form.Unit
	}
	perNight := unit == model.UnitNight

	if err := checkDates(form, perNight, sel); err != nil {
		return nil, err
	}
	if err := checkCounts(form, unit, sel); err != nil {
		return nil, err
	}

	avail := availability.New(item.Availability, form, bc.Today, bc.Booked...).WithDefaultHorizon(bc.DefaultHorizonDays)
	if !sel.StartDate.IsZero() {
		var err error
		if perNight {
			err = avail.CheckRange(sel.StartDate, sel.EndDate)
		} else {
			err = avail.CheckDate(sel.StartDate)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := checkGuestFields(form, sel.Fields); err != nil {
		return nil, err
	}
	if err := form.Validate(item.FormValues()); err != nil {
		return nil, err
	}

	if err := checkAddOns(item, sel.AddOnIDs); err != nil {
		return nil, err
	}
	if err := checkSlot(avail, sel); err != nil {
		return nil, err
	}
	if err := checkCancellationOption(item, sel.CancellationOption); err != nil {
		return nil, err
	}

	sel.AddOnIDs = withRequiredAddOns(item, sel.AddOnIDs)
	if !perNight {
		sel.EndDate = model.Date{}
	}

	policy := item.CancellationPolicy
	policy.Normalize()

	now := bc.Now
	if now.IsZero() {
		now = time.Now()
	}

	return &model.BookingPayload{
		ServiceID: item.ID,
		OwnerID:   item.UserID,
		UserID:    bc.UserID,
		Selection: sel,
		Quote:     pricing.Calculate(pricing.InputFor(item, form, sel)),
		Snapshot: model.ServiceSnapshot{
			Name:               item.Name,
			Category:           item.ServiceCategory,
			BasePrice:          item.Pricing.BasePrice,
			Currency:           item.Pricing.Currency,
			Unit:               unit,
			Location:           item.Location,
			CancellationPolicy: policy,
		},
		InstantConfirm: item.Availability.InstantBooking,
		SubmittedAt:    now.UTC(),
	}, nil
}

func checkDates(form schema.FormSchema, perNight bool, sel model.BookingSelection) error {
	if !form.RequiresDates && !perNight {
		return nil
	}
	if sel.StartDate.IsZero() {
		return &schema.ValidationError{Field: "start_date", Message: "start_date is required"}
	}
	if perNight && sel.EndDate.IsZero() {
		return &schema.ValidationError{Field: "end_date", Message: "end_date is required"}
	}
	return nil
}

func checkCounts(form schema.FormSchema, unit string, sel model.BookingSelection) error {
	if form.RequiresGuests && sel.Guests < 1 && sel.Quantity < 1 {
		return &schema.ValidationError{Field: "guests", Message: "guests must be at least 1"}
	}
	if unit == model.UnitHour && sel.Quantity < 1 {
		return &schema.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}
	return nil
}

// checkGuestFields rejects guest answers that name a field the listing owns: a category form field
// or a typed column such as a fee. Guest fields are echoed on the booking and never priced.
func checkGuestFields(form schema.FormSchema, fields map[string]any) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if _, declared := form.Field(name); declared || model.IsColumnField(name) {
			return &schema.ValidationError{
				Field:   "fields." + name,
				Message: fmt.Sprintf("%s is set by the listing and cannot be supplied with a booking", name),
			}
		}
	}
	return nil
}

func checkAddOns(item *model.ServiceItem, ids []string) error {
	for _, id := range ids {
		if _, ok := item.AddOnByID(id); !ok {
			return &schema.ValidationError{Field: "add_on_ids", Message: fmt.Sprintf("unknown add-on %q", id)}
		}
	}
	return nil
}

func checkSlot(avail *availability.Model, sel model.BookingSelection) error {
	if sel.TimeSlot == "" {
		return nil
	}
	if !slices.Contains(avail.AvailableSlotsFor(sel.StartDate), sel.TimeSlot) {
		return &schema.ValidationError{Field: "time_slot", Message: fmt.Sprintf("%s is not an offered time slot", sel.TimeSlot)}
	}
	return nil
}

func checkCancellationOption(item *model.ServiceItem, option string) error {
	policyType := item.CancellationPolicy.Type
	if policyType == "" {
		policyType = model.PolicyFlexible
	}
	if option == "" || option == policyType || option == model.NonRefundableOption {
		return nil
	}
	return &schema.ValidationError{
		Field:   "cancellation_option",
		Message: fmt.Sprintf("cancellation_option must be %s or %s", policyType, model.NonRefundableOption),
	}
}

func withRequiredAddOns(item *model.ServiceItem, ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, a := range item.AddOns {
		if a.Required && !seen[a.ID] {
			seen[a.ID] = true
			out = append(out, a.ID)
		}
	}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
