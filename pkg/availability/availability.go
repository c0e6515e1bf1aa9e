// Package availability decides which dates and slots of a listing can be booked.
package availability

import (
	"fmt"
	"time"

	"servicehub/pkg/model"
	"servicehub/pkg/schema"
)

// DefaultHorizonDays applies when a listing sets no advance booking horizon.
const DefaultHorizonDays = 365

// Error explains why a date or range cannot be booked.
type Error struct {
	Field  string     `json:"field"`
	Reason string     `json:"reason"`
	Date   model.Date `json:"date,omitzero"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type DayAvailability struct {
	Date     model.Date `json:"date"`
	Blocked  bool       `json:"blocked"`
	InWindow bool       `json:"in_window"`
	Slots    []string   `json:"slots"`
}

// Model answers availability questions for one listing as of a fixed day. It holds no clock and
// performs no I/O; booked dates come from the caller.
type Model struct {
	record       model.AvailabilityRecord
	blocked      model.DateSet
	booked       model.DateSet
	weekdays     map[time.Weekday]bool
	sessionBased bool
	today        model.Date
	horizon      int
}

func New(record model.AvailabilityRecord, calendar schema.FormSchema, today model.Date, booked ...model.Date) *Model {
	weekdays := make(map[time.Weekday]bool, len(calendar.BlockedWeekdays))
	for _, wd := range calendar.BlockedWeekdays {
		weekdays[wd] = true
	}

	return &Model{
		record:       record,
		blocked:      model.NewDateSet(record.BlockedDates...),
		booked:       model.NewDateSet(booked...),
		weekdays:     weekdays,
		sessionBased: calendar.SessionBased,
		today:        today,
		horizon:      DefaultHorizonDays,
	}
}

// WithDefaultHorizon replaces the horizon used when the record sets none. Non-positive values
// are ignored.
func (m *Model) WithDefaultHorizon(days int) *Model {
	if days > 0 {
		m.horizon = days
	}
	return m
}

// HorizonDays is the effective advance booking horizon.
func (m *Model) HorizonDays() int {
	if m.record.AdvanceBookingDays > 0 {
		return m.record.AdvanceBookingDays
	}
	return m.horizon
}

func (m *Model) SessionBased() bool {
	return m.sessionBased
}

// IsBlocked reports whether the owner blocked the date, the category closes on its weekday, or the
// date is already taken in the booking ledger.
func (m *Model) IsBlocked(date model.Date) bool {
	if date.IsZero() {
		return true
	}
	return m.blocked.Has(date) || m.weekdays[date.Weekday()] || m.booked.Has(date)
}

func (m *Model) IsWithinBookingWindow(date model.Date) bool {
	if date.IsZero() || date.Before(m.today) {
		return false
	}
	return !date.After(m.today.AddDays(m.HorizonDays()))
}

func (m *Model) IsValidRange(start, end model.Date) bool {
	return m.checkRange(start, end) == nil
}

// AvailableSlotsFor returns a copy of the configured slots, or none when the date is blocked.
// Slots already taken by other bookings are not filtered out.
func (m *Model) AvailableSlotsFor(date model.Date) []string {
	if m.IsBlocked(date) || len(m.record.AvailableSlots) == 0 {
		return nil
	}
	slots := make([]string, len(m.record.AvailableSlots))
	copy(slots, m.record.AvailableSlots)
	return slots
}

// CheckDate validates a single booking date against the window and the blocked calendar.
func (m *Model) CheckDate(date model.Date) error {
	if date.IsZero() {
		return &Error{Field: "start_date", Reason: "start_date is required"}
	}
	if err := m.checkWindow("start_date", date); err != nil {
		return err
	}
	if m.IsBlocked(date) {
		return &Error{Field: "start_date", Reason: fmt.Sprintf("%s is not available", date), Date: date}
	}
	return nil
}

// CheckRange validates a stay of nights [start, end).
func (m *Model) CheckRange(start, end model.Date) error {
	if start.IsZero() {
		return &Error{Field: "start_date", Reason: "start_date is required"}
	}
	if end.IsZero() {
		return &Error{Field: "end_date", Reason: "end_date is required"}
	}
	if !end.After(start) {
		return &Error{Field: "end_date", Reason: "end_date must be after start_date"}
	}
	if err := m.checkWindow("start_date", start); err != nil {
		return err
	}
	if err := m.checkWindow("end_date", end.AddDays(-1)); err != nil {
		return err
	}
	if err := m.checkRange(start, end); err != nil {
		return err
	}
	return nil
}

func (m *Model) checkWindow(field string, date model.Date) error {
	if m.IsWithinBookingWindow(date) {
		return nil
	}
	if date.Before(m.today) {
		return &Error{Field: field, Reason: fmt.Sprintf("%s is in the past", date), Date: date}
	}
	return &Error{
		Field:  field,
		Reason: fmt.Sprintf("%s is more than %d days ahead", date, m.HorizonDays()),
		Date:   date,
	}
}

func (m *Model) checkRange(start, end model.Date) *Error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return &Error{Field: "end_date", Reason: "end_date must be after start_date"}
	}

	nights := start.DaysUntil(end)
	minStay := max(m.record.MinStay, 1)
	if nights < minStay {
		return &Error{Field: "end_date", Reason: fmt.Sprintf("minimum stay is %d nights", minStay)}
	}
	if m.record.MaxStay > 0 && nights > m.record.MaxStay {
		return &Error{Field: "end_date", Reason: fmt.Sprintf("maximum stay is %d nights", m.record.MaxStay)}
	}

	for d := start; d.Before(end); d = d.AddDays(1) {
		if !m.IsBlocked(d) {
			continue
		}
		field := "end_date"
		if d.Equal(start) {
			field = "start_date"
		}
		return &Error{Field: field, Reason: fmt.Sprintf("%s is not available", d), Date: d}
	}
	return nil
}

// Calendar lists days from `from` onward.
func (m *Model) Calendar(from model.Date, days int) []DayAvailability {
	if days <= 0 || from.IsZero() {
		return nil
	}
	out := make([]DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		d := from.AddDays(i)
		out = append(out, DayAvailability{
			Date:     d,
			Blocked:  m.IsBlocked(d),
			InWindow: m.IsWithinBookingWindow(d),
			Slots:    m.AvailableSlotsFor(d),
		})
	}
	return out
}
