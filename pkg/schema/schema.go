// Package schema holds the per-category form definitions that drive which inputs a listing
// collects and which of them a booking requires.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"servicehub/pkg/model"
)

type Kind string

const (
	KindText        Kind = "text"
	KindNumber      Kind = "number"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multi-select"
	KindBoolean     Kind = "boolean"
	KindDate        Kind = "date"
	KindTime        Kind = "time"
)

const slotLayout = "15:04"

type FieldDescriptor struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required"`
}

// ConditionalRule requires the listed fields when WhenField equals WhenValue. An empty WhenField
// makes the rule unconditional for the category.
type ConditionalRule struct {
	WhenField string   `json:"when_field,omitempty"`
	WhenValue string   `json:"when_value,omitempty"`
	Require   []string `json:"require"`
}

func (r ConditionalRule) applies(values map[string]any) bool {
	if r.WhenField == "" {
		return true
	}
	v, ok := values[r.WhenField]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == r.WhenValue
}

type FormSchema struct {
	Category          string              `json:"category"`
	Unit              string              `json:"unit"`
	Fields            []FieldDescriptor   `json:"fields"`
	Options           map[string][]string `json:"options,omitempty"`
	Conditionals      []ConditionalRule   `json:"conditionals,omitempty"`
	BlockedWeekdays   []time.Weekday      `json:"blocked_weekdays,omitempty"`
	SessionBased      bool                `json:"session_based"`
	RequiresDates     bool                `json:"requires_dates"`
	RequiresGuests    bool                `json:"requires_guests"`
	SupportsDiscounts bool                `json:"supports_discounts"`
	SupportsEmergency bool                `json:"supports_emergency"`
}

// ValidationError names the first form field that failed.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

func (s FormSchema) RequiredFields() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

func (s FormSchema) Field(name string) (FieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Validate checks values against the schema and stops at the first failure: required fields in
// declaration order, then kind and option constraints, then conditional rules.
func (s FormSchema) Validate(values map[string]any) error {
	for _, f := range s.Fields {
		if f.Required && !present(values[f.Name]) {
			return &ValidationError{Field: f.Name, Message: fmt.Sprintf("%s is required", f.Name)}
		}
	}

	for _, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok || !present(v) {
			continue
		}
		if msg := s.checkKind(f, v); msg != "" {
			return &ValidationError{Field: f.Name, Message: msg}
		}
	}

	for _, rule := range s.Conditionals {
		if !rule.applies(values) {
			continue
		}
		for _, name := range rule.Require {
			if present(values[name]) {
				continue
			}
			msg := fmt.Sprintf("%s is required for %s", name, s.Category)
			if rule.WhenField != "" {
				msg = fmt.Sprintf("%s is required when %s is %s", name, rule.WhenField, rule.WhenValue)
			}
			return &ValidationError{Field: name, Message: msg}
		}
	}

	return nil
}

func (s FormSchema) checkKind(f FieldDescriptor, v any) string {
	switch f.Kind {
	case KindText:
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("%s must be text", f.Name)
		}
	case KindNumber:
		n, ok := toFloat(v)
		if !ok {
			return fmt.Sprintf("%s must be a number", f.Name)
		}
		if n < 0 {
			return fmt.Sprintf("%s cannot be negative", f.Name)
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("%s must be true or false", f.Name)
		}
	case KindDate:
		if !isDate(v) {
			return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", f.Name)
		}
	case KindTime:
		str, ok := v.(string)
		if !ok {
			return fmt.Sprintf("%s must be a time in HH:MM format", f.Name)
		}
		if _, err := time.Parse(slotLayout, str); err != nil {
			return fmt.Sprintf("%s must be a time in HH:MM format", f.Name)
		}
	case KindSelect:
		str, ok := v.(string)
		if !ok || !s.allowed(f.Name, str) {
			return fmt.Sprintf("%s must be one of: %s", f.Name, strings.Join(s.Options[f.Name], ", "))
		}
	case KindMultiSelect:
		items, ok := toStrings(v)
		if !ok {
			return fmt.Sprintf("%s must be a list of options", f.Name)
		}
		for _, item := range items {
			if !s.allowed(f.Name, item) {
				return fmt.Sprintf("%s contains unsupported option %q", f.Name, item)
			}
		}
	}
	return ""
}

func (s FormSchema) allowed(field, value string) bool {
	opts, ok := s.Options[field]
	if !ok || len(opts) == 0 {
		return true
	}
	for _, o := range opts {
		if o == value {
			return true
		}
	}
	return false
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if str, ok := v.(string); ok {
		return strings.TrimSpace(str) != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer:
		return !rv.IsNil()
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toStrings(v any) ([]string, bool) {
	if list, ok := v.([]string); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		str, ok := rv.Index(i).Interface().(string)
		if !ok {
			return nil, false
		}
		out = append(out, str)
	}
	return out, true
}

func isDate(v any) bool {
	switch d := v.(type) {
	case model.Date:
		return !d.IsZero()
	case string:
		_, err := model.ParseDate(d)
		return err == nil
	}
	return false
}
