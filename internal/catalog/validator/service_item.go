package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"servicehub/pkg/logger"
	"servicehub/pkg/model"
	"servicehub/pkg/schema"
)

var reCategorySlug = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ServiceItemValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewServiceItemValidator(log *logger.Logger) *ServiceItemValidator {
	v := validator.New()

	// Report fields by their JSON names so errors match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("slot_time", validateSlotTime); err != nil {
		log.Fatal("Failed to register 'slot_time' validator", "error", err)
	}
	if err := v.RegisterValidation("category_slug", validateCategorySlug); err != nil {
		log.Fatal("Failed to register 'category_slug' validator", "error", err)
	}

	log.Info("Service item validator initialized successfully")

	return &ServiceItemValidator{
		validate: v,
		logger:   log,
	}
}

func validateSlotTime(fl validator.FieldLevel) bool {
	slot := fl.Field().String()
	if len(slot) != 5 {
		return false
	}
	_, err := time.Parse("15:04", slot)
	return err == nil
}

func validateCategorySlug(fl validator.FieldLevel) bool {
	return reCategorySlug.MatchString(fl.Field().String())
}

// Validate checks struct tags first and then the cross-field listing rules.
func (v *ServiceItemValidator) Validate(item *model.ServiceItem) error {
	if err := v.validate.Struct(item); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if errs := v.validateBusinessRules(item); len(errs) > 0 {
		return errs
	}

	return nil
}

// ValidateSelection checks the shape of a booking selection before it reaches pricing.
func (v *ServiceItemValidator) ValidateSelection(sel *model.BookingSelection) error {
	if err := v.validate.Struct(sel); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ServiceItemValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		field := fieldPath(err.Namespace())
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", field, err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be less than or equal to %s", field, err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of [%s]", field, err.Param())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", field)
		case "alpha":
			message = fmt.Sprintf("%s must contain letters only", field)
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid object id", field)
		case "slot_time":
			message = fmt.Sprintf("%s must be a time in HH:MM 24-hour format", field)
		case "category_slug":
			message = fmt.Sprintf("%s must be a lowercase hyphenated slug such as hotel-room", field)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

// fieldPath drops the root struct name: "ServiceItem.pricing.currency" becomes "pricing.currency".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func (v *ServiceItemValidator) validateBusinessRules(item *model.ServiceItem) ValidationErrors {
	var errs ValidationErrors
	form := schema.GetSchema(item.ServiceCategory)

	policy := item.CancellationPolicy
	if policy.Type == model.PolicyCustom && (policy.RefundPercentage == nil || policy.DeadlineHours == nil) {
		errs = append(errs, ValidationError{
			Field:   "cancellation_policy",
			Message: "custom cancellation policy requires refund_percentage and deadline_hours",
		})
	}

	if len(item.Discounts) > 0 && !form.SupportsDiscounts {
		errs = append(errs, ValidationError{
			Field:   "discounts",
			Message: fmt.Sprintf("discounts are not supported for %s", form.Category),
		})
	}
	for i, d := range item.Discounts {
		field := fmt.Sprintf("discounts[%d]", i)
		if d.StartDate.IsZero() || d.EndDate.IsZero() {
			errs = append(errs, ValidationError{Field: field, Message: "start_date and end_date are required"})
		} else if d.EndDate.Before(d.StartDate) {
			errs = append(errs, ValidationError{Field: field, Message: "end_date must not be before start_date"})
		}
		if d.Type == model.DiscountPercentage && d.Value > 100 {
			errs = append(errs, ValidationError{Field: field + ".value", Message: "percentage discount must be between 0 and 100"})
		}
	}

	keys := make([]string, 0, len(item.Specifications))
	for k := range item.Specifications {
		if model.IsColumnField(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		errs = append(errs, ValidationError{
			Field:   "specifications." + k,
			Message: fmt.Sprintf("%s cannot be set in specifications, use its own field", k),
		})
	}

	avail := item.Availability
	if avail.MaxStay > 0 && avail.MinStay > avail.MaxStay {
		errs = append(errs, ValidationError{
			Field:   "availability.max_stay",
			Message: "max_stay must be greater than or equal to min_stay",
		})
	}

	seen := make(map[string]bool, len(item.AddOns))
	for i, a := range item.AddOns {
		if a.ID == "" {
			continue
		}
		if seen[a.ID] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("add_ons[%d].id", i), Message: "add-on ids must be unique"})
		}
		seen[a.ID] = true
	}

	if item.Pricing.PackageSessions > 0 && item.Pricing.PackagePrice == nil {
		errs = append(errs, ValidationError{Field: "pricing.package_price", Message: "package_price is required when package_sessions is set"})
	}

	return errs
}
