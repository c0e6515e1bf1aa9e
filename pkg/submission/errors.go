package submission

import (
	"errors"

	"servicehub/pkg/auth"
	"servicehub/pkg/availability"
	apperrors "servicehub/pkg/errors"
	"servicehub/pkg/schema"
)

// ToAppError maps the domain failures of schema, availability and Build onto the HTTP error
// taxonomy. The offending field is always carried in the details. Other errors pass through.
func ToAppError(err error) error {
	if err == nil {
		return nil
	}

	var vErr *schema.ValidationError
	if errors.As(err, &vErr) {
		return apperrors.Validation(vErr.Message, map[string]any{"field": vErr.Field})
	}

	var aErr *availability.Error
	if errors.As(err, &aErr) {
		details := map[string]any{"field": aErr.Field}
		if !aErr.Date.IsZero() {
			details["date"] = aErr.Date.String()
		}
		return apperrors.Availability(aErr.Reason, details)
	}

	if errors.Is(err, auth.ErrNoIdentity) {
		return apperrors.Unauthorized(err.Error())
	}

	if errors.Is(err, ErrNoItem) {
		return apperrors.NotFound("Service item")
	}

	return err
}
