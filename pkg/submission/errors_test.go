package submission

import (
	"errors"
	"net/http"
	"testing"

	"servicehub/pkg/auth"
	"servicehub/pkg/availability"
	apperrors "servicehub/pkg/errors"
	"servicehub/pkg/model"
	"servicehub/pkg/schema"
)

func TestToAppError(t *testing.T) {
	plain := errors.New("boom")

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
		wantField  string
	}{
		{"validation", &schema.ValidationError{Field: "roomType", Message: "roomType is required"}, apperrors.CodeValidation, http.StatusUnprocessableEntity, "roomType"},
		{"availability", &availability.Error{Field: "start_date", Reason: "date is not available", Date: model.MustParseDate("2024-06-02")}, apperrors.CodeAvailability, http.StatusConflict, "start_date"},
		{"no identity", auth.ErrNoIdentity, apperrors.CodeUnauthorized, http.StatusUnauthorized, ""},
		{"no item", ErrNoItem, apperrors.CodeNotFound, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := apperrors.AsAppError(ToAppError(tt.err))
			if appErr.Code != tt.wantCode || appErr.StatusCode() != tt.wantStatus {
				t.Errorf("got %s/%d, want %s/%d", appErr.Code, appErr.StatusCode(), tt.wantCode, tt.wantStatus)
			}
			if tt.wantField != "" && appErr.Details["field"] != tt.wantField {
				t.Errorf("field = %v, want %s", appErr.Details["field"], tt.wantField)
			}
		})
	}

	if ToAppError(nil) != nil {
		t.Error("nil must stay nil")
	}
	if ToAppError(plain) != plain {
		t.Error("unknown errors must pass through")
	}
}
