package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"

	"servicehub/pkg/availability"
	apperrors "servicehub/pkg/errors"
	"servicehub/pkg/logger"
	"servicehub/pkg/model"
)

type mockBookingService struct {
	submitFunc       func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	listFunc         func(ctx context.Context, serviceID string, limit int, offset int64) ([]*model.Booking, int64, error)
	cancelFunc       func(ctx context.Context, id string) (*model.Booking, error)
	availabilityFunc func(ctx context.Context, serviceID string, from model.Date, days int) ([]availability.DayAvailability, error)
}

func (m *mockBookingService) Submit(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return &model.Booking{}, nil
}

func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return nil, apperrors.NotFoundWithID("Booking", id)
}

func (m *mockBookingService) ListByService(ctx context.Context, serviceID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, serviceID, limit, offset)
	}
	return []*model.Booking{}, 0, nil
}

func (m *mockBookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return &model.Booking{ID: id, Status: model.BookingCancelled}, nil
}

func (m *mockBookingService) Availability(ctx context.Context, serviceID string, from model.Date, days int) ([]availability.DayAvailability, error) {
	if m.availabilityFunc != nil {
		return m.availabilityFunc(ctx, serviceID, from, days)
	}
	return nil, nil
}

func serve(svc *mockBookingService, method, target, body string) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewBookingHandler(svc, logger.Discard()).RegisterRoutes(router)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmit(t *testing.T) {
	svc := &mockBookingService{
		submitFunc: func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
			if req.ServiceID != "64b7f0c2a1b2c3d4e5f60718" || req.Selection.Guests != 2 {
				t.Errorf("request not decoded: %+v", req)
			}
			return &model.Booking{ID: "b1", Status: model.BookingPending}, nil
		},
	}

	body := `{"service_id":"64b7f0c2a1b2c3d4e5f60718","selection":{"start_date":"2024-06-04","end_date":"2024-06-07","guests":2}}`
	w := serve(svc, http.MethodPost, "/api/v1/bookings", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(svc, http.MethodPost, "/api/v1/bookings", `{"selection":{"start_date":"June 4"}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unparseable date: expected 400, got %d", w.Code)
	}
}

func TestSubmit_AvailabilityConflict(t *testing.T) {
	svc := &mockBookingService{
		submitFunc: func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
			return nil, apperrors.Availability("2024-06-05 is not available", map[string]any{"field": "start_date", "date": "2024-06-05"})
		},
	}

	w := serve(svc, http.MethodPost, "/api/v1/bookings", `{}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"field":"start_date"`) {
		t.Errorf("missing field in body: %s", w.Body.String())
	}
}

func TestList(t *testing.T) {
	var gotService string
	var gotLimit int
	svc := &mockBookingService{
		listFunc: func(ctx context.Context, serviceID string, limit int, offset int64) ([]*model.Booking, int64, error) {
			gotService, gotLimit = serviceID, limit
			return []*model.Booking{{ID: "b1"}}, 1, nil
		},
	}

	w := serve(svc, http.MethodGet, "/api/v1/bookings?service_id=s1&limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotService != "s1" || gotLimit != 5 {
		t.Errorf("got service %q limit %d", gotService, gotLimit)
	}
	if !strings.Contains(w.Body.String(), `"total_count":1`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	w = serve(svc, http.MethodGet, "/api/v1/bookings?limit=ten", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCancelAndGet(t *testing.T) {
	svc := &mockBookingService{}

	w := serve(svc, http.MethodPost, "/api/v1/bookings/id/b1/cancel", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"cancelled"`) {
		t.Errorf("cancel: %d %s", w.Code, w.Body.String())
	}

	w = serve(svc, http.MethodGet, "/api/v1/bookings/id/b1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get: expected 404, got %d", w.Code)
	}
}

func TestAvailability(t *testing.T) {
	var gotService string
	var gotDays int
	svc := &mockBookingService{
		availabilityFunc: func(ctx context.Context, serviceID string, from model.Date, days int) ([]availability.DayAvailability, error) {
			gotService, gotDays = serviceID, days
			return []availability.DayAvailability{{Date: from, Blocked: true}}, nil
		},
	}

	w := serve(svc, http.MethodGet, "/api/v1/bookings/availability?service_id=s1&from=2024-06-03&days=7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotService != "s1" || gotDays != 7 {
		t.Errorf("got service %q days %d", gotService, gotDays)
	}

	w = serve(svc, http.MethodGet, "/api/v1/bookings/availability?service_id=s1&days=many", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
