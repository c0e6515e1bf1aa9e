package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "servicehub/internal/bookings/errors"
	"servicehub/internal/bookings/repository"
	"servicehub/internal/bookings/validator"
	"servicehub/pkg/auth"
	"servicehub/pkg/client"
	"servicehub/pkg/config"
	mongotx "servicehub/pkg/db/mongo"
	apperrors "servicehub/pkg/errors"
	"servicehub/pkg/kafka"
	"servicehub/pkg/logger"
	"servicehub/pkg/model"
)

type mockBookingRepository struct {
	createFunc   func(ctx context.Context, booking *model.Booking) error
	findByIDFunc func(ctx context.Context, id string) (*model.Booking, error)
	findAllFunc  func(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.Booking, error)
	countFunc    func(ctx context.Context, filter repository.ListFilter) (int64, error)
	overlapFunc  func(ctx context.Context, serviceID string, from, to model.Date) ([]*model.Booking, error)
	cancelFunc   func(ctx context.Context, id string, refund float64, at time.Time) (*model.Booking, error)
	touchFunc    func(ctx context.Context, serviceID string) error
	txFunc       func(ctx context.Context, fn mongotx.TransactionFunc) error
	touched      []string
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = "64b7f0c2a1b2c3d4e5f6aaaa"
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindAll(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.Booking, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, filter, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) Count(ctx context.Context, filter repository.ListFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockBookingRepository) FindActiveOverlapping(ctx context.Context, serviceID string, from, to model.Date) ([]*model.Booking, error) {
	if m.overlapFunc != nil {
		return m.overlapFunc(ctx, serviceID, from, to)
	}
	return nil, nil
}

func (m *mockBookingRepository) Cancel(ctx context.Context, id string, refund float64, at time.Time) (*model.Booking, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id, refund, at)
	}
	return nil, bookingserrors.ErrStatusChanged
}

func (m *mockBookingRepository) TouchLedger(ctx context.Context, serviceID string) error {
	m.touched = append(m.touched, serviceID)
	if m.touchFunc != nil {
		return m.touchFunc(ctx, serviceID)
	}
	return nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.txFunc != nil {
		return m.txFunc(ctx, fn)
	}
	return fn(mongo.NewSessionContext(ctx, nil))
}

// retryTransient runs fn the way the driver's WithTransaction does: attempts that fail with a
// TransientTransactionError label are retried.
func retryTransient(ctx context.Context, fn mongotx.TransactionFunc) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = fn(mongo.NewSessionContext(ctx, nil))
		var labeled mongo.LabeledError
		if !errors.As(err, &labeled) || !labeled.HasErrorLabel("TransientTransactionError") {
			return err
		}
	}
	return err
}

type mockLockRepository struct {
	acquired []string
	released []string
	err      error
}

func (m *mockLockRepository) Acquire(ctx context.Context, lock *model.BookingLock) error {
	if m.err != nil {
		return m.err
	}
	m.acquired = append(m.acquired, lock.ID)
	return nil
}

func (m *mockLockRepository) Release(ctx context.Context, lockID string) error {
	m.released = append(m.released, lockID)
	return nil
}

type mockCatalog struct {
	item *model.ServiceItem
	err  error
}

func (m *mockCatalog) GetByID(ctx context.Context, id string) (*model.ServiceItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.item, nil
}

type mockPublisher struct {
	messages []kafka.Message
	err      error
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.messages = append(m.messages, msg)
	return m.err
}

const (
	serviceID = "64b7f0c2a1b2c3d4e5f60718"
	bookingID = "64b7f0c2a1b2c3d4e5f6aaaa"
	ownerID   = "owner-1"
	guestID   = "guest-1"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	repo      *mockBookingRepository
	locks     *mockLockRepository
	catalog   *mockCatalog
	publisher *mockPublisher
	svc       *bookingService
}

func newFixture() *fixture {
	log := logger.Discard()
	f := &fixture{
		repo:      &mockBookingRepository{},
		locks:     &mockLockRepository{},
		catalog:   &mockCatalog{item: hotelItem()},
		publisher: &mockPublisher{},
	}
	f.svc = &bookingService{
		repo:      f.repo,
		lockRepo:  f.locks,
		catalog:   f.catalog,
		events:    f.publisher,
		topics:    EventTopics{Requested: "booking.requested", Cancelled: "booking.cancelled"},
		validator: validator.NewBookingValidator(log),
		cfg: &config.Config{
			Log:                       log,
			DefaultAdvanceBookingDays: 365,
			BookingLockTTL:            30 * time.Second,
		},
		now: func() time.Time { return fixedNow },
	}
	return f
}

func hotelItem() *model.ServiceItem {
	return &model.ServiceItem{
		ID:              serviceID,
		UserID:          ownerID,
		ServiceCategory: "hotel-room",
		Name:            "Sea Suite",
		Description:     "Quiet room with a view",
		Location:        "Haifa",
		Pricing:         model.Pricing{BasePrice: 100, Currency: "USD", Unit: model.UnitNight},
		Specifications: map[string]any{
			"roomType":     "Suite",
			"bedType":      "King",
			"maxOccupancy": float64(2),
		},
		CancellationPolicy: model.CancellationPolicy{Type: model.PolicyModerate},
		Status:             model.StatusPublished,
	}
}

func stayRequest(start, end string) *model.BookingRequest {
	return &model.BookingRequest{
		ServiceID: serviceID,
		Selection: model.BookingSelection{
			StartDate: model.MustParseDate(start),
			EndDate:   model.MustParseDate(end),
			Guests:    2,
		},
	}
}

func existingStay(start, end string) *model.Booking {
	return &model.Booking{
		ID: "64b7f0c2a1b2c3d4e5f6bbbb",
		BookingPayload: model.BookingPayload{
			ServiceID: serviceID,
			Selection: model.BookingSelection{
				StartDate: model.MustParseDate(start),
				EndDate:   model.MustParseDate(end),
			},
		},
		Status: model.BookingConfirmed,
	}
}

func asUser(userID string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: userID})
}

func assertAppError(t *testing.T, err error, status int, field string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", status)
	}
	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() != status {
		t.Fatalf("status = %d, want %d (%v)", appErr.StatusCode(), status, err)
	}
	if field != "" && appErr.Details["field"] != field {
		t.Errorf("field = %v, want %s", appErr.Details["field"], field)
	}
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture()
	var created *model.Booking
	f.repo.createFunc = func(ctx context.Context, booking *model.Booking) error {
		if _, ok := ctx.(mongo.SessionContext); !ok {
			t.Error("booking must be inserted inside the transaction")
		}
		created = booking
		booking.ID = bookingID
		return nil
	}

	booking, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-04", "2024-06-07"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if created == nil {
		t.Fatal("repository Create was not called")
	}
	if booking.Status != model.BookingPending {
		t.Errorf("status = %s, want pending", booking.Status)
	}
	if booking.UserID != guestID || booking.OwnerID != ownerID || booking.ServiceID != serviceID {
		t.Errorf("unexpected parties: %+v", booking.BookingPayload)
	}
	if booking.Quote.UnitCount != 3 || booking.Quote.Total != 300 {
		t.Errorf("quote = %+v, want 3 nights totalling 300", booking.Quote)
	}
	if booking.Snapshot.CancellationPolicy.Type != model.PolicyModerate {
		t.Errorf("policy snapshot = %+v", booking.Snapshot.CancellationPolicy)
	}

	wantLock := "booking_lock_" + serviceID + "_2024-06-04"
	if len(f.locks.acquired) != 1 || f.locks.acquired[0] != wantLock {
		t.Errorf("acquired locks = %v, want %s", f.locks.acquired, wantLock)
	}
	if len(f.locks.released) != 1 || f.locks.released[0] != wantLock {
		t.Errorf("lock not released: %v", f.locks.released)
	}

	if len(f.publisher.messages) != 1 {
		t.Fatalf("expected one event, got %d", len(f.publisher.messages))
	}
	msg := f.publisher.messages[0]
	if msg.Topic != "booking.requested" || msg.Key != serviceID {
		t.Errorf("event routed to %s with key %s", msg.Topic, msg.Key)
	}
	if msg.GetEventType() != EventBookingRequested || msg.GetEventID() == "" {
		t.Errorf("unexpected headers: %v", msg.Headers)
	}
	var event BookingEvent
	if err := msg.DecodeValue(&event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.BookingID != bookingID || event.Total != 300 || event.StartDate.String() != "2024-06-04" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestSubmit_InstantBookingIsConfirmed(t *testing.T) {
	f := newFixture()
	f.catalog.item.Availability.InstantBooking = true

	booking, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-04", "2024-06-05"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if booking.Status != model.BookingConfirmed {
		t.Errorf("status = %s, want confirmed", booking.Status)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		req    *model.BookingRequest
		setup  func(f *fixture)
		status int
		field  string
	}{
		{
			name:   "missing identity",
			ctx:    context.Background(),
			req:    stayRequest("2024-06-04", "2024-06-07"),
			status: http.StatusUnauthorized,
		},
		{
			name:   "malformed service id",
			ctx:    asUser(guestID),
			req:    &model.BookingRequest{ServiceID: "room-1"},
			status: http.StatusUnprocessableEntity,
			field:  "service_id",
		},
		{
			name:   "listing not in catalog",
			ctx:    asUser(guestID),
			req:    stayRequest("2024-06-04", "2024-06-07"),
			setup:  func(f *fixture) { f.catalog.err = client.ErrServiceItemNotFound },
			status: http.StatusNotFound,
		},
		{
			name:   "catalog unreachable",
			ctx:    asUser(guestID),
			req:    stayRequest("2024-06-04", "2024-06-07"),
			setup:  func(f *fixture) { f.catalog.err = errors.New("dial tcp: connection refused") },
			status: http.StatusBadGateway,
		},
		{
			name:   "draft listing",
			ctx:    asUser(guestID),
			req:    stayRequest("2024-06-04", "2024-06-07"),
			setup:  func(f *fixture) { f.catalog.item.Status = model.StatusDraft },
			status: http.StatusNotFound,
		},
		{
			name:   "missing end date",
			ctx:    asUser(guestID),
			req:    &model.BookingRequest{ServiceID: serviceID, Selection: model.BookingSelection{StartDate: model.MustParseDate("2024-06-04"), Guests: 1}},
			status: http.StatusUnprocessableEntity,
			field:  "end_date",
		},
		{
			name:   "range crosses a closed Sunday",
			ctx:    asUser(guestID),
			req:    stayRequest("2024-06-07", "2024-06-11"),
			status: http.StatusConflict,
		},
		{
			name: "nights already in the ledger",
			ctx:  asUser(guestID),
			req:  stayRequest("2024-06-04", "2024-06-07"),
			setup: func(f *fixture) {
				f.repo.overlapFunc = func(ctx context.Context, id string, from, to model.Date) ([]*model.Booking, error) {
					return []*model.Booking{existingStay("2024-06-05", "2024-06-06")}, nil
				}
			},
			status: http.StatusConflict,
		},
		{
			name: "ledger unavailable",
			ctx:  asUser(guestID),
			req:  stayRequest("2024-06-04", "2024-06-07"),
			setup: func(f *fixture) {
				f.repo.overlapFunc = func(ctx context.Context, id string, from, to model.Date) ([]*model.Booking, error) {
					return nil, errors.New("server selection timeout")
				}
			},
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.createFunc = func(ctx context.Context, booking *model.Booking) error {
				t.Fatal("repository Create must not be called")
				return nil
			}
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.svc.Submit(tt.ctx, tt.req)
			assertAppError(t, err, tt.status, tt.field)
			if len(f.publisher.messages) != 0 {
				t.Error("no event may be published for a rejected booking")
			}
		})
	}
}

func TestSubmit_LockHeld(t *testing.T) {
	f := newFixture()
	f.locks.err = mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}

	_, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-04", "2024-06-07"))
	assertAppError(t, err, http.StatusConflict, "")
	if len(f.locks.released) != 0 {
		t.Error("a lock that was never taken must not be released")
	}
}

func TestSubmit_OverlapFoundInsideTransaction(t *testing.T) {
	f := newFixture()
	calls := 0
	f.repo.overlapFunc = func(ctx context.Context, id string, from, to model.Date) ([]*model.Booking, error) {
		calls++
		if calls == 1 {
			return nil, nil
		}
		if from.String() != "2024-06-04" || to.String() != "2024-06-07" {
			t.Errorf("overlap window = %s..%s", from, to)
		}
		return []*model.Booking{existingStay("2024-06-06", "2024-06-08")}, nil
	}

	_, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-04", "2024-06-07"))
	assertAppError(t, err, http.StatusConflict, "start_date")
	if appErr := apperrors.AsAppError(err); appErr.Details["date"] != "2024-06-06" {
		t.Errorf("date = %v, want 2024-06-06", appErr.Details["date"])
	}
	if len(f.locks.released) != 1 {
		t.Error("lock must be released after a failed transaction")
	}
}

func TestSubmit_OverlappingRangesContendOnListingLedger(t *testing.T) {
	f := newFixture()
	var committed []*model.Booking
	// Both submissions pass the pre-read; only the read inside the transaction sees the first stay.
	f.repo.overlapFunc = func(ctx context.Context, id string, from, to model.Date) ([]*model.Booking, error) {
		if _, ok := ctx.(mongo.SessionContext); !ok {
			return nil, nil
		}
		if len(f.repo.touched) != len(committed)+1 {
			t.Error("the ledger must be touched before the overlap read")
		}
		return committed, nil
	}
	f.repo.createFunc = func(ctx context.Context, booking *model.Booking) error {
		booking.ID = bookingID
		committed = append(committed, booking)
		return nil
	}

	if _, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-03", "2024-06-07")); err != nil {
		t.Fatalf("first stay: %v", err)
	}
	_, err := f.svc.Submit(asUser("guest-2"), stayRequest("2024-06-05", "2024-06-08"))
	assertAppError(t, err, http.StatusConflict, "start_date")

	if len(f.locks.acquired) != 2 || f.locks.acquired[0] == f.locks.acquired[1] {
		t.Fatalf("different starts take different advisory locks, got %v", f.locks.acquired)
	}
	if len(f.repo.touched) != 2 || f.repo.touched[0] != serviceID || f.repo.touched[1] != serviceID {
		t.Errorf("both submissions must touch the listing ledger, got %v", f.repo.touched)
	}
}

func TestSubmit_WriteConflictRetriesAgainstCommittedStay(t *testing.T) {
	f := newFixture()
	f.repo.txFunc = retryTransient

	var committed []*model.Booking
	f.repo.touchFunc = func(ctx context.Context, id string) error {
		if len(f.repo.touched) == 1 {
			// A concurrent stay on the same listing commits while this attempt holds its snapshot.
			committed = append(committed, existingStay("2024-06-03", "2024-06-07"))
			return mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
		}
		return nil
	}
	f.repo.overlapFunc = func(ctx context.Context, id string, from, to model.Date) ([]*model.Booking, error) {
		if _, ok := ctx.(mongo.SessionContext); !ok {
			return nil, nil
		}
		return committed, nil
	}
	f.repo.createFunc = func(ctx context.Context, booking *model.Booking) error {
		t.Fatal("an overlapping stay must not be inserted")
		return nil
	}

	_, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-05", "2024-06-08"))
	assertAppError(t, err, http.StatusConflict, "start_date")
	if len(f.repo.touched) != 2 {
		t.Errorf("expected one retry after the write conflict, touched %d times", len(f.repo.touched))
	}
}

func TestSubmit_LedgerInsertRaceIsConflict(t *testing.T) {
	f := newFixture()
	f.repo.touchFunc = func(ctx context.Context, id string) error {
		return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}
	}

	_, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-04", "2024-06-07"))
	assertAppError(t, err, http.StatusConflict, "")
}

func TestLockKey(t *testing.T) {
	day := model.MustParseDate("2024-06-04")
	if got := lockKey(serviceID, day, ""); got != "booking_lock_"+serviceID+"_2024-06-04" {
		t.Errorf("stay lock = %s", got)
	}
	if lockKey(serviceID, day, "09:00") == lockKey(serviceID, day, "10:00") {
		t.Error("different time slots on one day must not share a lock")
	}
}

func TestSubmit_EventFailureIsNotSurfaced(t *testing.T) {
	f := newFixture()
	f.publisher.err = kafka.ErrProducerClosed

	if _, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-04", "2024-06-07")); err != nil {
		t.Fatalf("publish failures must not fail the booking: %v", err)
	}

	f = newFixture()
	f.svc.events = nil
	if _, err := f.svc.Submit(asUser(guestID), stayRequest("2024-06-04", "2024-06-07")); err != nil {
		t.Fatalf("disabled events must not fail the booking: %v", err)
	}
}

func TestSubmit_SessionListingSkipsLedger(t *testing.T) {
	f := newFixture()
	f.catalog.item = &model.ServiceItem{
		ID:              serviceID,
		UserID:          ownerID,
		ServiceCategory: "beauty-salon",
		Name:            "Cut & Style",
		Description:     "Haircut with styling",
		Location:        "Tel Aviv",
		Pricing:         model.Pricing{BasePrice: 60, Currency: "USD", Unit: model.UnitSession},
		Specifications:  map[string]any{"serviceType": "Haircut", "duration": "1 hour"},
		Availability:    model.AvailabilityRecord{AvailableSlots: []string{"09:00", "10:00"}},
		Status:          model.StatusPublished,
	}
	f.repo.overlapFunc = func(ctx context.Context, id string, from, to model.Date) ([]*model.Booking, error) {
		t.Error("session listings do not read ledger occupancy")
		return nil, nil
	}

	req := &model.BookingRequest{
		ServiceID: serviceID,
		Selection: model.BookingSelection{StartDate: model.MustParseDate("2024-06-04"), TimeSlot: "10:00", Guests: 1},
	}
	booking, err := f.svc.Submit(asUser(guestID), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !booking.Selection.EndDate.IsZero() || booking.Quote.Total != 60 {
		t.Errorf("unexpected session booking: %+v %+v", booking.Selection, booking.Quote)
	}
	if len(f.repo.touched) != 0 {
		t.Errorf("session bookings do not touch the ledger, got %v", f.repo.touched)
	}

	other := &model.BookingRequest{
		ServiceID: serviceID,
		Selection: model.BookingSelection{StartDate: model.MustParseDate("2024-06-04"), TimeSlot: "09:00", Guests: 1},
	}
	if _, err := f.svc.Submit(asUser("guest-2"), other); err != nil {
		t.Fatalf("a different slot on the same day must not contend: %v", err)
	}
	if len(f.locks.acquired) != 2 || f.locks.acquired[0] == f.locks.acquired[1] {
		t.Errorf("slot bookings must take distinct locks, got %v", f.locks.acquired)
	}
}

func TestGetByID_Visibility(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		status int
	}{
		{"guest", asUser(guestID), 0},
		{"listing owner", asUser(ownerID), 0},
		{"stranger", asUser("someone"), http.StatusNotFound},
		{"anonymous", context.Background(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
				b := existingStay("2024-06-04", "2024-06-07")
				b.UserID, b.OwnerID = guestID, ownerID
				return b, nil
			}

			_, err := f.svc.GetByID(tt.ctx, bookingID)
			if tt.status == 0 {
				if err != nil {
					t.Fatalf("GetByID: %v", err)
				}
				return
			}
			assertAppError(t, err, tt.status, "")
		})
	}
}

func TestGetByID_InvalidID(t *testing.T) {
	f := newFixture()
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return nil, bookingserrors.ErrInvalidID
	}
	_, err := f.svc.GetByID(asUser(guestID), "nope")
	assertAppError(t, err, http.StatusBadRequest, "")
}

func TestListByService_Filters(t *testing.T) {
	tests := []struct {
		name      string
		serviceID string
		want      repository.ListFilter
	}{
		{"own bookings", "", repository.ListFilter{UserID: guestID}},
		{"bookings of an owned listing", serviceID, repository.ListFilter{ServiceID: serviceID, OwnerID: guestID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			var got repository.ListFilter
			f.repo.findAllFunc = func(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.Booking, error) {
				got = filter
				return []*model.Booking{existingStay("2024-06-04", "2024-06-07")}, nil
			}
			f.repo.countFunc = func(ctx context.Context, filter repository.ListFilter) (int64, error) {
				return 1, nil
			}

			bookings, count, err := f.svc.ListByService(asUser(guestID), tt.serviceID, 10, 0)
			if err != nil {
				t.Fatalf("ListByService: %v", err)
			}
			if count != 1 || len(bookings) != 1 {
				t.Errorf("got %d bookings, count %d", len(bookings), count)
			}
			if got != tt.want {
				t.Errorf("filter = %+v, want %+v", got, tt.want)
			}
		})
	}

	_, _, err := newFixture().svc.ListByService(context.Background(), serviceID, 10, 0)
	assertAppError(t, err, http.StatusUnauthorized, "")
}

func TestCancel(t *testing.T) {
	stored := func() *model.Booking {
		b := existingStay("2024-06-04", "2024-06-07")
		b.ID = bookingID
		b.UserID, b.OwnerID = guestID, ownerID
		b.Quote = model.Quote{Total: 300, Currency: "USD"}
		b.Snapshot.CancellationPolicy = model.CancellationPolicy{Type: model.PolicyModerate}
		return b
	}

	t.Run("refund follows the policy snapshot", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) { return stored(), nil }
		var gotRefund float64
		f.repo.cancelFunc = func(ctx context.Context, id string, refund float64, at time.Time) (*model.Booking, error) {
			gotRefund = refund
			b := stored()
			b.Status = model.BookingCancelled
			b.RefundAmount = refund
			b.CancelledAt = &at
			return b, nil
		}

		booking, err := f.svc.Cancel(asUser(guestID), bookingID)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		// 62 hours ahead under a moderate policy refunds half.
		if gotRefund != 150 || booking.RefundAmount != 150 {
			t.Errorf("refund = %v, want 150", gotRefund)
		}
		if len(f.publisher.messages) != 1 || f.publisher.messages[0].Topic != "booking.cancelled" {
			t.Fatalf("expected a booking.cancelled event, got %+v", f.publisher.messages)
		}
		if f.publisher.messages[0].GetEventType() != EventBookingCancelled {
			t.Errorf("event type = %s", f.publisher.messages[0].GetEventType())
		}
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) { return stored(), nil }
		_, err := f.svc.Cancel(asUser("someone"), bookingID)
		assertAppError(t, err, http.StatusForbidden, "")
	})

	t.Run("already cancelled", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
			b := stored()
			b.Status = model.BookingCancelled
			return b, nil
		}
		_, err := f.svc.Cancel(asUser(ownerID), bookingID)
		assertAppError(t, err, http.StatusConflict, "")
	})

	t.Run("concurrent cancellation", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) { return stored(), nil }
		_, err := f.svc.Cancel(asUser(ownerID), bookingID)
		assertAppError(t, err, http.StatusConflict, "")
		if len(f.publisher.messages) != 0 {
			t.Error("no event may be published when the cancellation lost the race")
		}
	})
}

func TestRefundAmount(t *testing.T) {
	pct, hours := 30.0, 48
	start := "2024-06-10"
	tests := []struct {
		name   string
		policy model.CancellationPolicy
		option string
		now    time.Time
		want   float64
	}{
		{"flexible a day ahead", model.CancellationPolicy{Type: model.PolicyFlexible}, "", time.Date(2024, 6, 8, 23, 0, 0, 0, time.UTC), 200},
		{"flexible same day", model.CancellationPolicy{Type: model.PolicyFlexible}, "", time.Date(2024, 6, 9, 12, 0, 0, 0, time.UTC), 0},
		{"moderate five days ahead", model.CancellationPolicy{Type: model.PolicyModerate}, "", time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), 200},
		{"strict a week ahead", model.CancellationPolicy{Type: model.PolicyStrict}, "", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 100},
		{"strict six days ahead", model.CancellationPolicy{Type: model.PolicyStrict}, "", time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), 0},
		{"custom before deadline", model.CancellationPolicy{Type: model.PolicyCustom, RefundPercentage: &pct, DeadlineHours: &hours}, "", time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), 60},
		{"non-refundable option", model.CancellationPolicy{Type: model.PolicyFlexible}, model.NonRefundableOption, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := existingStay(start, "2024-06-12")
			b.Quote.Total = 200
			b.Snapshot.CancellationPolicy = tt.policy
			b.Selection.CancellationOption = tt.option

			if got := refundAmount(b, tt.now); got != tt.want {
				t.Errorf("refund = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAvailability_MarksBookedNights(t *testing.T) {
	f := newFixture()
	f.repo.overlapFunc = func(ctx context.Context, id string, from, to model.Date) ([]*model.Booking, error) {
		if from.String() != "2024-06-01" || !to.IsZero() {
			t.Errorf("booked window = %s..%s", from, to)
		}
		return []*model.Booking{existingStay("2024-06-04", "2024-06-06")}, nil
	}

	days, err := f.svc.Availability(context.Background(), serviceID, model.MustParseDate("2024-06-03"), 5)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(days) != 5 {
		t.Fatalf("expected 5 days, got %d", len(days))
	}
	want := []bool{false, true, true, false, false}
	for i, d := range days {
		if d.Blocked != want[i] {
			t.Errorf("%s blocked = %v, want %v", d.Date, d.Blocked, want[i])
		}
	}

	_, err = f.svc.Availability(context.Background(), "", model.Date{}, 5)
	assertAppError(t, err, http.StatusBadRequest, "")
}
