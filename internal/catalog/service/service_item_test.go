package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	catalogerrors "servicehub/internal/catalog/errors"
	"servicehub/internal/catalog/repository"
	"servicehub/internal/catalog/validator"
	"servicehub/pkg/auth"
	"servicehub/pkg/cache"
	"servicehub/pkg/config"
	apperrors "servicehub/pkg/errors"
	"servicehub/pkg/logger"
	"servicehub/pkg/model"
)

type mockServiceItemRepository struct {
	createFunc    func(ctx context.Context, item *model.ServiceItem) error
	findByIDFunc  func(ctx context.Context, id string) (*model.ServiceItem, error)
	findAllFunc   func(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.ServiceItem, error)
	countFunc     func(ctx context.Context, filter repository.ListFilter) (int64, error)
	updateFunc    func(ctx context.Context, id string, item *model.ServiceItem) error
	setStatusFunc func(ctx context.Context, id string, status string, from ...string) (*model.ServiceItem, error)
}

func (m *mockServiceItemRepository) Create(ctx context.Context, item *model.ServiceItem) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, item)
	}
	item.ID = "64b7f0c2a1b2c3d4e5f60718"
	return nil
}

func (m *mockServiceItemRepository) FindByID(ctx context.Context, id string) (*model.ServiceItem, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, catalogerrors.ErrNotFound
}

func (m *mockServiceItemRepository) FindAll(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.ServiceItem, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, filter, limit, offset)
	}
	return []*model.ServiceItem{}, nil
}

func (m *mockServiceItemRepository) Count(ctx context.Context, filter repository.ListFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockServiceItemRepository) Update(ctx context.Context, id string, item *model.ServiceItem) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, item)
	}
	return nil
}

func (m *mockServiceItemRepository) SetStatus(ctx context.Context, id string, status string, from ...string) (*model.ServiceItem, error) {
	if m.setStatusFunc != nil {
		return m.setStatusFunc(ctx, id, status, from...)
	}
	return nil, catalogerrors.ErrStatusChanged
}

const (
	ownerID = "owner-1"
	itemID  = "64b7f0c2a1b2c3d4e5f60718"
)

func newTestService(repo repository.ServiceItemRepository) *serviceItemService {
	log := logger.Discard()
	return &serviceItemService{
		repo:      repo,
		validator: validator.NewServiceItemValidator(log),
		cache:     cache.New(nil, "service_items", 0, log),
		cfg: &config.Config{
			Log:                       log,
			ReadTimeout:               5 * time.Second,
			WriteTimeout:              5 * time.Second,
			DefaultAdvanceBookingDays: 365,
		},
		now: func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func asUser(userID string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: userID})
}

func hotelItem() *model.ServiceItem {
	return &model.ServiceItem{
		ServiceCategory: "Hotel Room",
		Name:            "  Sea   Suite ",
		Description:     "Quiet room with a view",
		Location:        "Haifa",
		Pricing:         model.Pricing{BasePrice: 100, Currency: "usd"},
		Specifications: map[string]any{
			"roomType":     "Suite",
			"bedType":      "King",
			"maxOccupancy": 2,
		},
		Availability: model.AvailabilityRecord{AvailableSlots: []string{"15:00", "9:00"}},
		AddOns:       []model.AddOn{{Name: "Breakfast", Price: 20}},
	}
}

// stored is hotelItem as Create leaves it in the collection: sanitized, with defaults applied.
func stored(status string) *model.ServiceItem {
	item := hotelItem()
	item.ID = itemID
	item.UserID = ownerID
	item.ServiceCategory = "hotel-room"
	item.Name = "Sea Suite"
	item.Status = status
	item.Pricing.Currency = "USD"
	item.Pricing.Unit = model.UnitNight
	item.Availability.AvailableSlots = []string{"09:00", "15:00"}
	item.AddOns[0].ID = "addon-breakfast"
	return item
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

func TestCreate_Success(t *testing.T) {
	var created *model.ServiceItem
	repo := &mockServiceItemRepository{
		createFunc: func(ctx context.Context, item *model.ServiceItem) error {
			created = item
			item.ID = itemID
			return nil
		},
	}
	svc := newTestService(repo)

	item := hotelItem()
	item.Status = model.StatusPublished
	item.UserID = "someone-else"

	if err := svc.Create(asUser(ownerID), item); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created == nil {
		t.Fatal("repository Create was not called")
	}
	if item.Status != model.StatusDraft {
		t.Errorf("status = %s, want draft", item.Status)
	}
	if item.UserID != ownerID {
		t.Errorf("user_id = %s, want %s", item.UserID, ownerID)
	}
	if item.ServiceCategory != "hotel-room" || item.Name != "Sea Suite" {
		t.Errorf("not sanitized: %q %q", item.ServiceCategory, item.Name)
	}
	if item.Pricing.Unit != model.UnitNight || item.Pricing.Currency != "USD" {
		t.Errorf("defaults not applied: %+v", item.Pricing)
	}
	if item.CancellationPolicy.Type != model.PolicyFlexible || item.CancellationPolicy.Description == "" {
		t.Errorf("policy not normalized: %+v", item.CancellationPolicy)
	}
	if got := item.Availability.AvailableSlots; len(got) != 2 || got[0] != "09:00" {
		t.Errorf("slots not normalized: %v", got)
	}
	if item.AddOns[0].ID == "" {
		t.Error("add-on id not assigned")
	}
}

func TestCreate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		mutate func(item *model.ServiceItem)
		status int
		field  string
	}{
		{
			name:   "missing identity",
			ctx:    context.Background(),
			mutate: func(*model.ServiceItem) {},
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing category field",
			ctx:    asUser(ownerID),
			mutate: func(item *model.ServiceItem) { delete(item.Specifications, "roomType") },
			status: http.StatusUnprocessableEntity,
			field:  "roomType",
		},
		{
			name:   "select value outside options",
			ctx:    asUser(ownerID),
			mutate: func(item *model.ServiceItem) { item.Specifications["bedType"] = "Hammock" },
			status: http.StatusUnprocessableEntity,
			field:  "bedType",
		},
		{
			name:   "invalid slot",
			ctx:    asUser(ownerID),
			mutate: func(item *model.ServiceItem) { item.Availability.AvailableSlots = []string{"25:00"} },
			status: http.StatusUnprocessableEntity,
			field:  "availability.available_slots[0]",
		},
		{
			name: "custom policy without terms",
			ctx:  asUser(ownerID),
			mutate: func(item *model.ServiceItem) {
				item.CancellationPolicy = model.CancellationPolicy{Type: model.PolicyCustom}
			},
			status: http.StatusUnprocessableEntity,
			field:  "cancellation_policy",
		},
		{
			name: "discounts on a category without discount support",
			ctx:  asUser(ownerID),
			mutate: func(item *model.ServiceItem) {
				item.ServiceCategory = "beauty-salon"
				item.Specifications = map[string]any{"serviceType": "Haircut", "duration": "1 hour"}
				item.Discounts = []model.Discount{{
					Name: "Summer", Type: model.DiscountPercentage, Value: 10,
					StartDate: model.MustParseDate("2024-06-01"), EndDate: model.MustParseDate("2024-06-30"),
				}}
			},
			status: http.StatusUnprocessableEntity,
			field:  "discounts",
		},
		{
			name:   "invalid category slug",
			ctx:    asUser(ownerID),
			mutate: func(item *model.ServiceItem) { item.ServiceCategory = "!!!" },
			status: http.StatusUnprocessableEntity,
			field:  "service_category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockServiceItemRepository{
				createFunc: func(ctx context.Context, item *model.ServiceItem) error {
					t.Fatal("repository Create must not be called")
					return nil
				},
			}
			item := hotelItem()
			tt.mutate(item)

			err := newTestService(repo).Create(tt.ctx, item)
			assertAppError(t, err, tt.status, tt.field)
		})
	}
}

func TestCreate_RepositoryFailureIsCollaboratorError(t *testing.T) {
	repo := &mockServiceItemRepository{
		createFunc: func(ctx context.Context, item *model.ServiceItem) error {
			return errors.New("connection reset by peer")
		},
	}

	err := newTestService(repo).Create(asUser(ownerID), hotelItem())
	assertAppError(t, err, http.StatusBadGateway, "")
	if appErr := apperrors.AsAppError(err); appErr.Message != "connection reset by peer" {
		t.Errorf("collaborator message must be kept verbatim, got %q", appErr.Message)
	}
}

func TestGetByID_Visibility(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		ctx     context.Context
		wantErr int
	}{
		{"published visible to anyone", model.StatusPublished, context.Background(), 0},
		{"draft visible to owner", model.StatusDraft, asUser(ownerID), 0},
		{"draft hidden from others", model.StatusDraft, asUser("other"), http.StatusNotFound},
		{"archived hidden from anonymous", model.StatusArchived, context.Background(), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockServiceItemRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
					return stored(tt.status), nil
				},
			}
			item, err := newTestService(repo).GetByID(tt.ctx, itemID)
			if tt.wantErr != 0 {
				assertAppError(t, err, tt.wantErr, "")
				return
			}
			if err != nil || item.ID != itemID {
				t.Fatalf("GetByID = %v, %v", item, err)
			}
		})
	}
}

func TestGetByID_RepositoryErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", catalogerrors.ErrNotFound, http.StatusNotFound},
		{"invalid id", catalogerrors.ErrInvalidID, http.StatusBadRequest},
		{"backend down", errors.New("server selection timeout"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockServiceItemRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
					return nil, tt.err
				},
			}
			_, err := newTestService(repo).GetByID(context.Background(), itemID)
			assertAppError(t, err, tt.status, "")
		})
	}
}

func TestGetByCategoryAndID(t *testing.T) {
	repo := &mockServiceItemRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
			return stored(model.StatusPublished), nil
		},
	}
	svc := newTestService(repo)

	if _, err := svc.GetByCategoryAndID(context.Background(), "Hotel Room", itemID); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	_, err := svc.GetByCategoryAndID(context.Background(), "restaurant", itemID)
	assertAppError(t, err, http.StatusNotFound, "")
}

func TestUpdate(t *testing.T) {
	t.Run("non-owner is forbidden", func(t *testing.T) {
		repo := &mockServiceItemRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
				return stored(model.StatusDraft), nil
			},
		}
		_, err := newTestService(repo).Update(asUser("other"), itemID, &model.ServiceItemUpdate{Name: "New"})
		assertAppError(t, err, http.StatusForbidden, "")
	})

	t.Run("archived is immutable", func(t *testing.T) {
		repo := &mockServiceItemRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
				return stored(model.StatusArchived), nil
			},
		}
		_, err := newTestService(repo).Update(asUser(ownerID), itemID, &model.ServiceItemUpdate{Name: "New"})
		assertAppError(t, err, http.StatusConflict, "")
	})

	t.Run("merges and saves", func(t *testing.T) {
		var saved *model.ServiceItem
		repo := &mockServiceItemRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
				return stored(model.StatusPublished), nil
			},
			updateFunc: func(ctx context.Context, id string, item *model.ServiceItem) error {
				saved = item
				return nil
			},
		}
		updates := &model.ServiceItemUpdate{
			Name:           "  Garden   Suite",
			Specifications: map[string]any{"roomSize": 40, "bedType": "Queen"},
		}

		item, err := newTestService(repo).Update(asUser(ownerID), itemID, updates)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if saved == nil || item.Name != "Garden Suite" {
			t.Fatalf("unexpected saved item: %+v", saved)
		}
		if item.Specifications["roomType"] != "Suite" || item.Specifications["bedType"] != "Queen" {
			t.Errorf("specifications not merged: %v", item.Specifications)
		}
		if item.Status != model.StatusPublished {
			t.Errorf("status must not change on update, got %s", item.Status)
		}
	})

	t.Run("update that breaks the form is rejected", func(t *testing.T) {
		repo := &mockServiceItemRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
				return stored(model.StatusDraft), nil
			},
		}
		updates := &model.ServiceItemUpdate{Specifications: map[string]any{"roomType": nil}}
		_, err := newTestService(repo).Update(asUser(ownerID), itemID, updates)
		assertAppError(t, err, http.StatusUnprocessableEntity, "roomType")
	})
}

func TestPublishAndArchive(t *testing.T) {
	var gotStatus string
	var gotFrom []string
	newRepo := func(current string) *mockServiceItemRepository {
		return &mockServiceItemRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
				return stored(current), nil
			},
			setStatusFunc: func(ctx context.Context, id string, status string, from ...string) (*model.ServiceItem, error) {
				gotStatus, gotFrom = status, from
				return stored(status), nil
			},
		}
	}

	item, err := newTestService(newRepo(model.StatusDraft)).Publish(asUser(ownerID), itemID)
	if err != nil || item.Status != model.StatusPublished {
		t.Fatalf("Publish = %v, %v", item, err)
	}
	if gotStatus != model.StatusPublished || len(gotFrom) != 1 || gotFrom[0] != model.StatusDraft {
		t.Errorf("unexpected transition %s from %v", gotStatus, gotFrom)
	}

	_, err = newTestService(newRepo(model.StatusArchived)).Publish(asUser(ownerID), itemID)
	assertAppError(t, err, http.StatusConflict, "")

	gotStatus = ""
	incomplete := newRepo(model.StatusDraft)
	incomplete.findByIDFunc = func(ctx context.Context, id string) (*model.ServiceItem, error) {
		item := stored(model.StatusDraft)
		delete(item.Specifications, "roomType")
		return item, nil
	}
	_, err = newTestService(incomplete).Publish(asUser(ownerID), itemID)
	assertAppError(t, err, http.StatusUnprocessableEntity, "roomType")
	if gotStatus != "" {
		t.Errorf("an incomplete draft must not be published, got transition to %q", gotStatus)
	}

	item, err = newTestService(newRepo(model.StatusPublished)).Archive(asUser(ownerID), itemID)
	if err != nil || item.Status != model.StatusArchived {
		t.Fatalf("Archive = %v, %v", item, err)
	}
	if len(gotFrom) != 2 {
		t.Errorf("archive must accept draft and published, got %v", gotFrom)
	}

	gotStatus = ""
	item, err = newTestService(newRepo(model.StatusArchived)).Archive(asUser(ownerID), itemID)
	if err != nil || item.Status != model.StatusArchived || gotStatus != "" {
		t.Errorf("archiving an archived item must be a no-op, got %v %v %q", item, err, gotStatus)
	}

	_, err = newTestService(newRepo(model.StatusDraft)).Archive(context.Background(), itemID)
	assertAppError(t, err, http.StatusUnauthorized, "")
}

func TestList_StatusFilter(t *testing.T) {
	tests := []struct {
		name       string
		ctx        context.Context
		status     string
		wantFilter repository.ListFilter
		wantErr    int
	}{
		{"defaults to published", context.Background(), "", repository.ListFilter{Category: "hotel-room", Status: model.StatusPublished}, 0},
		{"owner drafts", asUser(ownerID), model.StatusDraft, repository.ListFilter{Category: "hotel-room", Status: model.StatusDraft, UserID: ownerID}, 0},
		{"drafts need identity", context.Background(), model.StatusDraft, repository.ListFilter{}, http.StatusUnauthorized},
		{"unknown status", context.Background(), "deleted", repository.ListFilter{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotFilter repository.ListFilter
			repo := &mockServiceItemRepository{
				countFunc: func(ctx context.Context, filter repository.ListFilter) (int64, error) {
					return 1, nil
				},
				findAllFunc: func(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.ServiceItem, error) {
					gotFilter = filter
					return []*model.ServiceItem{stored(model.StatusPublished)}, nil
				},
			}

			items, count, err := newTestService(repo).List(tt.ctx, "Hotel Room", tt.status, 10, 0)
			if tt.wantErr != 0 {
				assertAppError(t, err, tt.wantErr, "")
				return
			}
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if count != 1 || len(items) != 1 {
				t.Errorf("got %d items, count %d", len(items), count)
			}
			if gotFilter != tt.wantFilter {
				t.Errorf("filter = %+v, want %+v", gotFilter, tt.wantFilter)
			}
		})
	}
}

func TestList_ConcurrentCountAndFind(t *testing.T) {
	repo := &mockServiceItemRepository{
		countFunc: func(ctx context.Context, filter repository.ListFilter) (int64, error) {
			time.Sleep(5 * time.Millisecond)
			return 50, nil
		},
		findAllFunc: func(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.ServiceItem, error) {
			time.Sleep(5 * time.Millisecond)
			return nil, errors.New("cursor killed")
		},
	}

	for i := 0; i < 10; i++ {
		_, _, err := newTestService(repo).List(context.Background(), "", "", 10, 0)
		assertAppError(t, err, http.StatusBadGateway, "")
	}
}

func TestQuote(t *testing.T) {
	item := stored(model.StatusPublished)
	item.AddOns[0].ID = "breakfast"
	repo := &mockServiceItemRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
			return item, nil
		},
	}
	svc := newTestService(repo)

	sel := &model.BookingSelection{
		StartDate: model.MustParseDate("2024-06-04"),
		EndDate:   model.MustParseDate("2024-06-07"),
		Guests:    2,
		AddOnIDs:  []string{"breakfast"},
	}
	quote, err := svc.Quote(context.Background(), itemID, sel)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.UnitCount != 3 || quote.Total != 320 {
		t.Errorf("quote = %+v, want 3 nights totalling 320", quote)
	}

	sel.AddOnIDs = []string{"spa"}
	_, err = svc.Quote(context.Background(), itemID, sel)
	assertAppError(t, err, http.StatusUnprocessableEntity, "add_on_ids")

	sel.AddOnIDs = nil
	sel.TimeSlot = "9am"
	_, err = svc.Quote(context.Background(), itemID, sel)
	assertAppError(t, err, http.StatusUnprocessableEntity, "time_slot")
}

func TestAvailability(t *testing.T) {
	item := stored(model.StatusPublished)
	item.Availability.BlockedDates = []model.Date{model.MustParseDate("2024-06-05")}
	repo := &mockServiceItemRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ServiceItem, error) {
			return item, nil
		},
	}

	days, err := newTestService(repo).Availability(context.Background(), itemID, model.Date{}, 7)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if days[0].Date.String() != "2024-06-01" {
		t.Errorf("calendar must start today, got %s", days[0].Date)
	}
	// 2024-06-02 is a Sunday, closed for hotel rooms; 2024-06-05 is owner-blocked.
	if !days[1].Blocked || !days[4].Blocked || days[2].Blocked {
		t.Errorf("unexpected blocked flags: %+v", days)
	}
}
