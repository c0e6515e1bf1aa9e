package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	catalogerrors "servicehub/internal/catalog/errors"
	"servicehub/internal/catalog/repository"
	"servicehub/internal/catalog/validator"
	"servicehub/pkg/auth"
	"servicehub/pkg/availability"
	"servicehub/pkg/cache"
	"servicehub/pkg/config"
	apperrors "servicehub/pkg/errors"
	"servicehub/pkg/model"
	"servicehub/pkg/pricing"
	"servicehub/pkg/sanitizer"
	"servicehub/pkg/schema"
	"servicehub/pkg/submission"

	"github.com/google/uuid"
)

type ServiceItemService interface {
	Create(ctx context.Context, item *model.ServiceItem) error
	GetByID(ctx context.Context, id string) (*model.ServiceItem, error)
	GetByCategoryAndID(ctx context.Context, category string, id string) (*model.ServiceItem, error)
	List(ctx context.Context, category string, status string, limit int, offset int64) ([]*model.ServiceItem, int64, error)
	Update(ctx context.Context, id string, updates *model.ServiceItemUpdate) (*model.ServiceItem, error)
	Publish(ctx context.Context, id string) (*model.ServiceItem, error)
	Archive(ctx context.Context, id string) (*model.ServiceItem, error)

	Categories() []string
	Schema(category string) schema.FormSchema
	Availability(ctx context.Context, id string, from model.Date, days int) ([]availability.DayAvailability, error)
	Quote(ctx context.Context, id string, sel *model.BookingSelection) (*model.Quote, error)
}

type serviceItemService struct {
	repo      repository.ServiceItemRepository
	validator *validator.ServiceItemValidator
	cache     *cache.Cache
	cfg       *config.Config
	now       func() time.Time
}

func NewServiceItemService(
	repo repository.ServiceItemRepository,
	validator *validator.ServiceItemValidator,
	cache *cache.Cache,
	cfg *config.Config,
) ServiceItemService {
	return &serviceItemService{
		repo:      repo,
		validator: validator,
		cache:     cache,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *serviceItemService) Create(ctx context.Context, item *model.ServiceItem) error {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return apperrors.Unauthorized("Sign in to create a listing")
	}

	item.ID = ""
	item.UserID = userID
	item.Status = model.StatusDraft
	s.sanitize(item)
	s.applyDefaults(item)

	if err := s.validate(item); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, item); err != nil {
		s.cfg.Log.Error("Failed to create service item",
			"user_id", userID,
			"category", item.ServiceCategory,
			"error", err,
		)
		return apperrors.Collaborator(err)
	}

	s.cfg.Log.Info("Service item created successfully",
		"id", item.ID,
		"user_id", userID,
		"category", item.ServiceCategory,
		"status", item.Status,
	)
	return nil
}

// GetByID returns a published listing to anyone. Drafts and archived listings are only visible to
// their owner; everyone else gets a not-found.
func (s *serviceItemService) GetByID(ctx context.Context, id string) (*model.ServiceItem, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if item.Status != model.StatusPublished {
		if userID, err := auth.UserID(ctx); err != nil || userID != item.UserID {
			return nil, apperrors.NotFoundWithID("Service item", id)
		}
	}
	return item, nil
}

// find is the cached read shared by every lookup.
func (s *serviceItemService) find(ctx context.Context, id string) (*model.ServiceItem, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Service item ID cannot be empty")
	}

	var cached model.ServiceItem
	if s.cache.Get(ctx, id, &cached) {
		return &cached, nil
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to get service item by ID")
	}

	s.cache.Set(ctx, id, item)
	return item, nil
}

// GetByCategoryAndID is the public read contract: only published items are visible, and the
// category in the path must match the stored one.
func (s *serviceItemService) GetByCategoryAndID(ctx context.Context, category string, id string) (*model.ServiceItem, error) {
	category = sanitizer.NormalizeCategory(category)
	if category == "" {
		return nil, apperrors.InvalidInput("Category cannot be empty")
	}

	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if item.ServiceCategory != category || item.Status != model.StatusPublished {
		return nil, apperrors.NotFoundWithID("Service item", id)
	}
	return item, nil
}

func (s *serviceItemService) List(ctx context.Context, category string, status string, limit int, offset int64) ([]*model.ServiceItem, int64, error) {
	filter := repository.ListFilter{
		Category: sanitizer.NormalizeCategory(category),
		Status:   status,
	}
	switch status {
	case "":
		filter.Status = model.StatusPublished
	case model.StatusPublished:
	case model.StatusDraft, model.StatusArchived:
		// Unpublished listings are only listed for their owner.
		userID, err := auth.UserID(ctx)
		if err != nil {
			return nil, 0, apperrors.Unauthorized("Sign in to list your unpublished listings")
		}
		filter.UserID = userID
	default:
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status filter: %s", status))
	}

	var count int64
	var items []*model.ServiceItem
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count service items", "filter", filter, "error", err)
			errCount = apperrors.Collaborator(err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		items, err = s.repo.FindAll(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list service items",
				"filter", filter,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Collaborator(err)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return items, count, nil
}

func (s *serviceItemService) Update(ctx context.Context, id string, updates *model.ServiceItemUpdate) (*model.ServiceItem, error) {
	existing, err := s.ownedItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == model.StatusArchived {
		return nil, apperrors.Conflict("Archived listings cannot be changed")
	}

	merged := s.mergeServiceItemUpdates(existing, updates)
	s.sanitize(merged)
	s.applyDefaults(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		s.cache.Delete(ctx, id)
		if errors.Is(err, catalogerrors.ErrStatusChanged) {
			return nil, apperrors.Conflict("Archived listings cannot be changed")
		}
		return nil, s.mapRepoError(err, id, "Failed to update service item")
	}
	s.cache.Delete(ctx, id)

	s.cfg.Log.Info("Service item updated successfully", "id", id, "user_id", merged.UserID)
	return merged, nil
}

func (s *serviceItemService) Publish(ctx context.Context, id string) (*model.ServiceItem, error) {
	existing, err := s.ownedItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == model.StatusPublished {
		return existing, nil
	}
	if existing.Status != model.StatusDraft {
		return nil, apperrors.Conflict(fmt.Sprintf("Cannot publish a %s listing", existing.Status))
	}

	// The category form may have gained required fields since the draft was saved.
	if err := s.validate(existing); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, model.StatusPublished, model.StatusDraft)
}

func (s *serviceItemService) Archive(ctx context.Context, id string) (*model.ServiceItem, error) {
	existing, err := s.ownedItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == model.StatusArchived {
		return existing, nil
	}

	return s.transition(ctx, id, model.StatusArchived, model.StatusDraft, model.StatusPublished)
}

func (s *serviceItemService) transition(ctx context.Context, id, status string, from ...string) (*model.ServiceItem, error) {
	item, err := s.repo.SetStatus(ctx, id, status, from...)
	s.cache.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrStatusChanged) {
			return nil, apperrors.Conflict("Listing status changed, reload and try again")
		}
		return nil, s.mapRepoError(err, id, "Failed to change service item status")
	}

	s.cfg.Log.Info("Service item status changed", "id", id, "status", status)
	return item, nil
}

func (s *serviceItemService) Categories() []string {
	return schema.Categories()
}

func (s *serviceItemService) Schema(category string) schema.FormSchema {
	return schema.GetSchema(sanitizer.NormalizeCategory(category))
}

// Availability renders the listing's own calendar. Ledger occupancy is owned by the bookings
// service and is not part of this view.
func (s *serviceItemService) Availability(ctx context.Context, id string, from model.Date, days int) ([]availability.DayAvailability, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	today := model.DateOf(s.now())
	if from.IsZero() {
		from = today
	}

	form := schema.GetSchema(item.ServiceCategory)
	avail := availability.New(item.Availability, form, today).WithDefaultHorizon(s.cfg.DefaultAdvanceBookingDays)
	return avail.Calendar(from, config.NormalizeCalendarDays(days)), nil
}

func (s *serviceItemService) Quote(ctx context.Context, id string, sel *model.BookingSelection) (*model.Quote, error) {
	if err := s.validator.ValidateSelection(sel); err != nil {
		return nil, validationFailed(err)
	}

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, addOnID := range sel.AddOnIDs {
		if _, ok := item.AddOnByID(addOnID); !ok {
			return nil, submission.ToAppError(&schema.ValidationError{
				Field:   "add_on_ids",
				Message: fmt.Sprintf("unknown add-on %s", addOnID),
			})
		}
	}

	quote := pricing.Quote(item, *sel)
	return &quote, nil
}

// --- Helpers ---

func (s *serviceItemService) ownedItem(ctx context.Context, id string) (*model.ServiceItem, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return nil, apperrors.Unauthorized("Sign in to manage your listings")
	}
	if id == "" {
		return nil, apperrors.InvalidInput("Service item ID cannot be empty")
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to get service item by ID")
	}
	if item.UserID != userID {
		return nil, apperrors.Forbidden("Only the owner can change this listing")
	}
	return item, nil
}

func (s *serviceItemService) mapRepoError(err error, id string, logMsg string) error {
	if errors.Is(err, catalogerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Service item", id)
	}
	if errors.Is(err, catalogerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid service item ID format")
	}
	s.cfg.Log.Error(logMsg, "id", id, "error", err)
	return apperrors.Collaborator(err)
}

func (s *serviceItemService) validate(item *model.ServiceItem) error {
	if err := s.validator.Validate(item); err != nil {
		s.cfg.Log.Warn("Service item validation failed",
			"id", item.ID,
			"category", item.ServiceCategory,
			"error", err,
		)
		return validationFailed(err)
	}

	form := schema.GetSchema(item.ServiceCategory)
	if err := form.Validate(item.FormValues()); err != nil {
		s.cfg.Log.Warn("Service item form validation failed",
			"id", item.ID,
			"category", item.ServiceCategory,
			"error", err,
		)
		return submission.ToAppError(err)
	}
	return nil
}

// validationFailed reports the first struct-tag failure in the field/message shape used by the
// form schema, with the full list alongside.
func validationFailed(err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return apperrors.Validation(errs[0].Message, map[string]any{
			"field":  errs[0].Field,
			"errors": errs,
		})
	}
	return apperrors.Validation(err.Error(), nil)
}

func (s *serviceItemService) sanitize(item *model.ServiceItem) {
	item.ServiceCategory = sanitizer.NormalizeCategory(item.ServiceCategory)
	item.Name = sanitizer.NormalizeName(item.Name)
	item.Description = sanitizer.NormalizeDescription(item.Description)
	item.Location = sanitizer.NormalizeLocation(item.Location)
	item.Photos = sanitizer.NormalizePhotos(item.Photos)
	item.Amenities = sanitizer.NormalizeAmenities(item.Amenities)
	item.Availability.AvailableSlots = sanitizer.NormalizeSlots(item.Availability.AvailableSlots)
	item.Availability.BlockedDates = model.NewDateSet(item.Availability.BlockedDates...).Sorted()

	p := &item.Pricing
	p.Currency = sanitizer.NormalizeCurrency(p.Currency)
	p.BasePrice = sanitizer.RoundMoney(p.BasePrice)
	p.TravelFee = sanitizer.RoundMoneyPtr(p.TravelFee)
	p.CleaningFee = sanitizer.RoundMoneyPtr(p.CleaningFee)
	p.SecurityDeposit = sanitizer.RoundMoneyPtr(p.SecurityDeposit)
	p.Deposit = sanitizer.RoundMoneyPtr(p.Deposit)
	p.PackagePrice = sanitizer.RoundMoneyPtr(p.PackagePrice)

	for i := range item.AddOns {
		item.AddOns[i].Name = sanitizer.NormalizeName(item.AddOns[i].Name)
		item.AddOns[i].Description = sanitizer.TrimAndNormalize(item.AddOns[i].Description)
		item.AddOns[i].Price = sanitizer.RoundMoney(item.AddOns[i].Price)
	}
	for i := range item.Discounts {
		item.Discounts[i].Name = sanitizer.NormalizeName(item.Discounts[i].Name)
	}
}

func (s *serviceItemService) applyDefaults(item *model.ServiceItem) {
	form := schema.GetSchema(item.ServiceCategory)
	if item.Pricing.Unit == "" {
		item.Pricing.Unit = form.Unit
	}
	if item.Pricing.Currency == "" {
		item.Pricing.Currency = "USD"
	}
	for i := range item.AddOns {
		if item.AddOns[i].ID == "" {
			item.AddOns[i].ID = uuid.New().String()
		}
	}
	item.CancellationPolicy.Normalize()
}

func (s *serviceItemService) mergeServiceItemUpdates(existing *model.ServiceItem, updates *model.ServiceItemUpdate) *model.ServiceItem {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != "" {
		merged.Description = updates.Description
	}
	if updates.Location != "" {
		merged.Location = updates.Location
	}
	if updates.Photos != nil {
		merged.Photos = *updates.Photos
	}
	if updates.Pricing != nil {
		merged.Pricing = *updates.Pricing
	}
	if updates.Specifications != nil {
		specs := make(map[string]any, len(existing.Specifications)+len(updates.Specifications))
		for k, v := range existing.Specifications {
			specs[k] = v
		}
		for k, v := range updates.Specifications {
			if v == nil {
				delete(specs, k)
				continue
			}
			specs[k] = v
		}
		merged.Specifications = specs
	}
	if updates.Amenities != nil {
		merged.Amenities = *updates.Amenities
	}
	if updates.Availability != nil {
		merged.Availability = *updates.Availability
	}
	if updates.CancellationPolicy != nil {
		merged.CancellationPolicy = *updates.CancellationPolicy
	}
	if updates.AddOns != nil {
		merged.AddOns = *updates.AddOns
	}
	if updates.Discounts != nil {
		merged.Discounts = *updates.Discounts
	}

	return &merged
}
