package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "servicehub/internal/bookings/errors"
	"servicehub/internal/bookings/repository"
	"servicehub/internal/bookings/validator"
	"servicehub/pkg/auth"
	"servicehub/pkg/availability"
	"servicehub/pkg/client"
	"servicehub/pkg/config"
	apperrors "servicehub/pkg/errors"
	"servicehub/pkg/model"
	"servicehub/pkg/schema"
	"servicehub/pkg/submission"
)

type BookingService interface {
	Submit(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByService(ctx context.Context, serviceID string, limit int, offset int64) ([]*model.Booking, int64, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	Availability(ctx context.Context, serviceID string, from model.Date, days int) ([]availability.DayAvailability, error)
}

// ServiceItemReader is satisfied by *client.ServiceItemClient.
type ServiceItemReader interface {
	GetByID(ctx context.Context, id string) (*model.ServiceItem, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.BookingLockRepository
	catalog   ServiceItemReader
	events    EventPublisher
	topics    EventTopics
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

// NewBookingService wires the ledger. A nil events publisher disables booking events.
func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	catalog ServiceItemReader,
	events EventPublisher,
	topics EventTopics,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		catalog:   catalog,
		events:    events,
		topics:    topics,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Submit(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return nil, apperrors.Unauthorized("Sign in to book")
	}

	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "service_id", req.ServiceID, "error", err)
		return nil, validationFailed(err)
	}

	item, err := s.publishedItem(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := model.DateOf(now)
	booked, err := s.bookedDates(ctx, item, today)
	if err != nil {
		return nil, err
	}

	payload, err := submission.Build(item, req.Selection, submission.Context{
		UserID:             userID,
		Today:              today,
		Booked:             booked,
		DefaultHorizonDays: s.cfg.DefaultAdvanceBookingDays,
		Now:                now,
	})
	if err != nil {
		s.cfg.Log.Info("Booking submission rejected",
			"service_id", item.ID,
			"user_id", userID,
			"error", err,
		)
		return nil, submission.ToAppError(err)
	}

	booking := &model.Booking{
		BookingPayload: *payload,
		Status:         model.BookingPending,
	}
	if payload.InstantConfirm {
		booking.Status = model.BookingConfirmed
	}

	lockID, err := s.acquireLock(ctx, booking.ServiceID, booking.Selection.StartDate, booking.Selection.TimeSlot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyNoOverlap(sessCtx, booking); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Collaborator(err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"service_id", booking.ServiceID,
			"user_id", userID,
			"error", err,
		)
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("These dates are currently being booked by another request. Please try again.")
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Collaborator(err)
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"service_id", booking.ServiceID,
		"user_id", userID,
		"status", booking.Status,
		"total", booking.Quote.Total,
	)

	s.publish(ctx, EventBookingRequested, s.topics.Requested, booking)
	return booking, nil
}

// GetByID shows a booking to its guest and to the listing owner only.
func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return nil, apperrors.Unauthorized("Sign in to view bookings")
	}

	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID && booking.OwnerID != userID {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	return booking, nil
}

// ListByService returns the caller's own bookings, or with a serviceID the bookings of a listing the caller
// owns.
func (s *bookingService) ListByService(ctx context.Context, serviceID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return nil, 0, apperrors.Unauthorized("Sign in to view bookings")
	}

	filter := repository.ListFilter{UserID: userID}
	if serviceID != "" {
		filter = repository.ListFilter{ServiceID: serviceID, OwnerID: userID}
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "filter", filter, "error", err)
			errCount = apperrors.Collaborator(err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindAll(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings",
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

	return bookings, count, nil
}

// Cancel refunds according to the policy captured when the booking was made, measured against the
// booked start.
func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return nil, apperrors.Unauthorized("Sign in to cancel bookings")
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID && existing.OwnerID != userID {
		return nil, apperrors.Forbidden("Only the guest or the listing owner can cancel this booking")
	}
	if existing.Status == model.BookingCancelled {
		return nil, apperrors.Conflict("Booking is already cancelled")
	}

	now := s.now()
	refund := refundAmount(existing, now)

	cancelled, err := s.repo.Cancel(ctx, id, refund, now)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStatusChanged) {
			return nil, apperrors.Conflict("Booking is already cancelled")
		}
		return nil, s.mapRepoError(err, id, "Failed to cancel booking")
	}

	s.cfg.Log.Info("Booking cancelled",
		"id", id,
		"cancelled_by", userID,
		"refund_amount", refund,
	)

	s.publish(ctx, EventBookingCancelled, s.topics.Cancelled, cancelled)
	return cancelled, nil
}

// Availability is the listing calendar with dates already held in the ledger marked blocked.
func (s *bookingService) Availability(ctx context.Context, serviceID string, from model.Date, days int) ([]availability.DayAvailability, error) {
	if serviceID == "" {
		return nil, apperrors.InvalidInput("service_id is required")
	}

	item, err := s.publishedItem(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	today := model.DateOf(s.now())
	if from.IsZero() {
		from = today
	}
	booked, err := s.bookedDates(ctx, item, today)
	if err != nil {
		return nil, err
	}

	form := schema.GetSchema(item.ServiceCategory)
	avail := availability.New(item.Availability, form, today, booked...).WithDefaultHorizon(s.cfg.DefaultAdvanceBookingDays)
	return avail.Calendar(from, config.NormalizeCalendarDays(days)), nil
}

// --- Helpers ---

func (s *bookingService) find(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to get booking by ID")
	}
	return booking, nil
}

func (s *bookingService) publishedItem(ctx context.Context, serviceID string) (*model.ServiceItem, error) {
	item, err := s.catalog.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, client.ErrServiceItemNotFound) {
			return nil, apperrors.NotFoundWithID("Service item", serviceID)
		}
		s.cfg.Log.Error("Failed to fetch service item from catalog", "service_id", serviceID, "error", err)
		return nil, apperrors.Collaborator(err)
	}
	if item.Status != model.StatusPublished {
		return nil, apperrors.NotFoundWithID("Service item", serviceID)
	}
	return item, nil
}

// bookedDates lists the nights already taken from today on. Only per-night listings occupy whole
// dates; slot conflicts of session listings are not tracked.
func (s *bookingService) bookedDates(ctx context.Context, item *model.ServiceItem, today model.Date) ([]model.Date, error) {
	if !perNight(item) {
		return nil, nil
	}

	bookings, err := s.repo.FindActiveOverlapping(ctx, item.ID, today, model.Date{})
	if err != nil {
		s.cfg.Log.Error("Failed to load booked dates", "service_id", item.ID, "error", err)
		return nil, apperrors.Collaborator(err)
	}

	set := model.NewDateSet()
	for _, b := range bookings {
		for _, d := range b.Nights() {
			set.Add(d)
		}
	}
	return set.Sorted(), nil
}

func perNight(item *model.ServiceItem) bool {
	unit := item.Pricing.Unit
	if unit == "" {
		unit = schema.GetSchema(item.ServiceCategory).Unit
	}
	return unit == model.UnitNight
}

// verifyNoOverlap re-reads the ledger inside the transaction. It first touches the listing's ledger
// document: a concurrent submission for any range of the same listing then fails with a write
// conflict, and the driver retries it against a snapshot that includes this booking.
func (s *bookingService) verifyNoOverlap(ctx context.Context, booking *model.Booking) error {
	nights := booking.Nights()
	if len(nights) == 0 {
		return nil
	}

	if err := s.repo.TouchLedger(ctx, booking.ServiceID); err != nil {
		return apperrors.Collaborator(err)
	}

	existing, err := s.repo.FindActiveOverlapping(ctx, booking.ServiceID, booking.Selection.StartDate, booking.Selection.EndDate)
	if err != nil {
		return apperrors.Collaborator(err)
	}

	for _, b := range existing {
		taken := model.NewDateSet(b.Nights()...)
		for _, d := range nights {
			if taken.Has(d) {
				return submission.ToAppError(&availability.Error{
					Field:  "start_date",
					Reason: fmt.Sprintf("%s is already booked", d),
					Date:   d,
				})
			}
		}
	}
	return nil
}

// acquireLock fails fast when an identical submission (listing, start date, time slot) is in flight.
// Overlapping ranges with different starts are kept apart by the ledger touch in verifyNoOverlap.
func (s *bookingService) acquireLock(ctx context.Context, serviceID string, start model.Date, slot string) (string, error) {
	lockID := lockKey(serviceID, start, slot)

	ttl := s.cfg.BookingLockTTL
	if ttl <= 0 {
		ttl = config.DefaultBookingLockTTL
	}
	lock := &model.BookingLock{
		ID:        lockID,
		ServiceID: serviceID,
		ExpiresAt: s.now().Add(ttl).UTC(),
	}

	if err := s.lockRepo.Acquire(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("These dates are currently being booked by another request. Please try again.")
		}
		s.cfg.Log.Error("Failed to acquire booking lock", "lock_id", lockID, "error", err)
		return "", apperrors.Collaborator(err)
	}

	return lockID, nil
}

func lockKey(serviceID string, start model.Date, slot string) string {
	if slot == "" {
		return fmt.Sprintf("booking_lock_%s_%s", serviceID, start)
	}
	return fmt.Sprintf("booking_lock_%s_%s_%s", serviceID, start, strings.ReplaceAll(slot, ":", ""))
}

// refundAmount applies the policy snapshot; a non-refundable selection gets nothing back.
func refundAmount(b *model.Booking, now time.Time) float64 {
	if b.Selection.CancellationOption == model.NonRefundableOption {
		return 0
	}

	hoursBefore := b.StartTime().Sub(now).Hours()
	pct := b.Snapshot.CancellationPolicy.RefundPercent(hoursBefore)
	if pct <= 0 {
		return 0
	}

	refund := decimal.NewFromFloat(b.Quote.Total).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2)
	f, _ := refund.Float64()
	return f
}

func (s *bookingService) mapRepoError(err error, id string, logMsg string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	s.cfg.Log.Error(logMsg, "id", id, "error", err)
	return apperrors.Collaborator(err)
}

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
