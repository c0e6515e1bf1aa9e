package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "servicehub/internal/bookings/errors"
	"servicehub/pkg/config"
	mongotx "servicehub/pkg/db/mongo"
	"servicehub/pkg/model"
)

const (
	CollectionName = "Bookings"
	// LedgerCollectionName holds one version document per listing that has per-night bookings.
	LedgerCollectionName = "Booking_ledgers"
)

// ListFilter narrows a ledger query. Empty fields match everything.
type ListFilter struct {
	ServiceID string
	OwnerID   string
	UserID    string
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, filter ListFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	// FindActiveOverlapping returns pending and confirmed per-night bookings of a listing whose
	// [start_date, end_date) range intersects [from, to). A zero bound is open.
	FindActiveOverlapping(ctx context.Context, serviceID string, from, to model.Date) ([]*model.Booking, error)
	// TouchLedger bumps the listing's ledger version. Transactions that both touch the same listing
	// fail with a write conflict, so two overlap checks on one listing cannot commit side by side.
	TouchLedger(ctx context.Context, serviceID string) error
	// Cancel marks a booking cancelled unless it already is.
	Cancel(ctx context.Context, id string, refund float64, at time.Time) (*model.Booking, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	ledgers    *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		ledgers:    db.Collection(LedgerCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext is returned unchanged: wrapping it would detach the operation from the session.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.ID = ""
	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func buildFilter(f ListFilter) bson.M {
	filter := bson.M{}
	if f.ServiceID != "" {
		filter["service_id"] = f.ServiceID
	}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	return filter
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, filter ListFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "selection.start_date", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// Dates are stored as YYYY-MM-DD strings, so string comparison is date order. Bookings without an
// end date (single-session categories) never match a string range and are left out.
func (r *mongoBookingRepository) FindActiveOverlapping(ctx context.Context, serviceID string, from, to model.Date) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"service_id":           serviceID,
		"status":               bson.M{"$in": []string{model.BookingPending, model.BookingConfirmed}},
		"selection.start_date": bson.M{"$type": "string"},
		"selection.end_date":   bson.M{"$type": "string"},
	}

	var bounds []bson.M
	if !from.IsZero() {
		bounds = append(bounds, bson.M{"selection.end_date": bson.M{"$gt": from.String()}})
	}
	if !to.IsZero() {
		bounds = append(bounds, bson.M{"selection.start_date": bson.M{"$lt": to.String()}})
	}
	if len(bounds) > 0 {
		filter["$and"] = bounds
	}

	opts := options.Find().SetSort(bson.D{{Key: "selection.start_date", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) TouchLedger(ctx context.Context, serviceID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}
	_, err := r.ledgers.UpdateOne(ctx, bson.M{"_id": serviceID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to touch ledger of %s: %w", serviceID, err)
	}
	return nil
}

func (r *mongoBookingRepository) Cancel(ctx context.Context, id string, refund float64, at time.Time) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	cancelledAt := at.UTC().Truncate(time.Millisecond)
	filter := bson.M{
		"_id":    oid,
		"status": bson.M{"$ne": model.BookingCancelled},
	}
	update := bson.M{
		"$set": bson.M{
			"status":        model.BookingCancelled,
			"refund_amount": refund,
			"cancelled_at":  cancelledAt,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrStatusChanged, id)
		}
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
