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

	catalogerrors "servicehub/internal/catalog/errors"
	"servicehub/pkg/config"
	"servicehub/pkg/model"
)

const (
	CollectionName = "Service_items"
)

// ListFilter narrows a listing query. Empty fields match everything.
type ListFilter struct {
	Category string
	Status   string
	UserID   string
}

type ServiceItemRepository interface {
	Create(ctx context.Context, item *model.ServiceItem) error
	FindByID(ctx context.Context, id string) (*model.ServiceItem, error)
	FindAll(ctx context.Context, filter ListFilter, limit int, offset int64) ([]*model.ServiceItem, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Update(ctx context.Context, id string, item *model.ServiceItem) error
	// SetStatus moves the item to status only if its current status is one of from.
	SetStatus(ctx context.Context, id string, status string, from ...string) (*model.ServiceItem, error)
}

type mongoServiceItemRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoServiceItemRepository(cfg *config.Config) ServiceItemRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoServiceItemRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout, keeping an earlier caller deadline.
func (r *mongoServiceItemRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", catalogerrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoServiceItemRepository) Create(ctx context.Context, item *model.ServiceItem) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	item.CreatedAt = now
	item.UpdatedAt = now
	item.ID = ""

	result, err := r.collection.InsertOne(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to create service item: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		item.ID = oid.Hex()
	}

	return nil
}

func (r *mongoServiceItemRepository) FindByID(ctx context.Context, id string) (*model.ServiceItem, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var item model.ServiceItem
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", catalogerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find service item: %w", err)
	}
	return &item, nil
}

func buildFilter(f ListFilter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["service_category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	return filter
}

func (r *mongoServiceItemRepository) FindAll(ctx context.Context, filter ListFilter, limit int, offset int64) ([]*model.ServiceItem, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query service items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []*model.ServiceItem{}
	if err = cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode service items: %w", err)
	}

	return items, nil
}

func (r *mongoServiceItemRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count service items: %w", err)
	}
	return count, nil
}

func (r *mongoServiceItemRepository) Update(ctx context.Context, id string, item *model.ServiceItem) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	item.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"name":                item.Name,
			"description":         item.Description,
			"location":            item.Location,
			"photos":              item.Photos,
			"pricing":             item.Pricing,
			"specifications":      item.Specifications,
			"amenities":           item.Amenities,
			"availability":        item.Availability,
			"cancellation_policy": item.CancellationPolicy,
			"add_ons":             item.AddOns,
			"discounts":           item.Discounts,
			"updated_at":          item.UpdatedAt,
		},
	}

	// Archived items are immutable; matching on status keeps a concurrent archive from being undone.
	filter := bson.M{"_id": oid, "status": bson.M{"$ne": model.StatusArchived}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update service item: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", catalogerrors.ErrStatusChanged, id)
	}

	return nil
}

func (r *mongoServiceItemRepository) SetStatus(ctx context.Context, id string, status string, from ...string) (*model.ServiceItem, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "status": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var item model.ServiceItem
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", catalogerrors.ErrStatusChanged, id)
		}
		return nil, fmt.Errorf("failed to update service item status: %w", err)
	}
	return &item, nil
}
