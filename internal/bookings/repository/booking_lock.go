package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"servicehub/pkg/config"
	"servicehub/pkg/model"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository stores advisory locks. A TTL index on expires_at removes locks whose holder
// died before releasing them.
type BookingLockRepository interface {
	// Acquire inserts the lock and fails with a duplicate key error when it is already held.
	Acquire(ctx context.Context, lock *model.BookingLock) error
	Release(ctx context.Context, lockID string) error
}

type mongoBookingLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoBookingLockRepository) Acquire(ctx context.Context, lock *model.BookingLock) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	lock.CreatedAt = time.Now().UTC()

	// The TTL monitor runs about once a minute, so an expired lock may still be present.
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "expires_at": bson.M{"$lte": lock.CreatedAt}}); err != nil {
		return fmt.Errorf("failed to clear expired lock: %w", err)
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		return err
	}
	return nil
}

func (r *mongoBookingLockRepository) Release(ctx context.Context, lockID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID}); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lockID, err)
	}
	return nil
}
