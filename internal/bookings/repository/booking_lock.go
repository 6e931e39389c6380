package repository

import (
	"context"
	"fmt"
	bookingserrors "roomly/internal/bookings/errors"
	"roomly/pkg/config"
	"roomly/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository stores advisory locks. The _id uniqueness constraint is
// the lock: a second insert of the same id fails with a duplicate key.
type BookingLockRepository interface {
	Acquire(ctx context.Context, lockID, owner string, ttl time.Duration) error
	Release(ctx context.Context, lockID, owner string) error
}

type mongoBookingLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	now        func() time.Time
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
		now:        time.Now,
	}
}

func SlotLockID(roomID, date string) string {
	return fmt.Sprintf("booking_lock_%s_%s", roomID, date)
}

// Acquire returns ErrLockHeld if a live lock with lockID exists. Expired locks
// are removed first because the TTL monitor only runs once a minute.
func (r *mongoBookingLockRepository) Acquire(ctx context.Context, lockID, owner string, ttl time.Duration) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := r.now().UTC()
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "expires_at": bson.M{"$lte": now}}); err != nil {
		return fmt.Errorf("failed to clear expired lock: %w", err)
	}

	lock := &model.BookingLock{
		ID:        lockID,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

// Release deletes the lock only if owner still holds it.
func (r *mongoBookingLockRepository) Release(ctx context.Context, lockID, owner string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
