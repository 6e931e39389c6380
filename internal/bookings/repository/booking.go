package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "roomly/internal/bookings/errors"
	"roomly/pkg/config"
	mongotx "roomly/pkg/db/mongo"
	"roomly/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByToken(ctx context.Context, token string) (*model.Booking, error)
	FindOverlapping(ctx context.Context, roomID, date, start, end, excludeID string) ([]*model.Booking, error)
	FindActiveByDate(ctx context.Context, date string) ([]*model.Booking, error)
	Find(ctx context.Context, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter *model.BookingFilter) (int64, error)
	// MarkCancelled moves an active booking to cancelled. It returns ErrNotActive
	// when the booking was not active at write time.
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

// withTimeout bounds ctx unless it is a transaction's SessionContext, which
// cannot be wrapped without leaving the transaction.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.CreatedAt = booking.CreatedAt.UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", bookingserrors.ErrDuplicateToken, err)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoBookingRepository) FindByToken(ctx context.Context, token string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"cancellation_token": token})
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	var booking model.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, roomID, date, start, end, excludeID string) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"room_id":      roomID,
		"booking_date": date,
		"status":       model.BookingStatusActive,
		"start_time":   bson.M{"$lt": end},
		"end_time":     bson.M{"$gt": start},
	}
	if excludeID != "" {
		if oid, err := primitive.ObjectIDFromHex(excludeID); err == nil {
			filter["_id"] = bson.M{"$ne": oid}
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}).SetLimit(10)
	return r.findMany(ctx, filter, opts)
}

func (r *mongoBookingRepository) FindActiveByDate(ctx context.Context, date string) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"booking_date": date,
		"status":       model.BookingStatusActive,
	}
	opts := options.Find().SetSort(bson.D{{Key: "room_id", Value: 1}, {Key: "start_time", Value: 1}})
	return r.findMany(ctx, filter, opts)
}

func (r *mongoBookingRepository) Find(ctx context.Context, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	direction := -1
	if filter.Ascending {
		direction = 1
	}

	opts := options.Find().
		SetSort(bson.D{
			{Key: "booking_date", Value: direction},
			{Key: "start_time", Value: direction},
			{Key: "_id", Value: direction},
		}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.findMany(ctx, buildFilter(filter), opts)
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter *model.BookingFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) findMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*model.Booking, 0)
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func buildFilter(f *model.BookingFilter) bson.M {
	filter := bson.M{}
	if f == nil {
		return filter
	}

	if f.RoomID != "" {
		filter["room_id"] = f.RoomID
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	dateRange := bson.M{}
	if f.DateFrom != "" {
		dateRange["$gte"] = f.DateFrom
	}
	if f.DateTo != "" {
		dateRange["$lte"] = f.DateTo
	}
	if len(dateRange) > 0 {
		filter["booking_date"] = dateRange
	}

	if f.NotBefore != nil {
		filter["$or"] = []bson.M{
			{"booking_date": bson.M{"$gt": f.NotBefore.Date}},
			{"booking_date": f.NotBefore.Date, "start_time": bson.M{"$gte": f.NotBefore.Clock}},
		}
	}

	return filter
}

func (r *mongoBookingRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.BookingStatusActive}
	update := bson.M{"$set": bson.M{
		"status":       model.BookingStatusCancelled,
		"cancelled_at": at.UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotActive
	}
	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
