package repository

import (
	"context"
	"time"

	bookingerrors "hostel/internal/booking/errors"
	"hostel/pkg/config"
	"hostel/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	LockCollectionName = "EngineLocks"
)

// LockRepository provides advisory locks through unique `_id` inserts. A
// duplicate key means someone else holds the lock; the TTL index on
// expires_at clears locks left behind by crashed holders.
type LockRepository interface {
	Acquire(ctx context.Context, lockID string, ttl time.Duration) error
	Release(ctx context.Context, lockID string) error
}

type mongoLockRepository struct {
	collection *mongo.Collection
}

func NewMongoLockRepository(cfg *config.Config) LockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoLockRepository) Acquire(ctx context.Context, lockID string, ttl time.Duration) error {
	now := time.Now()
	lock := &model.EngineLock{
		ID:        lockID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingerrors.ErrLockHeld
		}
		return err
	}

	return nil
}

func (r *mongoLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
