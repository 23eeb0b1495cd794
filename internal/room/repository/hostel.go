package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	roomerrors "hostel/internal/room/errors"
	"hostel/pkg/config"
	"hostel/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	HostelCollectionName = "Hostels"
)

type HostelRepository interface {
	Create(ctx context.Context, hostel *model.Hostel) error
	FindByID(ctx context.Context, id string) (*model.Hostel, error)
	FindAll(ctx context.Context) ([]*model.Hostel, error)
}

type mongoHostelRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoHostelRepository(cfg *config.Config) HostelRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoHostelRepository{
		cfg:        cfg,
		collection: db.Collection(HostelCollectionName),
	}
}

func (r *mongoHostelRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoHostelRepository) Create(ctx context.Context, hostel *model.Hostel) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, hostel)
	if err != nil {
		return fmt.Errorf("failed to create hostel: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		hostel.ID = oid.Hex()
	}
	return nil
}

func (r *mongoHostelRepository) FindByID(ctx context.Context, id string) (*model.Hostel, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", roomerrors.ErrInvalidID, id)
	}

	var hostel model.Hostel
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&hostel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, roomerrors.ErrHostelNotFound
		}
		return nil, fmt.Errorf("failed to find hostel: %w", err)
	}

	return &hostel, nil
}

func (r *mongoHostelRepository) FindAll(ctx context.Context) ([]*model.Hostel, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find hostels: %w", err)
	}
	defer cursor.Close(ctx)

	var hostels []*model.Hostel
	if err = cursor.All(ctx, &hostels); err != nil {
		return nil, fmt.Errorf("failed to decode hostels: %w", err)
	}

	return hostels, nil
}
