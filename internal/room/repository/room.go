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
	CollectionName = "Rooms"
)

// RoomFilter narrows room listings. Zero values mean "no filter".
type RoomFilter struct {
	HostelID   string
	Gender     string
	VacantOnly bool
}

type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindAll(ctx context.Context, filter RoomFilter, limit int, offset int64) ([]*model.Room, error)
	Count(ctx context.Context, filter RoomFilter) (int64, error)
	UpdateVacancy(ctx context.Context, id string, isVacant bool) error
}

type mongoRoomRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoRoomRepository(cfg *config.Config) RoomRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoRoomRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, room)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		room.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", roomerrors.ErrInvalidID, id)
	}

	var room model.Room
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, roomerrors.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}

	return &room, nil
}

// buildFilter resolves the gender filter through the Hostels collection,
// since gender lives on the hostel, not the room.
func (r *mongoRoomRepository) buildFilter(ctx context.Context, filter RoomFilter) (bson.M, error) {
	query := bson.M{}

	if filter.HostelID != "" {
		query["hostel_id"] = filter.HostelID
	}
	if filter.VacantOnly {
		query["is_vacant"] = true
	}

	if filter.Gender != "" {
		cursor, err := r.db.Collection(HostelCollectionName).Find(ctx, bson.M{"gender": filter.Gender})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hostels by gender: %w", err)
		}
		defer cursor.Close(ctx)

		var hostels []*model.Hostel
		if err = cursor.All(ctx, &hostels); err != nil {
			return nil, fmt.Errorf("failed to decode hostels: %w", err)
		}

		ids := make([]string, 0, len(hostels))
		for _, h := range hostels {
			ids = append(ids, h.ID)
		}
		query["hostel_id"] = bson.M{"$in": ids}
	}

	return query, nil
}

func (r *mongoRoomRepository) FindAll(ctx context.Context, filter RoomFilter, limit int, offset int64) ([]*model.Room, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query, err := r.buildFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "hostel_id", Value: 1}, {Key: "number", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []*model.Room
	if err = cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}

	return rooms, nil
}

func (r *mongoRoomRepository) Count(ctx context.Context, filter RoomFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query, err := r.buildFilter(ctx, filter)
	if err != nil {
		return 0, err
	}

	count, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}

	return count, nil
}

func (r *mongoRoomRepository) UpdateVacancy(ctx context.Context, id string, isVacant bool) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", roomerrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"is_vacant": isVacant}},
	)
	if err != nil {
		return fmt.Errorf("failed to update room vacancy: %w", err)
	}

	if result.MatchedCount == 0 {
		return roomerrors.ErrRoomNotFound
	}

	return nil
}
