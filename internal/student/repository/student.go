package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	studenterrors "hostel/internal/student/errors"
	"hostel/pkg/config"
	"hostel/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Students"
)

type StudentRepository interface {
	Create(ctx context.Context, student *model.Student) error
	FindByID(ctx context.Context, id string) (*model.Student, error)
	FindByRegNo(ctx context.Context, regNo string) (*model.Student, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Student, error)
	Count(ctx context.Context) (int64, error)
	UpdateProfile(ctx context.Context, id string, update *model.StudentProfileUpdate) error
}

type mongoStudentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoStudentRepository(cfg *config.Config) StudentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStudentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout unless it already runs inside
// a transaction session, which must not be re-wrapped.
func (r *mongoStudentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoStudentRepository) Create(ctx context.Context, student *model.Student) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	student.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, student)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return studenterrors.ErrDuplicateRegNo
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		student.ID = oid.Hex()
	}
	return nil
}

func (r *mongoStudentRepository) FindByID(ctx context.Context, id string) (*model.Student, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", studenterrors.ErrInvalidID, id)
	}

	var student model.Student
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&student)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, studenterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find student: %w", err)
	}

	return &student, nil
}

func (r *mongoStudentRepository) FindByRegNo(ctx context.Context, regNo string) (*model.Student, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var student model.Student
	err := r.collection.FindOne(ctx, bson.M{"reg_no": regNo}).Decode(&student)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, studenterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find student by reg_no: %w", err)
	}

	return &student, nil
}

func (r *mongoStudentRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Student, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "reg_no", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find students: %w", err)
	}
	defer cursor.Close(ctx)

	var students []*model.Student
	if err = cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("failed to decode students: %w", err)
	}

	return students, nil
}

func (r *mongoStudentRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}

	return count, nil
}

func (r *mongoStudentRepository) UpdateProfile(ctx context.Context, id string, update *model.StudentProfileUpdate) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", studenterrors.ErrInvalidID, id)
	}

	set := bson.M{}
	if update.FullName != "" {
		set["full_name"] = update.FullName
	}
	if update.Phone != "" {
		set["phone"] = update.Phone
	}
	if len(set) == 0 {
		return nil
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update student profile: %w", err)
	}

	if result.MatchedCount == 0 {
		return studenterrors.ErrNotFound
	}

	return nil
}
