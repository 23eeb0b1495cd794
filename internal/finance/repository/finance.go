package repository

import (
	"context"
	"fmt"
	"time"

	"hostel/pkg/config"
	mongotx "hostel/pkg/db/mongo"
	"hostel/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "FinanceTransactions"
)

// FinanceRepository is the append-only ledger store. Append and the two
// pending-entry transitions are the only writes; everything else is a read
// or an aggregation fold.
type FinanceRepository interface {
	Append(ctx context.Context, txn *model.FinanceTransaction) error
	CompletePending(ctx context.Context, bookingID string, amount int64) (bool, error)
	CancelPending(ctx context.Context, bookingID string, amount int64) (bool, error)
	SumByStudent(ctx context.Context, studentID, txnType, status string) (int64, error)
	SumAll(ctx context.Context, txnType, status string) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.FinanceTransaction, error)
	Count(ctx context.Context) (int64, error)
	FindByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.FinanceTransaction, error)
	CountByStudent(ctx context.Context, studentID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoFinanceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoFinanceRepository(cfg *config.Config) FinanceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoFinanceRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoFinanceRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoFinanceRepository) Append(ctx context.Context, txn *model.FinanceTransaction) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	txn.DateCreated = now
	if txn.Status == model.TxnCompleted && txn.DateCompleted == nil {
		txn.DateCompleted = &now
	}

	result, err := r.collection.InsertOne(ctx, txn)
	if err != nil {
		return fmt.Errorf("failed to append finance transaction: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		txn.ID = oid.Hex()
	}
	return nil
}

// CompletePending flips one pending payment entry matching the booking and
// amount to completed. Returns false when no entry matched, which callers
// treat as "already handled".
func (r *mongoFinanceRepository) CompletePending(ctx context.Context, bookingID string, amount int64) (bool, error) {
	return r.transitionPending(ctx, bookingID, amount, model.TxnCompleted)
}

// CancelPending moves one matching pending payment entry to cancelled. Used
// only when verification replaces the pending entry with an applied/credit
// split.
func (r *mongoFinanceRepository) CancelPending(ctx context.Context, bookingID string, amount int64) (bool, error) {
	return r.transitionPending(ctx, bookingID, amount, model.TxnCancelled)
}

func (r *mongoFinanceRepository) transitionPending(ctx context.Context, bookingID string, amount int64, to string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{
		"booking_id":       bookingID,
		"transaction_type": model.TxnPayment,
		"status":           model.TxnPending,
		"amount":           amount,
	}
	update := bson.M{"$set": bson.M{
		"status":         to,
		"date_completed": now,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to transition pending ledger entry: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *mongoFinanceRepository) SumByStudent(ctx context.Context, studentID, txnType, status string) (int64, error) {
	return r.sum(ctx, bson.M{
		"student_id":       studentID,
		"transaction_type": txnType,
		"status":           status,
	})
}

func (r *mongoFinanceRepository) SumAll(ctx context.Context, txnType, status string) (int64, error) {
	return r.sum(ctx, bson.M{
		"transaction_type": txnType,
		"status":           status,
	})
}

func (r *mongoFinanceRepository) sum(ctx context.Context, match bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum finance transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("failed to decode finance sum: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (r *mongoFinanceRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to count finance transactions by status: %w", err)
	}
	return count, nil
}

func (r *mongoFinanceRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.FinanceTransaction, error) {
	return r.find(ctx, bson.M{}, limit, offset)
}

func (r *mongoFinanceRepository) FindByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.FinanceTransaction, error) {
	return r.find(ctx, bson.M{"student_id": studentID}, limit, offset)
}

func (r *mongoFinanceRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.FinanceTransaction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "date_created", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find finance transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txns []*model.FinanceTransaction
	if err = cursor.All(ctx, &txns); err != nil {
		return nil, fmt.Errorf("failed to decode finance transactions: %w", err)
	}

	return txns, nil
}

func (r *mongoFinanceRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count finance transactions: %w", err)
	}
	return count, nil
}

func (r *mongoFinanceRepository) CountByStudent(ctx context.Context, studentID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return 0, fmt.Errorf("failed to count finance transactions by student: %w", err)
	}
	return count, nil
}

func (r *mongoFinanceRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
