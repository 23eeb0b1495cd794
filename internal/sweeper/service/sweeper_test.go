package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hostel/pkg/config"
	mongotx "hostel/pkg/db/mongo"
	"hostel/pkg/logger"
	"hostel/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overdueStore hands out prebooked bookings in batches, the way the real
// repository pages overdue rows.
type overdueStore struct {
	bookings []*model.Booking
}

func (s *overdueStore) Create(ctx context.Context, booking *model.Booking) error { return nil }

func (s *overdueStore) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return nil, nil
}

func (s *overdueStore) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (s *overdueStore) Count(ctx context.Context) (int64, error) { return 0, nil }

func (s *overdueStore) FindActiveByStudent(ctx context.Context, studentID string) (*model.Booking, error) {
	return nil, nil
}

func (s *overdueStore) FindActiveByRoom(ctx context.Context, roomID string) ([]*model.Booking, error) {
	return nil, nil
}

func (s *overdueStore) CountActiveByRoom(ctx context.Context, roomID string) (int64, error) {
	return 0, nil
}

func (s *overdueStore) UpdateStatus(ctx context.Context, id string, from []string, to string, newExpiry *time.Time) (bool, error) {
	return false, nil
}

func (s *overdueStore) ReassignRoom(ctx context.Context, id, newRoomID string, from []string) (bool, error) {
	return false, nil
}

func (s *overdueStore) FindOverdue(ctx context.Context, asOf time.Time, limit int) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range s.bookings {
		if b.Status == model.BookingPrebooked && b.ExpiryDate.Before(asOf) {
			out = append(out, b)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *overdueStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type stubExpirer struct {
	expireFunc func(ctx context.Context, booking *model.Booking) (bool, error)
	calls      int
}

func (e *stubExpirer) ExpireOverdue(ctx context.Context, booking *model.Booking) (bool, error) {
	e.calls++
	return e.expireFunc(ctx, booking)
}

func newSweeperFixture(t *testing.T, batchSize int, overdueCount int) (*Sweeper, *overdueStore, *stubExpirer) {
	t.Helper()

	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})

	store := &overdueStore{}
	for i := 0; i < overdueCount; i++ {
		store.bookings = append(store.bookings, &model.Booking{
			ID:         fmt.Sprintf("%024x", i+1),
			StudentID:  fmt.Sprintf("%024x", 1000+i),
			Status:     model.BookingPrebooked,
			ExpiryDate: time.Now().UTC().Add(-24 * time.Hour),
		})
	}

	expirer := &stubExpirer{
		expireFunc: func(ctx context.Context, booking *model.Booking) (bool, error) {
			booking.Status = model.BookingExpired
			return true, nil
		},
	}

	cfg := &config.Config{
		Log:              log,
		SweeperBatchSize: batchSize,
	}

	return NewSweeper(store, expirer, cfg), store, expirer
}

func TestRun_ExpiresOverdueInBatches(t *testing.T) {
	sweeper, store, expirer := newSweeperFixture(t, 2, 5)

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Scanned)
	assert.Equal(t, 5, summary.Expired)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 5, expirer.calls)

	for _, b := range store.bookings {
		assert.Equal(t, model.BookingExpired, b.Status)
	}
}

func TestRun_NothingOverdue(t *testing.T) {
	sweeper, _, expirer := newSweeperFixture(t, 10, 0)

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Scanned)
	assert.Equal(t, 0, expirer.calls)
}

func TestRun_SkipsAlreadyFinalizedBookings(t *testing.T) {
	sweeper, _, expirer := newSweeperFixture(t, 10, 3)

	// A booking another operation finalized first reports expired=false
	// without error. The run still completes cleanly.
	expirer.expireFunc = func(ctx context.Context, booking *model.Booking) (bool, error) {
		booking.Status = model.BookingExpired
		if expirer.calls == 1 {
			return false, nil
		}
		return true, nil
	}

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 2, summary.Expired)
	assert.Equal(t, 0, summary.Failed)
}

func TestRun_CountsFailuresAndKeepsGoing(t *testing.T) {
	sweeper, store, expirer := newSweeperFixture(t, 10, 3)

	expirer.expireFunc = func(ctx context.Context, booking *model.Booking) (bool, error) {
		if booking.ID == store.bookings[1].ID {
			return false, errors.New("transient write conflict")
		}
		booking.Status = model.BookingExpired
		return true, nil
	}

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 2, summary.Expired)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, model.BookingPrebooked, store.bookings[1].Status)
}

func TestRun_StopsWhenWholeBatchFails(t *testing.T) {
	sweeper, _, expirer := newSweeperFixture(t, 2, 5)

	expirer.expireFunc = func(ctx context.Context, booking *model.Booking) (bool, error) {
		return false, errors.New("ledger append failed")
	}

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)

	// Failed bookings stay overdue; without the stop the run would refetch
	// the same batch forever.
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 0, summary.Expired)
}

func TestRun_HonorsContextCancellation(t *testing.T) {
	sweeper, _, expirer := newSweeperFixture(t, 10, 3)

	ctx, cancel := context.WithCancel(context.Background())
	expirer.expireFunc = func(ctx context.Context, booking *model.Booking) (bool, error) {
		cancel()
		booking.Status = model.BookingExpired
		return true, nil
	}

	summary, err := sweeper.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Scanned)
}
