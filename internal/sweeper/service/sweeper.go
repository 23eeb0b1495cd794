package service

import (
	"context"
	"time"

	bookingrepo "hostel/internal/booking/repository"
	"hostel/pkg/config"
	"hostel/pkg/model"
)

// BookingExpirer finalizes one overdue booking. Implemented by the booking
// service.
type BookingExpirer interface {
	ExpireOverdue(ctx context.Context, booking *model.Booking) (bool, error)
}

// SweepSummary reports one sweep run.
type SweepSummary struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// Sweeper expires prebooked bookings whose payment window has lapsed. Each
// booking is handled in its own transaction, so one failure never stalls the
// rest of the batch, and the status-guarded transition makes overlapping
// runs safe.
type Sweeper struct {
	repo    bookingrepo.BookingRepository
	expirer BookingExpirer
	cfg     *config.Config
}

func NewSweeper(repo bookingrepo.BookingRepository, expirer BookingExpirer, cfg *config.Config) *Sweeper {
	return &Sweeper{
		repo:    repo,
		expirer: expirer,
		cfg:     cfg,
	}
}

func (s *Sweeper) Run(ctx context.Context) (*SweepSummary, error) {
	summary := &SweepSummary{}
	asOf := time.Now().UTC()

	for {
		overdue, err := s.repo.FindOverdue(ctx, asOf, s.cfg.SweeperBatchSize)
		if err != nil {
			return summary, err
		}
		if len(overdue) == 0 {
			break
		}

		progressed := false
		for _, booking := range overdue {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			summary.Scanned++
			expired, err := s.expirer.ExpireOverdue(ctx, booking)
			if err != nil {
				summary.Failed++
				s.cfg.Log.Error("Failed to expire overdue booking",
					"booking_id", booking.ID,
					"student_id", booking.StudentID,
					"error", err,
				)
				continue
			}
			progressed = true
			if expired {
				summary.Expired++
			}
		}

		// Every booking in the batch failed; stop rather than refetch the
		// same set forever.
		if !progressed {
			break
		}

		if len(overdue) < s.cfg.SweeperBatchSize {
			break
		}
	}

	s.cfg.Log.Info("Sweep complete",
		"scanned", summary.Scanned,
		"expired", summary.Expired,
		"failed", summary.Failed,
	)

	return summary, nil
}
