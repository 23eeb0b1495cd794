package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingerrors "hostel/internal/booking/errors"
	"hostel/internal/booking/repository"
	"hostel/internal/booking/validator"
	financeservice "hostel/internal/finance/service"
	paymentrepo "hostel/internal/payment/repository"
	roomerrors "hostel/internal/room/errors"
	roomrepo "hostel/internal/room/repository"
	studenterrors "hostel/internal/student/errors"
	studentrepo "hostel/internal/student/repository"
	"hostel/pkg/config"
	apperrors "hostel/pkg/errors"
	"hostel/pkg/model"
)

// NoticeEmitter publishes a notification intent after a transaction has
// committed. Emission is fire-and-forget; failures never affect booking
// state.
type NoticeEmitter interface {
	Emit(ctx context.Context, studentID, subject, message string)
}

// UnreadCounter reports a student's unread notice count for the dashboard.
// Satisfied by the notification repository.
type UnreadCounter interface {
	CountUnread(ctx context.Context, studentID string) (int64, error)
}

type BookingService interface {
	Prebook(ctx context.Context, req *model.PrebookRequest) (*model.BookingResult, error)
	Cancel(ctx context.Context, id string, req *model.CancelRequest) (*model.BookingResult, error)
	Release(ctx context.Context, id string) (*model.BookingResult, error)
	ChangeRoom(ctx context.Context, id string, req *model.ChangeRoomRequest) (*model.BookingResult, error)
	Renew(ctx context.Context, id string) (*model.BookingResult, error)
	ProcessRenewal(ctx context.Context, req *model.RenewalRequest) (*model.BookingResult, error)
	SettleIfFullyPaid(ctx context.Context, bookingID string) (bool, error)
	ExpireOverdue(ctx context.Context, booking *model.Booking) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	Roommates(ctx context.Context, id string) ([]*model.Student, error)
	Dashboard(ctx context.Context, studentID string) (*model.DashboardSummary, error)
}

// errAlreadyFinalized aborts a transaction when a status-guarded update
// found the booking finalized by a concurrent operation. Mapped to an
// idempotent no-op success at the service boundary.
var errAlreadyFinalized = errors.New("booking already finalized")

type bookingService struct {
	repo        repository.BookingRepository
	lockRepo    repository.LockRepository
	roomRepo    roomrepo.RoomRepository
	hostelRepo  roomrepo.HostelRepository
	studentRepo studentrepo.StudentRepository
	paymentRepo paymentrepo.PaymentRepository
	finance     financeservice.FinanceService
	emitter     NoticeEmitter
	unread      UnreadCounter
	validator   *validator.BookingValidator
	cfg         *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.LockRepository,
	roomRepo roomrepo.RoomRepository,
	hostelRepo roomrepo.HostelRepository,
	studentRepo studentrepo.StudentRepository,
	paymentRepo paymentrepo.PaymentRepository,
	finance financeservice.FinanceService,
	emitter NoticeEmitter,
	unread UnreadCounter,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:        repo,
		lockRepo:    lockRepo,
		roomRepo:    roomRepo,
		hostelRepo:  hostelRepo,
		studentRepo: studentRepo,
		paymentRepo: paymentRepo,
		finance:     finance,
		emitter:     emitter,
		unread:      unread,
		validator:   validator,
		cfg:         cfg,
	}
}

func (s *bookingService) Prebook(ctx context.Context, req *model.PrebookRequest) (*model.BookingResult, error) {
	if err := s.validator.ValidatePrebook(req); err != nil {
		s.cfg.Log.Warn("Prebook validation failed", "error", err)
		return nil, apperrors.Validation("Invalid prebook request", map[string]any{"error": err.Error()})
	}

	tokenAmount := req.TokenAmount
	if tokenAmount == 0 {
		tokenAmount = s.cfg.TokenPaymentAmount
	}
	if tokenAmount <= 0 {
		return nil, apperrors.InvalidAmount(tokenAmount)
	}

	student, err := s.getStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	room, hostel, err := s.getRoomWithHostel(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}

	if hostel.Gender != student.Gender {
		return nil, apperrors.Conflict(fmt.Sprintf("Room is in a %s hostel", hostel.Gender))
	}

	if err := s.acquireLock(ctx, model.RoomLockID(room.ID)); err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, model.RoomLockID(room.ID))

	// The student lock serializes prebooks by the same student against
	// different rooms, so the active-booking guard below cannot race.
	if err := s.acquireLock(ctx, model.StudentLockID(student.ID)); err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, model.StudentLockID(student.ID))

	booking := &model.Booking{
		StudentID:  student.ID,
		RoomID:     room.ID,
		Status:     model.BookingPrebooked,
		DateBooked: time.Now().UTC().Truncate(time.Millisecond),
		ExpiryDate: s.prebookExpiry(),
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		active, err := s.repo.FindActiveByStudent(txCtx, student.ID)
		if err != nil {
			return apperrors.Internal("Failed to check active bookings", err)
		}
		if active != nil {
			return apperrors.Conflict("Student already has an active booking")
		}

		occupied, err := s.repo.CountActiveByRoom(txCtx, room.ID)
		if err != nil {
			return apperrors.Internal("Failed to count room occupancy", err)
		}
		if occupied >= room.Capacity {
			return apperrors.RoomAtCapacity(room.ID)
		}

		if err := s.repo.Create(txCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		payment := &model.Payment{
			BookingID:   booking.ID,
			Amount:      tokenAmount,
			PaymentType: model.PaymentPrepayment,
			Verified:    true,
		}
		if err := s.paymentRepo.Create(txCtx, payment); err != nil {
			return apperrors.Internal("Failed to record token payment", err)
		}

		desc := fmt.Sprintf("Token payment for room %s, %s", room.Number, hostel.Name)
		if err := s.finance.AppendPaymentEntry(txCtx, student.ID, booking.ID, tokenAmount, true, desc); err != nil {
			return err
		}

		return s.recomputeVacancy(txCtx, room.ID)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to prebook room", "student_id", student.ID, "room_id", room.ID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Room prebooked",
		"booking_id", booking.ID,
		"student_id", student.ID,
		"room_id", room.ID,
		"token_amount", tokenAmount,
		"expiry_date", booking.ExpiryDate,
	)

	s.emitter.Emit(ctx, student.ID, "Booking Confirmation",
		fmt.Sprintf("Your booking for room %s in %s is confirmed. Complete payment by %s to keep the room.",
			room.Number, hostel.Name, booking.ExpiryDate.Format("2006-01-02")))

	return &model.BookingResult{
		BookingID:     booking.ID,
		Status:        booking.Status,
		TotalVerified: tokenAmount,
		TotalTendered: tokenAmount,
	}, nil
}

func (s *bookingService) Cancel(ctx context.Context, id string, req *model.CancelRequest) (*model.BookingResult, error) {
	if req == nil {
		req = &model.CancelRequest{}
	}
	if err := s.validator.ValidateCancel(req); err != nil {
		return nil, apperrors.Validation("Invalid cancel request", map[string]any{"error": err.Error()})
	}

	desc := "Refund for cancelled booking"
	if req.Reason != "" {
		desc = fmt.Sprintf("Refund for cancelled booking: %s", req.Reason)
	}

	return s.finalize(ctx, id, model.ActiveBookingStatuses, desc, "Booking Cancelled")
}

// Release frees a held room before any full payment has landed. A fully
// paid booking is contractually locked and must go through Cancel.
func (s *bookingService) Release(ctx context.Context, id string) (*model.BookingResult, error) {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingPaid {
		return nil, apperrors.Conflict("A fully paid booking cannot be released; cancel it instead")
	}

	return s.finalize(ctx, id, []string{model.BookingPrebooked}, "Refund for released booking", "Room Released")
}

// finalize runs the shared expire path: status-guarded transition to
// expired, exactly one refund entry sized to the total tendered, vacancy
// recompute, then the notice.
func (s *bookingService) finalize(ctx context.Context, id string, from []string, refundDesc, subject string) (*model.BookingResult, error) {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if !booking.IsActive() {
		return &model.BookingResult{
			BookingID:      booking.ID,
			Status:         booking.Status,
			AlreadySettled: true,
		}, nil
	}

	var refund int64
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		flipped, err := s.repo.UpdateStatus(txCtx, booking.ID, from, model.BookingExpired, nil)
		if err != nil {
			return apperrors.Internal("Failed to expire booking", err)
		}
		if !flipped {
			return errAlreadyFinalized
		}

		tendered, err := s.paymentRepo.TotalByBooking(txCtx, booking.ID, false)
		if err != nil {
			return apperrors.Internal("Failed to total booking payments", err)
		}

		if tendered > 0 {
			if err := s.finance.AppendRefund(txCtx, booking.StudentID, booking.ID, tendered, refundDesc); err != nil {
				return err
			}
			refund = tendered
		}

		if booking.RoomID != "" {
			return s.recomputeVacancy(txCtx, booking.RoomID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyFinalized) {
			current, getErr := s.getBooking(ctx, booking.ID)
			if getErr != nil {
				return nil, getErr
			}
			return &model.BookingResult{
				BookingID:      current.ID,
				Status:         current.Status,
				AlreadySettled: true,
			}, nil
		}
		s.cfg.Log.Error("Failed to finalize booking", "booking_id", booking.ID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking finalized",
		"booking_id", booking.ID,
		"student_id", booking.StudentID,
		"refund_amount", refund,
	)

	s.emitter.Emit(ctx, booking.StudentID, subject,
		fmt.Sprintf("Your booking has ended. %d has been returned to your reusable balance.", refund))

	return &model.BookingResult{
		BookingID:     booking.ID,
		Status:        model.BookingExpired,
		RefundAmount:  refund,
		TotalTendered: refund,
	}, nil
}

func (s *bookingService) ChangeRoom(ctx context.Context, id string, req *model.ChangeRoomRequest) (*model.BookingResult, error) {
	if err := s.validator.ValidateChangeRoom(req); err != nil {
		return nil, apperrors.Validation("Invalid change-room request", map[string]any{"error": err.Error()})
	}

	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsActive() {
		return nil, apperrors.BookingNotActive(booking.ID, booking.Status)
	}
	if booking.RoomID == req.NewRoomID {
		return &model.BookingResult{
			BookingID:      booking.ID,
			Status:         booking.Status,
			AlreadySettled: true,
		}, nil
	}

	student, err := s.getStudent(ctx, booking.StudentID)
	if err != nil {
		return nil, err
	}

	newRoom, newHostel, err := s.getRoomWithHostel(ctx, req.NewRoomID)
	if err != nil {
		return nil, err
	}
	if newHostel.Gender != student.Gender {
		return nil, apperrors.Conflict(fmt.Sprintf("Room is in a %s hostel", newHostel.Gender))
	}

	if err := s.acquireLock(ctx, model.RoomLockID(newRoom.ID)); err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, model.RoomLockID(newRoom.ID))

	oldRoomID := booking.RoomID

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		occupied, err := s.repo.CountActiveByRoom(txCtx, newRoom.ID)
		if err != nil {
			return apperrors.Internal("Failed to count room occupancy", err)
		}
		if occupied >= newRoom.Capacity {
			return apperrors.RoomAtCapacity(newRoom.ID)
		}

		moved, err := s.repo.ReassignRoom(txCtx, booking.ID, newRoom.ID, model.ActiveBookingStatuses)
		if err != nil {
			return apperrors.Internal("Failed to reassign room", err)
		}
		if !moved {
			return errAlreadyFinalized
		}

		if oldRoomID != "" {
			if err := s.recomputeVacancy(txCtx, oldRoomID); err != nil {
				return err
			}
		}
		return s.recomputeVacancy(txCtx, newRoom.ID)
	})
	if err != nil {
		if errors.Is(err, errAlreadyFinalized) {
			return nil, apperrors.BookingNotActive(booking.ID, model.BookingExpired)
		}
		s.cfg.Log.Error("Failed to change room", "booking_id", booking.ID, "new_room_id", newRoom.ID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking moved to new room",
		"booking_id", booking.ID,
		"old_room_id", oldRoomID,
		"new_room_id", newRoom.ID,
	)

	s.emitter.Emit(ctx, booking.StudentID, "Room Changed",
		fmt.Sprintf("Your booking has been moved to room %s in %s.", newRoom.Number, newHostel.Name))

	return &model.BookingResult{
		BookingID: booking.ID,
		Status:    booking.Status,
	}, nil
}

// Renew reactivates an expired booking by drawing the configured token
// amount from the student's ledger balance.
func (s *bookingService) Renew(ctx context.Context, id string) (*model.BookingResult, error) {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.IsActive() {
		return &model.BookingResult{
			BookingID:      booking.ID,
			Status:         booking.Status,
			AlreadySettled: true,
		}, nil
	}
	if booking.RoomID == "" {
		return nil, apperrors.Conflict("Booking has no room to renew into")
	}

	room, hostel, err := s.getRoomWithHostel(ctx, booking.RoomID)
	if err != nil {
		return nil, err
	}

	tokenAmount := s.cfg.TokenPaymentAmount

	if err := s.acquireLock(ctx, model.RoomLockID(room.ID)); err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, model.RoomLockID(room.ID))

	if err := s.acquireLock(ctx, model.StudentLockID(booking.StudentID)); err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, model.StudentLockID(booking.StudentID))

	newExpiry := s.prebookExpiry()

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		occupied, err := s.repo.CountActiveByRoom(txCtx, room.ID)
		if err != nil {
			return apperrors.Internal("Failed to count room occupancy", err)
		}
		if occupied >= room.Capacity {
			return apperrors.RoomAtCapacity(room.ID)
		}

		flipped, err := s.repo.UpdateStatus(txCtx, booking.ID, []string{model.BookingExpired}, model.BookingPrebooked, &newExpiry)
		if err != nil {
			return apperrors.Internal("Failed to reactivate booking", err)
		}
		if !flipped {
			return errAlreadyFinalized
		}

		if err := s.finance.DrawRenewal(txCtx, booking.StudentID, booking.ID, tokenAmount, "Renewal token draw"); err != nil {
			return err
		}

		// The draw funds a fresh token payment; no payment ledger entry is
		// appended because no new money entered the institution.
		payment := &model.Payment{
			BookingID:   booking.ID,
			Amount:      tokenAmount,
			PaymentType: model.PaymentPrepayment,
			Verified:    true,
		}
		if err := s.paymentRepo.Create(txCtx, payment); err != nil {
			return apperrors.Internal("Failed to record renewal token payment", err)
		}

		return s.recomputeVacancy(txCtx, room.ID)
	})
	if err != nil {
		if errors.Is(err, errAlreadyFinalized) {
			current, getErr := s.getBooking(ctx, booking.ID)
			if getErr != nil {
				return nil, getErr
			}
			return &model.BookingResult{
				BookingID:      current.ID,
				Status:         current.Status,
				AlreadySettled: true,
			}, nil
		}
		s.cfg.Log.Error("Failed to renew booking", "booking_id", booking.ID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking renewed",
		"booking_id", booking.ID,
		"student_id", booking.StudentID,
		"renewal_amount", tokenAmount,
		"new_expiry", newExpiry,
	)

	s.emitter.Emit(ctx, booking.StudentID, "Booking Renewed",
		fmt.Sprintf("Your booking for room %s in %s is active again. Complete payment by %s.",
			room.Number, hostel.Name, newExpiry.Format("2006-01-02")))

	return &model.BookingResult{
		BookingID:     booking.ID,
		Status:        model.BookingPrebooked,
		RenewalAmount: tokenAmount,
	}, nil
}

// ProcessRenewal draws an arbitrary amount from the student's balance
// toward an active booking, then re-runs the fully-paid check.
func (s *bookingService) ProcessRenewal(ctx context.Context, req *model.RenewalRequest) (*model.BookingResult, error) {
	if err := s.validator.ValidateRenewal(req); err != nil {
		return nil, apperrors.Validation("Invalid renewal request", map[string]any{"error": err.Error()})
	}
	if req.Amount <= 0 {
		return nil, apperrors.InvalidAmount(req.Amount)
	}

	booking, err := s.getBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsActive() {
		return nil, apperrors.BookingNotActive(booking.ID, booking.Status)
	}

	room, err := s.getRoom(ctx, booking.RoomID)
	if err != nil {
		return nil, err
	}

	if err := s.acquireLock(ctx, model.StudentLockID(booking.StudentID)); err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, model.StudentLockID(booking.StudentID))

	var settled bool
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.finance.DrawRenewal(txCtx, booking.StudentID, booking.ID, req.Amount, "Balance draw toward booking"); err != nil {
			return err
		}

		paymentType := model.PaymentPrepayment
		if req.Amount >= room.Price {
			paymentType = model.PaymentFull
		}
		payment := &model.Payment{
			BookingID:   booking.ID,
			Amount:      req.Amount,
			PaymentType: paymentType,
			Verified:    true,
		}
		if err := s.paymentRepo.Create(txCtx, payment); err != nil {
			return apperrors.Internal("Failed to record renewal payment", err)
		}

		var settleErr error
		settled, settleErr = s.SettleIfFullyPaid(txCtx, booking.ID)
		return settleErr
	})
	if err != nil {
		s.cfg.Log.Error("Failed to process renewal", "booking_id", booking.ID, "amount", req.Amount, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Renewal processed",
		"booking_id", booking.ID,
		"student_id", booking.StudentID,
		"amount", req.Amount,
		"settled", settled,
	)

	message := fmt.Sprintf("%d from your balance has been applied to your booking.", req.Amount)
	if settled {
		message += " Your room is now fully paid."
	}
	s.emitter.Emit(ctx, booking.StudentID, "Renewal Applied", message)

	status := model.BookingPrebooked
	if settled {
		status = model.BookingPaid
	}
	return &model.BookingResult{
		BookingID:     booking.ID,
		Status:        status,
		RenewalAmount: req.Amount,
	}, nil
}

// SettleIfFullyPaid is the single fully-paid checkpoint: when the verified
// total reaches the room price, a prebooked booking transitions to paid
// exactly once. Safe to call from inside a transaction. Returns whether the
// booking is paid after the check.
func (s *bookingService) SettleIfFullyPaid(ctx context.Context, bookingID string) (bool, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}

	if booking.Status == model.BookingPaid {
		return true, nil
	}
	if booking.Status != model.BookingPrebooked {
		return false, nil
	}
	if booking.RoomID == "" {
		return false, nil
	}

	room, err := s.getRoom(ctx, booking.RoomID)
	if err != nil {
		return false, err
	}

	verified, err := s.paymentRepo.TotalByBooking(ctx, booking.ID, true)
	if err != nil {
		return false, apperrors.Internal("Failed to total verified payments", err)
	}

	if verified < room.Price {
		return false, nil
	}

	flipped, err := s.repo.UpdateStatus(ctx, booking.ID, []string{model.BookingPrebooked}, model.BookingPaid, nil)
	if err != nil {
		return false, apperrors.Internal("Failed to mark booking paid", err)
	}

	if flipped {
		s.cfg.Log.Info("Booking fully paid",
			"booking_id", booking.ID,
			"student_id", booking.StudentID,
			"total_verified", verified,
		)
	}

	// Either this call flipped it or a concurrent one did; both mean paid.
	return true, nil
}

// ExpireOverdue applies the prebooked→expired transition to one overdue
// booking inside its own transaction. Returns false when a concurrent run
// already handled it.
func (s *bookingService) ExpireOverdue(ctx context.Context, booking *model.Booking) (bool, error) {
	var refund int64
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		flipped, err := s.repo.UpdateStatus(txCtx, booking.ID, []string{model.BookingPrebooked}, model.BookingExpired, nil)
		if err != nil {
			return apperrors.Internal("Failed to expire booking", err)
		}
		if !flipped {
			return errAlreadyFinalized
		}

		tendered, err := s.paymentRepo.TotalByBooking(txCtx, booking.ID, false)
		if err != nil {
			return apperrors.Internal("Failed to total booking payments", err)
		}
		if tendered > 0 {
			if err := s.finance.AppendRefund(txCtx, booking.StudentID, booking.ID, tendered, "Refund for expired booking"); err != nil {
				return err
			}
			refund = tendered
		}

		if booking.RoomID != "" {
			return s.recomputeVacancy(txCtx, booking.RoomID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyFinalized) {
			return false, nil
		}
		return false, err
	}

	s.cfg.Log.Info("Overdue booking expired",
		"booking_id", booking.ID,
		"student_id", booking.StudentID,
		"refund_amount", refund,
	)

	s.emitter.Emit(ctx, booking.StudentID, "Booking Expired",
		fmt.Sprintf("Your unpaid booking has expired. %d has been returned to your reusable balance.", refund))

	return true, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return s.getBooking(ctx, id)
}

func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// Roommates lists the paid occupants sharing the booking's room. Visible
// only once the booking itself is paid.
func (s *bookingService) Roommates(ctx context.Context, id string) ([]*model.Student, error) {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingPaid {
		return nil, apperrors.Conflict("Roommates are visible once the booking is fully paid")
	}

	others, err := s.repo.FindActiveByRoom(ctx, booking.RoomID)
	if err != nil {
		return nil, apperrors.Internal("Failed to find room occupants", err)
	}

	var roommates []*model.Student
	for _, other := range others {
		if other.ID == booking.ID || other.Status != model.BookingPaid {
			continue
		}
		student, err := s.getStudent(ctx, other.StudentID)
		if err != nil {
			return nil, err
		}
		roommates = append(roommates, student)
	}

	return roommates, nil
}

func (s *bookingService) Dashboard(ctx context.Context, studentID string) (*model.DashboardSummary, error) {
	student, err := s.getStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	summary := &model.DashboardSummary{Student: *student}

	booking, err := s.repo.FindActiveByStudent(ctx, student.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to find active booking", err)
	}

	if booking != nil {
		summary.Booking = booking

		if booking.RoomID != "" {
			room, err := s.getRoom(ctx, booking.RoomID)
			if err != nil {
				return nil, err
			}

			tendered, err := s.paymentRepo.TotalByBooking(ctx, booking.ID, false)
			if err != nil {
				return nil, apperrors.Internal("Failed to total booking payments", err)
			}

			summary.TotalDue = room.Price
			summary.TotalTendered = tendered
			summary.Remaining = max(0, room.Price-tendered)
			if room.Price > 0 {
				summary.ProgressPct = int(min(100, tendered*100/room.Price))
			}
		}
	}

	unread, err := s.unread.CountUnread(ctx, student.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to count unread notices", err)
	}
	summary.UnreadNotices = unread

	balance, err := s.finance.Balance(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	summary.Balance = balance

	return summary, nil
}

// --- Helpers ---

func (s *bookingService) prebookExpiry() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond).
		AddDate(0, 0, s.cfg.PrebookExpiryDays)
}

// recomputeVacancy refreshes the derived is_vacant cache from the live
// active-booking count. Must run inside the same transaction as the change
// that made it stale.
func (s *bookingService) recomputeVacancy(ctx context.Context, roomID string) error {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return apperrors.Internal("Failed to load room for vacancy recompute", err)
	}

	occupied, err := s.repo.CountActiveByRoom(ctx, roomID)
	if err != nil {
		return apperrors.Internal("Failed to count room occupancy", err)
	}

	if err := s.roomRepo.UpdateVacancy(ctx, roomID, occupied < room.Capacity); err != nil {
		return apperrors.Internal("Failed to update room vacancy", err)
	}

	return nil
}

func (s *bookingService) acquireLock(ctx context.Context, lockID string) error {
	err := s.lockRepo.Acquire(ctx, lockID, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrLockHeld) {
			return apperrors.Conflict("The resource is busy with another request. Please try again.")
		}
		return apperrors.Internal("Failed to acquire advisory lock", err)
	}
	return nil
}

func (s *bookingService) releaseLock(ctx context.Context, lockID string) {
	if err := s.lockRepo.Release(ctx, lockID); err != nil {
		s.cfg.Log.Warn("Failed to release advisory lock", "lock_id", lockID, "error", err)
	}
}

func (s *bookingService) getBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) getStudent(ctx context.Context, id string) (*model.Student, error) {
	student, err := s.studentRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, studenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Student", id)
		}
		if errors.Is(err, studenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid student ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve student", err)
	}
	return student, nil
}

func (s *bookingService) getRoom(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, roomerrors.ErrRoomNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		if errors.Is(err, roomerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid room ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}
	return room, nil
}

func (s *bookingService) getRoomWithHostel(ctx context.Context, roomID string) (*model.Room, *model.Hostel, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	hostel, err := s.hostelRepo.FindByID(ctx, room.HostelID)
	if err != nil {
		if errors.Is(err, roomerrors.ErrHostelNotFound) {
			return nil, nil, apperrors.NotFoundWithID("Hostel", room.HostelID)
		}
		return nil, nil, apperrors.Internal("Failed to retrieve hostel", err)
	}

	return room, hostel, nil
}
