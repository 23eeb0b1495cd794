package service

import (
	"context"
	"errors"
	"fmt"

	bookingerrors "hostel/internal/booking/errors"
	bookingrepo "hostel/internal/booking/repository"
	financeservice "hostel/internal/finance/service"
	paymenterrors "hostel/internal/payment/errors"
	"hostel/internal/payment/repository"
	"hostel/internal/payment/validator"
	roomerrors "hostel/internal/room/errors"
	roomrepo "hostel/internal/room/repository"
	"hostel/pkg/config"
	apperrors "hostel/pkg/errors"
	"hostel/pkg/model"
)

// Settler runs the fully-paid check after verified money lands. Implemented
// by the booking service; kept as a local interface so payments never import
// the booking service package.
type Settler interface {
	SettleIfFullyPaid(ctx context.Context, bookingID string) (bool, error)
}

// NoticeEmitter publishes a notification intent after commit.
type NoticeEmitter interface {
	Emit(ctx context.Context, studentID, subject, message string)
}

type PaymentService interface {
	Record(ctx context.Context, req *model.PaymentRequest) (*model.PaymentResult, error)
	Verify(ctx context.Context, paymentID string) (*model.PaymentResult, error)
	GetByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error)
}

// errAlreadyVerified aborts the verify transaction when a concurrent call
// flipped the payment first.
var errAlreadyVerified = errors.New("payment already verified")

type paymentService struct {
	repo        repository.PaymentRepository
	bookingRepo bookingrepo.BookingRepository
	lockRepo    bookingrepo.LockRepository
	roomRepo    roomrepo.RoomRepository
	finance     financeservice.FinanceService
	settler     Settler
	emitter     NoticeEmitter
	validator   *validator.PaymentValidator
	cfg         *config.Config
}

func NewPaymentService(
	repo repository.PaymentRepository,
	bookingRepo bookingrepo.BookingRepository,
	lockRepo bookingrepo.LockRepository,
	roomRepo roomrepo.RoomRepository,
	finance financeservice.FinanceService,
	settler Settler,
	emitter NoticeEmitter,
	validator *validator.PaymentValidator,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		repo:        repo,
		bookingRepo: bookingRepo,
		lockRepo:    lockRepo,
		roomRepo:    roomRepo,
		finance:     finance,
		settler:     settler,
		emitter:     emitter,
		validator:   validator,
		cfg:         cfg,
	}
}

// Record accepts money tendered against an active booking. A verified
// payment is split at the room price: the applied portion is ledgered
// against the booking and anything beyond it becomes a student credit. An
// unverified payment lands as a single pending ledger entry that Verify
// later resolves.
func (s *paymentService) Record(ctx context.Context, req *model.PaymentRequest) (*model.PaymentResult, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, apperrors.Validation("Invalid payment request", map[string]any{"error": err.Error()})
	}
	if req.Amount <= 0 {
		return nil, apperrors.InvalidAmount(req.Amount)
	}

	booking, room, err := s.getActiveBookingWithRoom(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if err := s.acquireStudentLock(ctx, booking.StudentID); err != nil {
		return nil, err
	}
	defer s.releaseStudentLock(ctx, booking.StudentID)

	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = model.PaymentPrepayment
		if req.Amount >= room.Price {
			paymentType = model.PaymentFull
		}
	}

	payment := &model.Payment{
		BookingID:   booking.ID,
		Amount:      req.Amount,
		PaymentType: paymentType,
		Verified:    req.Verified,
	}

	var credit int64
	var settled bool
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, payment); err != nil {
			return apperrors.Internal("Failed to record payment", err)
		}

		if !req.Verified {
			desc := fmt.Sprintf("Unverified payment %s awaiting confirmation", payment.Reference)
			return s.finance.AppendPaymentEntry(txCtx, booking.StudentID, booking.ID, req.Amount, false, desc)
		}

		verified, err := s.repo.TotalByBooking(txCtx, booking.ID, true)
		if err != nil {
			return apperrors.Internal("Failed to total verified payments", err)
		}

		// The insert above already counts this payment in the verified total.
		priorVerified := verified - req.Amount
		applied, excess := splitAtPrice(req.Amount, priorVerified, room.Price)
		credit = excess

		if applied > 0 {
			desc := fmt.Sprintf("Payment %s toward room %s", payment.Reference, room.Number)
			if err := s.finance.AppendPaymentEntry(txCtx, booking.StudentID, booking.ID, applied, true, desc); err != nil {
				return err
			}
		}
		if excess > 0 {
			desc := fmt.Sprintf("Overpayment credit from payment %s", payment.Reference)
			if err := s.finance.AppendCredit(txCtx, booking.StudentID, excess, desc); err != nil {
				return err
			}
		}

		var settleErr error
		settled, settleErr = s.settler.SettleIfFullyPaid(txCtx, booking.ID)
		return settleErr
	})
	if err != nil {
		s.cfg.Log.Error("Failed to record payment", "booking_id", booking.ID, "amount", req.Amount, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Payment recorded",
		"payment_id", payment.ID,
		"booking_id", booking.ID,
		"amount", req.Amount,
		"verified", req.Verified,
		"credit", credit,
		"settled", settled,
	)

	s.notifyPaymentOutcome(ctx, booking, room, settled, credit)

	return s.buildResult(ctx, payment, booking.ID, room.Price, credit, settled)
}

// Verify flips an unverified payment and resolves its pending ledger entry:
// completed when the whole amount fits under the room price, otherwise
// cancelled and replaced by an applied entry plus an overpayment credit, all
// in the same transaction.
func (s *paymentService) Verify(ctx context.Context, paymentID string) (*model.PaymentResult, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	booking, room, err := s.getActiveBookingWithRoom(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}

	if payment.Verified {
		return s.buildResult(ctx, payment, booking.ID, room.Price, 0, booking.Status == model.BookingPaid)
	}

	if err := s.acquireStudentLock(ctx, booking.StudentID); err != nil {
		return nil, err
	}
	defer s.releaseStudentLock(ctx, booking.StudentID)

	var credit int64
	var settled bool
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		flipped, err := s.repo.MarkVerified(txCtx, payment.ID)
		if err != nil {
			return apperrors.Internal("Failed to mark payment verified", err)
		}
		if !flipped {
			return errAlreadyVerified
		}

		verified, err := s.repo.TotalByBooking(txCtx, booking.ID, true)
		if err != nil {
			return apperrors.Internal("Failed to total verified payments", err)
		}

		// The flip above already counts this payment in the verified total.
		priorVerified := verified - payment.Amount
		applied, excess := splitAtPrice(payment.Amount, priorVerified, room.Price)
		credit = excess

		if excess > 0 {
			cancelled, err := s.finance.CancelPendingEntry(txCtx, booking.ID, payment.Amount)
			if err != nil {
				return err
			}
			if !cancelled {
				s.cfg.Log.Warn("No pending ledger entry to cancel on verify",
					"payment_id", payment.ID, "booking_id", booking.ID)
			}
			if applied > 0 {
				desc := fmt.Sprintf("Verified payment %s toward room %s", payment.Reference, room.Number)
				if err := s.finance.AppendPaymentEntry(txCtx, booking.StudentID, booking.ID, applied, true, desc); err != nil {
					return err
				}
			}
			desc := fmt.Sprintf("Overpayment credit from payment %s", payment.Reference)
			if err := s.finance.AppendCredit(txCtx, booking.StudentID, excess, desc); err != nil {
				return err
			}
		} else {
			completed, err := s.finance.CompletePendingEntry(txCtx, booking.ID, payment.Amount)
			if err != nil {
				return err
			}
			if !completed {
				s.cfg.Log.Warn("No pending ledger entry to complete on verify",
					"payment_id", payment.ID, "booking_id", booking.ID)
			}
		}

		var settleErr error
		settled, settleErr = s.settler.SettleIfFullyPaid(txCtx, booking.ID)
		return settleErr
	})
	if err != nil {
		if errors.Is(err, errAlreadyVerified) {
			current, getErr := s.getPayment(ctx, payment.ID)
			if getErr != nil {
				return nil, getErr
			}
			return s.buildResult(ctx, current, booking.ID, room.Price, 0, false)
		}
		s.cfg.Log.Error("Failed to verify payment", "payment_id", payment.ID, "error", err)
		return nil, err
	}

	payment.Verified = true

	s.cfg.Log.Info("Payment verified",
		"payment_id", payment.ID,
		"booking_id", booking.ID,
		"amount", payment.Amount,
		"credit", credit,
		"settled", settled,
	)

	s.notifyPaymentOutcome(ctx, booking, room, settled, credit)

	return s.buildResult(ctx, payment, booking.ID, room.Price, credit, settled)
}

func (s *paymentService) GetByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	if _, err := s.bookingRepo.FindByID(ctx, bookingID); err != nil {
		return nil, translateBookingError(bookingID, err)
	}

	payments, err := s.repo.FindByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve payments", err)
	}

	return payments, nil
}

// splitAtPrice divides a verified amount into the portion applied toward
// the booking and the excess beyond the room price.
func splitAtPrice(amount, alreadyVerified, price int64) (applied, excess int64) {
	remaining := price - alreadyVerified
	if remaining < 0 {
		remaining = 0
	}
	applied = min(amount, remaining)
	excess = amount - applied
	return applied, excess
}

func (s *paymentService) buildResult(ctx context.Context, payment *model.Payment, bookingID string, price, credit int64, settled bool) (*model.PaymentResult, error) {
	verified, err := s.repo.TotalByBooking(ctx, bookingID, true)
	if err != nil {
		return nil, apperrors.Internal("Failed to total verified payments", err)
	}

	status := model.BookingPrebooked
	if booking, err := s.bookingRepo.FindByID(ctx, bookingID); err == nil {
		status = booking.Status
	}

	return &model.PaymentResult{
		Payment:       payment,
		BookingStatus: status,
		TotalVerified: verified,
		TotalDue:      price,
		CreditAmount:  credit,
		Settled:       settled,
	}, nil
}

func (s *paymentService) notifyPaymentOutcome(ctx context.Context, booking *model.Booking, room *model.Room, settled bool, credit int64) {
	subject := "Payment Received"
	message := fmt.Sprintf("Your payment toward room %s has been received.", room.Number)
	if settled {
		subject = "Payment Complete"
		message = fmt.Sprintf("Room %s is fully paid. Welcome home.", room.Number)
	}
	if credit > 0 {
		message += fmt.Sprintf(" %d has been added to your reusable balance.", credit)
	}
	s.emitter.Emit(ctx, booking.StudentID, subject, message)
}

func (s *paymentService) getPayment(ctx context.Context, id string) (*model.Payment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Payment ID cannot be empty")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, paymenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Payment", id)
		}
		if errors.Is(err, paymenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid payment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve payment", err)
	}

	return payment, nil
}

func (s *paymentService) getActiveBookingWithRoom(ctx context.Context, bookingID string) (*model.Booking, *model.Room, error) {
	booking, err := s.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, nil, translateBookingError(bookingID, err)
	}
	if !booking.IsActive() {
		return nil, nil, apperrors.BookingNotActive(booking.ID, booking.Status)
	}
	if booking.RoomID == "" {
		return nil, nil, apperrors.Conflict("Booking has no room assigned")
	}

	room, err := s.roomRepo.FindByID(ctx, booking.RoomID)
	if err != nil {
		if errors.Is(err, roomerrors.ErrRoomNotFound) {
			return nil, nil, apperrors.NotFoundWithID("Room", booking.RoomID)
		}
		return nil, nil, apperrors.Internal("Failed to retrieve room", err)
	}

	return booking, room, nil
}

func (s *paymentService) acquireStudentLock(ctx context.Context, studentID string) error {
	err := s.lockRepo.Acquire(ctx, model.StudentLockID(studentID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrLockHeld) {
			return apperrors.Conflict("Another payment is in progress for this student. Please try again.")
		}
		return apperrors.Internal("Failed to acquire advisory lock", err)
	}
	return nil
}

func (s *paymentService) releaseStudentLock(ctx context.Context, studentID string) {
	if err := s.lockRepo.Release(ctx, model.StudentLockID(studentID)); err != nil {
		s.cfg.Log.Warn("Failed to release advisory lock", "student_id", studentID, "error", err)
	}
}

func translateBookingError(id string, err error) error {
	switch {
	case errors.Is(err, bookingerrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingerrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		return apperrors.Internal("Failed to retrieve booking", err)
	}
}
