package service

import (
	"context"

	"hostel/internal/finance/repository"
	"hostel/pkg/config"
	apperrors "hostel/pkg/errors"
	"hostel/pkg/model"
)

// FinanceService owns the ledger rules. Every write method assumes the
// caller already holds whatever advisory lock and transaction the operation
// needs; this service never opens its own transaction so it can compose
// inside booking and payment flows.
type FinanceService interface {
	Balance(ctx context.Context, studentID string) (int64, error)
	AppendPaymentEntry(ctx context.Context, studentID, bookingID string, amount int64, verified bool, description string) error
	AppendCredit(ctx context.Context, studentID string, amount int64, description string) error
	AppendRefund(ctx context.Context, studentID, bookingID string, amount int64, description string) error
	DrawRenewal(ctx context.Context, studentID, bookingID string, amount int64, description string) error
	CompletePendingEntry(ctx context.Context, bookingID string, amount int64) (bool, error)
	CancelPendingEntry(ctx context.Context, bookingID string, amount int64) (bool, error)
	Transactions(ctx context.Context, limit int, offset int64) ([]*model.FinanceTransaction, int64, error)
	TransactionsByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.FinanceTransaction, int64, error)
	Summary(ctx context.Context) (*model.FinanceSummary, error)
}

type financeService struct {
	repo repository.FinanceRepository
	cfg  *config.Config
}

func NewFinanceService(repo repository.FinanceRepository, cfg *config.Config) FinanceService {
	return &financeService{
		repo: repo,
		cfg:  cfg,
	}
}

// Balance is always a fold over completed refund minus completed renewal
// entries, never a stored running total.
func (s *financeService) Balance(ctx context.Context, studentID string) (int64, error) {
	if studentID == "" {
		return 0, apperrors.InvalidInput("Student ID cannot be empty")
	}

	refunds, err := s.repo.SumByStudent(ctx, studentID, model.TxnRefund, model.TxnCompleted)
	if err != nil {
		return 0, apperrors.Internal("Failed to sum refunds", err)
	}

	renewals, err := s.repo.SumByStudent(ctx, studentID, model.TxnRenewal, model.TxnCompleted)
	if err != nil {
		return 0, apperrors.Internal("Failed to sum renewals", err)
	}

	return refunds - renewals, nil
}

func (s *financeService) AppendPaymentEntry(ctx context.Context, studentID, bookingID string, amount int64, verified bool, description string) error {
	if amount <= 0 {
		return apperrors.InvalidAmount(amount)
	}

	status := model.TxnPending
	if verified {
		status = model.TxnCompleted
	}

	txn := &model.FinanceTransaction{
		Type:        model.TxnPayment,
		Amount:      amount,
		StudentID:   studentID,
		BookingID:   bookingID,
		Description: description,
		Status:      status,
	}

	if err := s.repo.Append(ctx, txn); err != nil {
		return apperrors.Internal("Failed to record payment ledger entry", err)
	}

	s.cfg.Log.Info("Ledger payment entry appended",
		"student_id", studentID,
		"booking_id", bookingID,
		"amount", amount,
		"status", status,
	)
	return nil
}

// AppendCredit records overpayment excess against the student alone, with no
// booking, so booking-scoped sums stay bounded by the room price.
func (s *financeService) AppendCredit(ctx context.Context, studentID string, amount int64, description string) error {
	if amount <= 0 {
		return apperrors.InvalidAmount(amount)
	}

	txn := &model.FinanceTransaction{
		Type:        model.TxnPayment,
		Amount:      amount,
		StudentID:   studentID,
		Description: description,
		Status:      model.TxnCompleted,
	}

	if err := s.repo.Append(ctx, txn); err != nil {
		return apperrors.Internal("Failed to record credit ledger entry", err)
	}

	s.cfg.Log.Info("Ledger credit entry appended", "student_id", studentID, "amount", amount)
	return nil
}

func (s *financeService) AppendRefund(ctx context.Context, studentID, bookingID string, amount int64, description string) error {
	if amount <= 0 {
		return apperrors.InvalidAmount(amount)
	}

	txn := &model.FinanceTransaction{
		Type:        model.TxnRefund,
		Amount:      amount,
		StudentID:   studentID,
		BookingID:   bookingID,
		Description: description,
		Status:      model.TxnCompleted,
	}

	if err := s.repo.Append(ctx, txn); err != nil {
		return apperrors.Internal("Failed to record refund ledger entry", err)
	}

	s.cfg.Log.Info("Ledger refund entry appended",
		"student_id", studentID,
		"booking_id", bookingID,
		"amount", amount,
	)
	return nil
}

// DrawRenewal checks the balance and appends the renewal entry in one call.
// The caller must hold the student advisory lock and run inside the same
// transaction, otherwise two concurrent draws can overdraw the balance.
func (s *financeService) DrawRenewal(ctx context.Context, studentID, bookingID string, amount int64, description string) error {
	if amount <= 0 {
		return apperrors.InvalidAmount(amount)
	}

	available, err := s.Balance(ctx, studentID)
	if err != nil {
		return err
	}

	if amount > available {
		return apperrors.InsufficientBalance(amount, available)
	}

	txn := &model.FinanceTransaction{
		Type:        model.TxnRenewal,
		Amount:      amount,
		StudentID:   studentID,
		BookingID:   bookingID,
		Description: description,
		Status:      model.TxnCompleted,
	}

	if err := s.repo.Append(ctx, txn); err != nil {
		return apperrors.Internal("Failed to record renewal ledger entry", err)
	}

	s.cfg.Log.Info("Ledger renewal draw appended",
		"student_id", studentID,
		"booking_id", bookingID,
		"amount", amount,
		"balance_before", available,
	)
	return nil
}

func (s *financeService) CompletePendingEntry(ctx context.Context, bookingID string, amount int64) (bool, error) {
	flipped, err := s.repo.CompletePending(ctx, bookingID, amount)
	if err != nil {
		return false, apperrors.Internal("Failed to complete pending ledger entry", err)
	}
	return flipped, nil
}

func (s *financeService) CancelPendingEntry(ctx context.Context, bookingID string, amount int64) (bool, error) {
	cancelled, err := s.repo.CancelPending(ctx, bookingID, amount)
	if err != nil {
		return false, apperrors.Internal("Failed to cancel pending ledger entry", err)
	}
	return cancelled, nil
}

func (s *financeService) Transactions(ctx context.Context, limit int, offset int64) ([]*model.FinanceTransaction, int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count finance transactions", err)
	}

	txns, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve finance transactions", err)
	}

	return txns, count, nil
}

func (s *financeService) TransactionsByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.FinanceTransaction, int64, error) {
	if studentID == "" {
		return nil, 0, apperrors.InvalidInput("Student ID cannot be empty")
	}

	count, err := s.repo.CountByStudent(ctx, studentID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count finance transactions", err)
	}

	txns, err := s.repo.FindByStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve finance transactions", err)
	}

	return txns, count, nil
}

// Summary reports the institution-wide cash position. Reused funds are
// renewal draws: refunded money pulled back in, so they add back into the
// net position.
func (s *financeService) Summary(ctx context.Context) (*model.FinanceSummary, error) {
	received, err := s.repo.SumAll(ctx, model.TxnPayment, model.TxnCompleted)
	if err != nil {
		return nil, apperrors.Internal("Failed to sum received funds", err)
	}

	refunded, err := s.repo.SumAll(ctx, model.TxnRefund, model.TxnCompleted)
	if err != nil {
		return nil, apperrors.Internal("Failed to sum refunded funds", err)
	}

	reused, err := s.repo.SumAll(ctx, model.TxnRenewal, model.TxnCompleted)
	if err != nil {
		return nil, apperrors.Internal("Failed to sum reused funds", err)
	}

	pending, err := s.repo.CountByStatus(ctx, model.TxnPending)
	if err != nil {
		return nil, apperrors.Internal("Failed to count pending transactions", err)
	}

	return &model.FinanceSummary{
		FundsReceived: received,
		FundsRefunded: refunded,
		FundsReused:   reused,
		NetPosition:   received - refunded + reused,
		PendingCount:  pending,
	}, nil
}
