package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	bookingerrors "hostel/internal/booking/errors"
	financeservice "hostel/internal/finance/service"
	paymenterrors "hostel/internal/payment/errors"
	"hostel/internal/payment/validator"
	roomerrors "hostel/internal/room/errors"
	roomrepo "hostel/internal/room/repository"
	"hostel/pkg/config"
	mongotx "hostel/pkg/db/mongo"
	apperrors "hostel/pkg/errors"
	"hostel/pkg/logger"
	"hostel/pkg/model"
)

type paymentStore struct {
	mu sync.Mutex

	bookings map[string]*model.Booking
	rooms    map[string]*model.Room
	payments []*model.Payment
	ledger   []*model.FinanceTransaction
	locks    map[string]bool

	nextID int
}

func newPaymentStore() *paymentStore {
	return &paymentStore{
		bookings: make(map[string]*model.Booking),
		rooms:    make(map[string]*model.Room),
		locks:    make(map[string]bool),
	}
}

func (s *paymentStore) id() string {
	s.nextID++
	return fmt.Sprintf("%024x", s.nextID)
}

type stubPaymentRepo struct{ s *paymentStore }

func (r *stubPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payment.ID = r.s.id()
	if payment.Reference == "" {
		payment.Reference = payment.ID
	}
	payment.DatePaid = time.Now()
	cp := *payment
	r.s.payments = append(r.s.payments, &cp)
	return nil
}

func (r *stubPaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, paymenterrors.ErrNotFound
}

func (r *stubPaymentRepo) FindByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.s.payments {
		if p.BookingID == bookingID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubPaymentRepo) TotalByBooking(ctx context.Context, bookingID string, verifiedOnly bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, p := range r.s.payments {
		if p.BookingID != bookingID {
			continue
		}
		if verifiedOnly && !p.Verified {
			continue
		}
		total += p.Amount
	}
	return total, nil
}

func (r *stubPaymentRepo) MarkVerified(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ID == id && !p.Verified {
			p.Verified = true
			return true, nil
		}
	}
	return false, nil
}

func (r *stubPaymentRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type stubBookingRepo struct{ s *paymentStore }

func (r *stubBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	booking.ID = r.s.id()
	cp := *booking
	r.s.bookings[booking.ID] = &cp
	return nil
}

func (r *stubBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, bookingerrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *stubBookingRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (r *stubBookingRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

func (r *stubBookingRepo) FindActiveByStudent(ctx context.Context, studentID string) (*model.Booking, error) {
	return nil, nil
}

func (r *stubBookingRepo) FindActiveByRoom(ctx context.Context, roomID string) ([]*model.Booking, error) {
	return nil, nil
}

func (r *stubBookingRepo) CountActiveByRoom(ctx context.Context, roomID string) (int64, error) {
	return 0, nil
}

func (r *stubBookingRepo) UpdateStatus(ctx context.Context, id string, from []string, to string, newExpiry *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *stubBookingRepo) ReassignRoom(ctx context.Context, id, newRoomID string, from []string) (bool, error) {
	return false, nil
}

func (r *stubBookingRepo) FindOverdue(ctx context.Context, asOf time.Time, limit int) ([]*model.Booking, error) {
	return nil, nil
}

func (r *stubBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type stubLockRepo struct{ s *paymentStore }

func (r *stubLockRepo) Acquire(ctx context.Context, lockID string, ttl time.Duration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.locks[lockID] {
		return bookingerrors.ErrLockHeld
	}
	r.s.locks[lockID] = true
	return nil
}

func (r *stubLockRepo) Release(ctx context.Context, lockID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.locks, lockID)
	return nil
}

type stubRoomRepo struct{ s *paymentStore }

func (r *stubRoomRepo) Create(ctx context.Context, room *model.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room.ID = r.s.id()
	cp := *room
	r.s.rooms[room.ID] = &cp
	return nil
}

func (r *stubRoomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, roomerrors.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *stubRoomRepo) FindAll(ctx context.Context, filter roomrepo.RoomFilter, limit int, offset int64) ([]*model.Room, error) {
	return nil, nil
}

func (r *stubRoomRepo) Count(ctx context.Context, filter roomrepo.RoomFilter) (int64, error) {
	return 0, nil
}

func (r *stubRoomRepo) UpdateVacancy(ctx context.Context, id string, isVacant bool) error {
	return nil
}

type stubFinanceRepo struct{ s *paymentStore }

func (r *stubFinanceRepo) Append(ctx context.Context, txn *model.FinanceTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn.ID = r.s.id()
	cp := *txn
	r.s.ledger = append(r.s.ledger, &cp)
	return nil
}

func (r *stubFinanceRepo) CompletePending(ctx context.Context, bookingID string, amount int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, txn := range r.s.ledger {
		if txn.BookingID == bookingID && txn.Type == model.TxnPayment && txn.Status == model.TxnPending && txn.Amount == amount {
			txn.Status = model.TxnCompleted
			return true, nil
		}
	}
	return false, nil
}

func (r *stubFinanceRepo) CancelPending(ctx context.Context, bookingID string, amount int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, txn := range r.s.ledger {
		if txn.BookingID == bookingID && txn.Type == model.TxnPayment && txn.Status == model.TxnPending && txn.Amount == amount {
			txn.Status = model.TxnCancelled
			return true, nil
		}
	}
	return false, nil
}

func (r *stubFinanceRepo) SumByStudent(ctx context.Context, studentID, txnType, status string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, txn := range r.s.ledger {
		if txn.StudentID == studentID && txn.Type == txnType && txn.Status == status {
			total += txn.Amount
		}
	}
	return total, nil
}

func (r *stubFinanceRepo) SumAll(ctx context.Context, txnType, status string) (int64, error) {
	return 0, nil
}

func (r *stubFinanceRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	return 0, nil
}

func (r *stubFinanceRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.FinanceTransaction, error) {
	return nil, nil
}

func (r *stubFinanceRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

func (r *stubFinanceRepo) FindByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.FinanceTransaction, error) {
	return nil, nil
}

func (r *stubFinanceRepo) CountByStudent(ctx context.Context, studentID string) (int64, error) {
	return 0, nil
}

func (r *stubFinanceRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

// priceSettler flips a prebooked booking to paid once its verified total
// reaches the room price, matching the booking service's checkpoint.
type priceSettler struct {
	bookings *stubBookingRepo
	payments *stubPaymentRepo
	rooms    *stubRoomRepo
}

func (s *priceSettler) SettleIfFullyPaid(ctx context.Context, bookingID string) (bool, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if booking.Status == model.BookingPaid {
		return true, nil
	}
	if booking.Status != model.BookingPrebooked {
		return false, nil
	}

	room, err := s.rooms.FindByID(ctx, booking.RoomID)
	if err != nil {
		return false, err
	}

	verified, err := s.payments.TotalByBooking(ctx, bookingID, true)
	if err != nil {
		return false, err
	}
	if verified < room.Price {
		return false, nil
	}

	_, err = s.bookings.UpdateStatus(ctx, bookingID, []string{model.BookingPrebooked}, model.BookingPaid, nil)
	return err == nil, err
}

type recordingEmitter struct {
	mu       sync.Mutex
	subjects []string
}

func (e *recordingEmitter) Emit(ctx context.Context, studentID, subject, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
}

type paymentFixture struct {
	store   *paymentStore
	service *paymentService
	emitter *recordingEmitter
	booking *model.Booking
	room    *model.Room
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})

	cfg := &config.Config{
		Log:                log,
		TokenPaymentAmount: 2500,
		LockTTL:            10 * time.Second,
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
	}

	store := newPaymentStore()
	paymentRepo := &stubPaymentRepo{s: store}
	bookingRepo := &stubBookingRepo{s: store}
	lockRepo := &stubLockRepo{s: store}
	roomRepo := &stubRoomRepo{s: store}
	finance := financeservice.NewFinanceService(&stubFinanceRepo{s: store}, cfg)
	emitter := &recordingEmitter{}

	room := &model.Room{Number: "01", Capacity: 2, Price: 24000, IsVacant: true}
	if err := roomRepo.Create(context.Background(), room); err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	booking := &model.Booking{
		StudentID:  store.id(),
		RoomID:     room.ID,
		Status:     model.BookingPrebooked,
		DateBooked: time.Now(),
		ExpiryDate: time.Now().AddDate(0, 0, 14),
	}
	if err := bookingRepo.Create(context.Background(), booking); err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}

	svc := &paymentService{
		repo:        paymentRepo,
		bookingRepo: bookingRepo,
		lockRepo:    lockRepo,
		roomRepo:    roomRepo,
		finance:     finance,
		settler:     &priceSettler{bookings: bookingRepo, payments: paymentRepo, rooms: roomRepo},
		emitter:     emitter,
		validator:   validator.NewPaymentValidator(log),
		cfg:         cfg,
	}

	return &paymentFixture{
		store:   store,
		service: svc,
		emitter: emitter,
		booking: booking,
		room:    room,
	}
}

func (f *paymentFixture) ledgerEntries(txnType, status string) []*model.FinanceTransaction {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []*model.FinanceTransaction
	for _, txn := range f.store.ledger {
		if txn.Type == txnType && txn.Status == status {
			out = append(out, txn)
		}
	}
	return out
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestRecord_PartialPaymentsSettle(t *testing.T) {
	f := newPaymentFixture(t)

	first, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    10000,
		Verified:  true,
	})
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if first.Settled {
		t.Error("10000 of 24000 must not settle the booking")
	}
	if first.BookingStatus != model.BookingPrebooked {
		t.Errorf("expected prebooked, got %s", first.BookingStatus)
	}

	second, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    14000,
		Verified:  true,
	})
	if err != nil {
		t.Fatalf("second payment failed: %v", err)
	}
	if !second.Settled {
		t.Error("24000 of 24000 must settle the booking")
	}
	if second.BookingStatus != model.BookingPaid {
		t.Errorf("expected paid, got %s", second.BookingStatus)
	}
	if second.TotalVerified != 24000 {
		t.Errorf("expected verified total 24000, got %d", second.TotalVerified)
	}

	// Both entries are applied in full against the booking; nothing becomes
	// a booking-less credit.
	entries := f.ledgerEntries(model.TxnPayment, model.TxnCompleted)
	if len(entries) != 2 {
		t.Fatalf("expected two completed payment entries, got %d", len(entries))
	}
	amounts := map[int64]bool{}
	for _, e := range entries {
		if e.BookingID != f.booking.ID {
			t.Errorf("expected entry of %d bound to the booking, got booking_id %q", e.Amount, e.BookingID)
		}
		amounts[e.Amount] = true
	}
	if !amounts[10000] || !amounts[14000] {
		t.Errorf("expected applied entries of 10000 and 14000, got %v", amounts)
	}
}

func TestRecord_OverpaymentBecomesCredit(t *testing.T) {
	f := newPaymentFixture(t)

	result, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    25000,
		Verified:  true,
	})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	if !result.Settled {
		t.Error("payment covering the full price must settle the booking")
	}
	if result.CreditAmount != 1000 {
		t.Errorf("expected 1000 credit, got %d", result.CreditAmount)
	}

	entries := f.ledgerEntries(model.TxnPayment, model.TxnCompleted)
	if len(entries) != 2 {
		t.Fatalf("expected applied entry plus credit entry, got %d", len(entries))
	}

	var applied, credit *model.FinanceTransaction
	for _, e := range entries {
		if e.BookingID == f.booking.ID {
			applied = e
		} else {
			credit = e
		}
	}
	if applied == nil || applied.Amount != 24000 {
		t.Fatalf("expected applied entry of 24000 bound to the booking, got %+v", applied)
	}
	if credit == nil || credit.Amount != 1000 || credit.BookingID != "" {
		t.Fatalf("expected credit of 1000 bound to the student only, got %+v", credit)
	}
}

func TestRecord_UnverifiedCreatesPendingEntry(t *testing.T) {
	f := newPaymentFixture(t)

	result, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    24000,
		Verified:  false,
	})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	if result.Settled {
		t.Error("unverified money must not settle the booking")
	}
	if result.TotalVerified != 0 {
		t.Errorf("expected verified total 0, got %d", result.TotalVerified)
	}

	pending := f.ledgerEntries(model.TxnPayment, model.TxnPending)
	if len(pending) != 1 || pending[0].Amount != 24000 {
		t.Fatalf("expected one pending entry of 24000, got %+v", pending)
	}
}

func TestVerify_CompletesPendingEntryAndSettles(t *testing.T) {
	f := newPaymentFixture(t)

	recorded, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    24000,
		Verified:  false,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	verified, err := f.service.Verify(context.Background(), recorded.Payment.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if !verified.Settled {
		t.Error("verifying the full amount must settle the booking")
	}

	if pending := f.ledgerEntries(model.TxnPayment, model.TxnPending); len(pending) != 0 {
		t.Errorf("expected no pending entries after verify, got %d", len(pending))
	}
	completed := f.ledgerEntries(model.TxnPayment, model.TxnCompleted)
	if len(completed) != 1 || completed[0].Amount != 24000 {
		t.Fatalf("expected the pending entry flipped to completed, got %+v", completed)
	}
}

func TestVerify_OverpaymentCancelsPendingAndSplits(t *testing.T) {
	f := newPaymentFixture(t)

	// A verified token payment already sits against the booking.
	if _, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    2500,
		Verified:  true,
	}); err != nil {
		t.Fatalf("token payment failed: %v", err)
	}

	recorded, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    24000,
		Verified:  false,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	result, err := f.service.Verify(context.Background(), recorded.Payment.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if result.CreditAmount != 2500 {
		t.Errorf("expected credit of 2500, got %d", result.CreditAmount)
	}
	if !result.Settled {
		t.Error("expected the booking to settle")
	}

	if cancelled := f.ledgerEntries(model.TxnPayment, model.TxnCancelled); len(cancelled) != 1 {
		t.Errorf("expected the pending entry to be cancelled, got %d", len(cancelled))
	}

	var appliedTotal, creditTotal int64
	for _, e := range f.ledgerEntries(model.TxnPayment, model.TxnCompleted) {
		if e.BookingID == f.booking.ID {
			appliedTotal += e.Amount
		} else {
			creditTotal += e.Amount
		}
	}
	if appliedTotal != 24000 {
		t.Errorf("expected booking-bound completed total of 24000, got %d", appliedTotal)
	}
	if creditTotal != 2500 {
		t.Errorf("expected student credit total of 2500, got %d", creditTotal)
	}
}

func TestVerify_AlreadyVerifiedIsNoop(t *testing.T) {
	f := newPaymentFixture(t)

	recorded, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    10000,
		Verified:  true,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	before := len(f.ledgerEntries(model.TxnPayment, model.TxnCompleted))

	if _, err := f.service.Verify(context.Background(), recorded.Payment.ID); err != nil {
		t.Fatalf("repeat verify should be a no-op, got: %v", err)
	}

	after := len(f.ledgerEntries(model.TxnPayment, model.TxnCompleted))
	if before != after {
		t.Errorf("repeat verify must not append ledger entries: before=%d after=%d", before, after)
	}
}

func TestRecord_RejectsInactiveBooking(t *testing.T) {
	f := newPaymentFixture(t)

	f.store.mu.Lock()
	f.store.bookings[f.booking.ID].Status = model.BookingExpired
	f.store.mu.Unlock()

	_, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    10000,
		Verified:  true,
	})
	if err == nil {
		t.Fatal("expected payment against an expired booking to fail")
	}
	if code := errCode(t, err); code != apperrors.CodeBookingNotActive {
		t.Errorf("expected BOOKING_NOT_ACTIVE, got %s", code)
	}
}

func TestRecord_RejectsNonPositiveAmount(t *testing.T) {
	f := newPaymentFixture(t)

	_, err := f.service.Record(context.Background(), &model.PaymentRequest{
		BookingID: f.booking.ID,
		Amount:    -5,
		Verified:  true,
	})
	if err == nil {
		t.Fatal("expected negative amount to be rejected")
	}
	if code := errCode(t, err); code != apperrors.CodeInvalidAmount {
		t.Errorf("expected INVALID_AMOUNT, got %s", code)
	}
}
