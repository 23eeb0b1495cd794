package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	bookingerrors "hostel/internal/booking/errors"
	"hostel/internal/booking/validator"
	financeservice "hostel/internal/finance/service"
	roomerrors "hostel/internal/room/errors"
	roomrepo "hostel/internal/room/repository"
	studenterrors "hostel/internal/student/errors"
	"hostel/pkg/config"
	mongotx "hostel/pkg/db/mongo"
	apperrors "hostel/pkg/errors"
	"hostel/pkg/logger"
	"hostel/pkg/model"
)

// fakeStore is a shared in-memory database. ExecuteTransaction snapshots
// the whole store and restores it when the callback fails, mirroring a
// rolled-back session.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	bookings map[string]*model.Booking
	rooms    map[string]*model.Room
	hostels  map[string]*model.Hostel
	students map[string]*model.Student
	payments []*model.Payment
	ledger   []*model.FinanceTransaction
	locks    map[string]bool

	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: make(map[string]*model.Booking),
		rooms:    make(map[string]*model.Room),
		hostels:  make(map[string]*model.Hostel),
		students: make(map[string]*model.Student),
		locks:    make(map[string]bool),
	}
}

func (s *fakeStore) id() string {
	s.nextID++
	return fmt.Sprintf("%024x", s.nextID)
}

func (s *fakeStore) snapshot() *fakeStore {
	snap := newFakeStore()
	for k, v := range s.bookings {
		b := *v
		snap.bookings[k] = &b
	}
	for k, v := range s.rooms {
		r := *v
		snap.rooms[k] = &r
	}
	for _, p := range s.payments {
		cp := *p
		snap.payments = append(snap.payments, &cp)
	}
	for _, txn := range s.ledger {
		cp := *txn
		snap.ledger = append(snap.ledger, &cp)
	}
	return snap
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.bookings = snap.bookings
	s.rooms = snap.rooms
	s.payments = snap.payments
	s.ledger = snap.ledger
}

func (s *fakeStore) transact(ctx context.Context, fn mongotx.TransactionFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type fakeBookingRepo struct{ s *fakeStore }

func (r *fakeBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	booking.ID = r.s.id()
	cp := *booking
	r.s.bookings[booking.ID] = &cp
	return nil
}

func (r *fakeBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, bookingerrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookingRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.s.bookings {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeBookingRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.bookings)), nil
}

func (r *fakeBookingRepo) FindActiveByStudent(ctx context.Context, studentID string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.StudentID == studentID && (b.Status == model.BookingPrebooked || b.Status == model.BookingPaid) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) FindActiveByRoom(ctx context.Context, roomID string) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.s.bookings {
		if b.RoomID == roomID && (b.Status == model.BookingPrebooked || b.Status == model.BookingPaid) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) CountActiveByRoom(ctx context.Context, roomID string) (int64, error) {
	active, _ := r.FindActiveByRoom(ctx, roomID)
	return int64(len(active)), nil
}

func (r *fakeBookingRepo) UpdateStatus(ctx context.Context, id string, from []string, to string, newExpiry *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			if newExpiry != nil {
				b.ExpiryDate = *newExpiry
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookingRepo) ReassignRoom(ctx context.Context, id, newRoomID string, from []string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if b.Status == f {
			b.RoomID = newRoomID
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookingRepo) FindOverdue(ctx context.Context, asOf time.Time, limit int) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.s.bookings {
		if b.Status == model.BookingPrebooked && b.ExpiryDate.Before(asOf) {
			cp := *b
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.s.transact(ctx, fn)
}

type fakeLockRepo struct{ s *fakeStore }

func (r *fakeLockRepo) Acquire(ctx context.Context, lockID string, ttl time.Duration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.locks[lockID] {
		return bookingerrors.ErrLockHeld
	}
	r.s.locks[lockID] = true
	return nil
}

func (r *fakeLockRepo) Release(ctx context.Context, lockID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.locks, lockID)
	return nil
}

type fakeRoomRepo struct{ s *fakeStore }

func (r *fakeRoomRepo) Create(ctx context.Context, room *model.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room.ID = r.s.id()
	cp := *room
	r.s.rooms[room.ID] = &cp
	return nil
}

func (r *fakeRoomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, roomerrors.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *fakeRoomRepo) FindAll(ctx context.Context, filter roomrepo.RoomFilter, limit int, offset int64) ([]*model.Room, error) {
	return nil, nil
}

func (r *fakeRoomRepo) Count(ctx context.Context, filter roomrepo.RoomFilter) (int64, error) {
	return 0, nil
}

func (r *fakeRoomRepo) UpdateVacancy(ctx context.Context, id string, isVacant bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if room, ok := r.s.rooms[id]; ok {
		room.IsVacant = isVacant
	}
	return nil
}

type fakeHostelRepo struct{ s *fakeStore }

func (r *fakeHostelRepo) Create(ctx context.Context, hostel *model.Hostel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	hostel.ID = r.s.id()
	cp := *hostel
	r.s.hostels[hostel.ID] = &cp
	return nil
}

func (r *fakeHostelRepo) FindByID(ctx context.Context, id string) (*model.Hostel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.hostels[id]
	if !ok {
		return nil, roomerrors.ErrHostelNotFound
	}
	cp := *h
	return &cp, nil
}

func (r *fakeHostelRepo) FindAll(ctx context.Context) ([]*model.Hostel, error) {
	return nil, nil
}

type fakeStudentRepo struct{ s *fakeStore }

func (r *fakeStudentRepo) Create(ctx context.Context, student *model.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	student.ID = r.s.id()
	cp := *student
	r.s.students[student.ID] = &cp
	return nil
}

func (r *fakeStudentRepo) FindByID(ctx context.Context, id string) (*model.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.students[id]
	if !ok {
		return nil, studenterrors.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (r *fakeStudentRepo) FindByRegNo(ctx context.Context, regNo string) (*model.Student, error) {
	return nil, studenterrors.ErrNotFound
}

func (r *fakeStudentRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Student, error) {
	return nil, nil
}

func (r *fakeStudentRepo) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

func (r *fakeStudentRepo) UpdateProfile(ctx context.Context, id string, update *model.StudentProfileUpdate) error {
	return nil
}

type fakePaymentRepo struct{ s *fakeStore }

func (r *fakePaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payment.ID = r.s.id()
	if payment.Reference == "" {
		payment.Reference = payment.ID
	}
	cp := *payment
	r.s.payments = append(r.s.payments, &cp)
	return nil
}

func (r *fakePaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.New("payment not found")
}

func (r *fakePaymentRepo) FindByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error) {
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

func (r *fakePaymentRepo) TotalByBooking(ctx context.Context, bookingID string, verifiedOnly bool) (int64, error) {
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

func (r *fakePaymentRepo) MarkVerified(ctx context.Context, id string) (bool, error) {
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

func (r *fakePaymentRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.s.transact(ctx, fn)
}

type fakeFinanceRepo struct{ s *fakeStore }

func (r *fakeFinanceRepo) Append(ctx context.Context, txn *model.FinanceTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn.ID = r.s.id()
	txn.DateCreated = time.Now()
	cp := *txn
	r.s.ledger = append(r.s.ledger, &cp)
	return nil
}

func (r *fakeFinanceRepo) CompletePending(ctx context.Context, bookingID string, amount int64) (bool, error) {
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

func (r *fakeFinanceRepo) CancelPending(ctx context.Context, bookingID string, amount int64) (bool, error) {
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

func (r *fakeFinanceRepo) SumByStudent(ctx context.Context, studentID, txnType, status string) (int64, error) {
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

func (r *fakeFinanceRepo) SumAll(ctx context.Context, txnType, status string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, txn := range r.s.ledger {
		if txn.Type == txnType && txn.Status == status {
			total += txn.Amount
		}
	}
	return total, nil
}

func (r *fakeFinanceRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, txn := range r.s.ledger {
		if txn.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeFinanceRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.FinanceTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.FinanceTransaction
	for _, txn := range r.s.ledger {
		cp := *txn
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeFinanceRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.ledger)), nil
}

func (r *fakeFinanceRepo) FindByStudent(ctx context.Context, studentID string, limit int, offset int64) ([]*model.FinanceTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.FinanceTransaction
	for _, txn := range r.s.ledger {
		if txn.StudentID == studentID {
			cp := *txn
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeFinanceRepo) CountByStudent(ctx context.Context, studentID string) (int64, error) {
	txns, _ := r.FindByStudent(ctx, studentID, 0, 0)
	return int64(len(txns)), nil
}

func (r *fakeFinanceRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.s.transact(ctx, fn)
}

type fakeEmitter struct {
	mu       sync.Mutex
	subjects []string
}

func (e *fakeEmitter) Emit(ctx context.Context, studentID, subject, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
}

type fakeUnreadCounter struct{ count int64 }

func (c *fakeUnreadCounter) CountUnread(ctx context.Context, studentID string) (int64, error) {
	return c.count, nil
}

type fixture struct {
	store   *fakeStore
	cfg     *config.Config
	emitter *fakeEmitter
	service *bookingService
	finance financeservice.FinanceService
}

func newFixture(t *testing.T) *fixture {
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
		PrebookExpiryDays:  14,
		LockTTL:            10 * time.Second,
		SweeperBatchSize:   200,
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
	}

	store := newFakeStore()
	financeRepo := &fakeFinanceRepo{s: store}
	finance := financeservice.NewFinanceService(financeRepo, cfg)
	emitter := &fakeEmitter{}

	svc := &bookingService{
		repo:        &fakeBookingRepo{s: store},
		lockRepo:    &fakeLockRepo{s: store},
		roomRepo:    &fakeRoomRepo{s: store},
		hostelRepo:  &fakeHostelRepo{s: store},
		studentRepo: &fakeStudentRepo{s: store},
		paymentRepo: &fakePaymentRepo{s: store},
		finance:     finance,
		emitter:     emitter,
		unread:      &fakeUnreadCounter{},
		validator:   validator.NewBookingValidator(log),
		cfg:         cfg,
	}

	return &fixture{
		store:   store,
		cfg:     cfg,
		emitter: emitter,
		service: svc,
		finance: finance,
	}
}

func (f *fixture) addStudent(t *testing.T, gender string) *model.Student {
	t.Helper()
	student := &model.Student{
		RegNo:    fmt.Sprintf("BCS/%04d/2023", f.store.nextID+1),
		FullName: "Test Student",
		Gender:   gender,
	}
	if err := (&fakeStudentRepo{s: f.store}).Create(context.Background(), student); err != nil {
		t.Fatalf("failed to create student: %v", err)
	}
	return student
}

func (f *fixture) addRoom(t *testing.T, gender string, price, capacity int64) *model.Room {
	t.Helper()
	hostel := &model.Hostel{Name: "Test Hostel", Gender: gender, Class: model.RoomClassRegular}
	if err := (&fakeHostelRepo{s: f.store}).Create(context.Background(), hostel); err != nil {
		t.Fatalf("failed to create hostel: %v", err)
	}
	room := &model.Room{
		HostelID: hostel.ID,
		Number:   "01",
		Capacity: capacity,
		Price:    price,
		IsVacant: true,
	}
	if err := (&fakeRoomRepo{s: f.store}).Create(context.Background(), room); err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	return room
}

func (f *fixture) fundBalance(t *testing.T, studentID string, amount int64) {
	t.Helper()
	err := f.finance.AppendRefund(context.Background(), studentID, "", amount, "test refund")
	if err != nil {
		t.Fatalf("failed to fund balance: %v", err)
	}
}

func (f *fixture) ledgerEntries(txnType, status string) []*model.FinanceTransaction {
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

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestPrebook_HappyPath(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	result, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != model.BookingPrebooked {
		t.Errorf("expected status prebooked, got %s", result.Status)
	}
	if result.TotalVerified != 2500 {
		t.Errorf("expected token amount 2500, got %d", result.TotalVerified)
	}

	entries := f.ledgerEntries(model.TxnPayment, model.TxnCompleted)
	if len(entries) != 1 || entries[0].Amount != 2500 {
		t.Fatalf("expected one completed payment entry of 2500, got %+v", entries)
	}

	updated, _ := f.service.roomRepo.FindByID(context.Background(), room.ID)
	if !updated.IsVacant {
		t.Error("room with capacity 2 and one occupant should stay vacant")
	}
}

func TestPrebook_GenderMismatch(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderFemale, 24000, 2)

	_, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	})
	if err == nil {
		t.Fatal("expected gender mismatch to be rejected")
	}
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT, got %s", code)
	}
}

func TestPrebook_DuplicateActiveBooking(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	if _, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	}); err != nil {
		t.Fatalf("first prebook failed: %v", err)
	}

	otherRoom := f.addRoom(t, model.GenderMale, 24000, 2)
	_, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    otherRoom.ID,
	})
	if err == nil {
		t.Fatal("expected second active booking to be rejected")
	}
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT, got %s", code)
	}
}

func TestPrebook_CapacityRace(t *testing.T) {
	f := newFixture(t)
	room := f.addRoom(t, model.GenderMale, 24000, 1)
	first := f.addStudent(t, model.GenderMale)
	second := f.addStudent(t, model.GenderMale)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, student := range []*model.Student{first, second} {
		wg.Add(1)
		go func(studentID string) {
			defer wg.Done()
			_, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
				StudentID: studentID,
				RoomID:    room.ID,
			})
			errs <- err
		}(student.ID)
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			failures++
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("unexpected error type: %v", err)
			}
			if appErr.Code != apperrors.CodeRoomAtCapacity && appErr.Code != apperrors.CodeConflict {
				t.Errorf("expected capacity or lock conflict, got %s", appErr.Code)
			}
		}
	}
	if failures != 1 {
		t.Errorf("expected exactly one of two concurrent prebooks to fail, got %d failures", failures)
	}

	occupied, _ := f.service.repo.CountActiveByRoom(context.Background(), room.ID)
	if occupied != 1 {
		t.Errorf("expected exactly one active booking, got %d", occupied)
	}
}

func TestPrebook_StudentLockSerializesRequests(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	// Another in-flight operation holds the student lock, so a prebook
	// against a different room must back off instead of racing the
	// active-booking guard.
	f.store.mu.Lock()
	f.store.locks[model.StudentLockID(student.ID)] = true
	f.store.mu.Unlock()

	_, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	})
	if err == nil {
		t.Fatal("expected prebook to back off while the student lock is held")
	}
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT, got %s", code)
	}

	active, _ := f.service.repo.FindActiveByStudent(context.Background(), student.ID)
	if active != nil {
		t.Error("no booking may be created while the student lock is held")
	}
}

func TestChangeRoom_MovesBookingAndRecomputesVacancy(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	oldRoom := f.addRoom(t, model.GenderMale, 24000, 1)
	newRoom := f.addRoom(t, model.GenderMale, 24000, 1)

	result, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    oldRoom.ID,
	})
	if err != nil {
		t.Fatalf("prebook failed: %v", err)
	}

	// A paid booking keeps its status across the move.
	flipped, err := f.service.repo.UpdateStatus(context.Background(), result.BookingID, []string{model.BookingPrebooked}, model.BookingPaid, nil)
	if err != nil || !flipped {
		t.Fatalf("failed to mark booking paid: flipped=%v err=%v", flipped, err)
	}

	moved, err := f.service.ChangeRoom(context.Background(), result.BookingID, &model.ChangeRoomRequest{
		NewRoomID: newRoom.ID,
	})
	if err != nil {
		t.Fatalf("change room failed: %v", err)
	}
	if moved.Status != model.BookingPaid {
		t.Errorf("expected status preserved as paid, got %s", moved.Status)
	}

	booking, _ := f.service.repo.FindByID(context.Background(), result.BookingID)
	if booking.RoomID != newRoom.ID {
		t.Errorf("expected booking on room %s, got %s", newRoom.ID, booking.RoomID)
	}

	vacated, _ := f.service.roomRepo.FindByID(context.Background(), oldRoom.ID)
	if !vacated.IsVacant {
		t.Error("old room must become vacant after the move")
	}
	occupied, _ := f.service.roomRepo.FindByID(context.Background(), newRoom.ID)
	if occupied.IsVacant {
		t.Error("new room at capacity must report not vacant")
	}
}

func TestChangeRoom_RejectsFullDestination(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	occupant := f.addStudent(t, model.GenderMale)
	oldRoom := f.addRoom(t, model.GenderMale, 24000, 2)
	fullRoom := f.addRoom(t, model.GenderMale, 24000, 1)

	if _, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: occupant.ID,
		RoomID:    fullRoom.ID,
	}); err != nil {
		t.Fatalf("occupant prebook failed: %v", err)
	}

	result, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    oldRoom.ID,
	})
	if err != nil {
		t.Fatalf("prebook failed: %v", err)
	}

	_, err = f.service.ChangeRoom(context.Background(), result.BookingID, &model.ChangeRoomRequest{
		NewRoomID: fullRoom.ID,
	})
	if err == nil {
		t.Fatal("expected move into a full room to be rejected")
	}
	if code := appCode(t, err); code != apperrors.CodeRoomAtCapacity {
		t.Errorf("expected ROOM_AT_CAPACITY, got %s", code)
	}

	booking, _ := f.service.repo.FindByID(context.Background(), result.BookingID)
	if booking.RoomID != oldRoom.ID {
		t.Errorf("rejected move must leave the booking on room %s, got %s", oldRoom.ID, booking.RoomID)
	}
}

func TestCancel_RefundsAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	result, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	})
	if err != nil {
		t.Fatalf("prebook failed: %v", err)
	}

	cancelled, err := f.service.Cancel(context.Background(), result.BookingID, &model.CancelRequest{Reason: "changed my mind"})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.BookingExpired {
		t.Errorf("expected expired, got %s", cancelled.Status)
	}
	if cancelled.RefundAmount != 2500 {
		t.Errorf("expected refund of 2500, got %d", cancelled.RefundAmount)
	}

	balance, err := f.finance.Balance(context.Background(), student.ID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance != 2500 {
		t.Errorf("expected balance 2500 after refund, got %d", balance)
	}

	again, err := f.service.Cancel(context.Background(), result.BookingID, nil)
	if err != nil {
		t.Fatalf("repeat cancel should be a no-op, got: %v", err)
	}
	if !again.AlreadySettled {
		t.Error("expected repeat cancel to report already settled")
	}

	refunds := f.ledgerEntries(model.TxnRefund, model.TxnCompleted)
	if len(refunds) != 1 {
		t.Errorf("expected exactly one refund entry, got %d", len(refunds))
	}
}

func TestRelease_RefusesPaidBooking(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	result, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	})
	if err != nil {
		t.Fatalf("prebook failed: %v", err)
	}

	flipped, err := f.service.repo.UpdateStatus(context.Background(), result.BookingID, []string{model.BookingPrebooked}, model.BookingPaid, nil)
	if err != nil || !flipped {
		t.Fatalf("failed to mark booking paid: flipped=%v err=%v", flipped, err)
	}

	_, err = f.service.Release(context.Background(), result.BookingID)
	if err == nil {
		t.Fatal("expected release of a paid booking to be refused")
	}
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT, got %s", code)
	}

	booking, _ := f.service.repo.FindByID(context.Background(), result.BookingID)
	if booking.Status != model.BookingPaid {
		t.Errorf("paid booking must be untouched by release, got %s", booking.Status)
	}
}

func TestRenew_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	booking := &model.Booking{
		StudentID:  student.ID,
		RoomID:     room.ID,
		Status:     model.BookingExpired,
		DateBooked: time.Now().AddDate(0, 0, -30),
		ExpiryDate: time.Now().AddDate(0, 0, -16),
	}
	if err := f.service.repo.Create(context.Background(), booking); err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}

	f.fundBalance(t, student.ID, 2000) // below the 2500 token

	_, err := f.service.Renew(context.Background(), booking.ID)
	if err == nil {
		t.Fatal("expected renewal to fail on insufficient balance")
	}
	if code := appCode(t, err); code != apperrors.CodeInsufficientBalance {
		t.Errorf("expected INSUFFICIENT_BALANCE, got %s", code)
	}

	// The aborted transaction must leave the booking expired and the
	// balance untouched.
	current, _ := f.service.repo.FindByID(context.Background(), booking.ID)
	if current.Status != model.BookingExpired {
		t.Errorf("expected booking to stay expired, got %s", current.Status)
	}
	balance, _ := f.finance.Balance(context.Background(), student.ID)
	if balance != 2000 {
		t.Errorf("expected balance unchanged at 2000, got %d", balance)
	}
}

func TestRenew_Success(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	booking := &model.Booking{
		StudentID:  student.ID,
		RoomID:     room.ID,
		Status:     model.BookingExpired,
		DateBooked: time.Now().AddDate(0, 0, -30),
		ExpiryDate: time.Now().AddDate(0, 0, -16),
	}
	if err := f.service.repo.Create(context.Background(), booking); err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}

	f.fundBalance(t, student.ID, 5000)

	result, err := f.service.Renew(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if result.Status != model.BookingPrebooked {
		t.Errorf("expected prebooked, got %s", result.Status)
	}
	if result.RenewalAmount != 2500 {
		t.Errorf("expected renewal draw of 2500, got %d", result.RenewalAmount)
	}

	balance, _ := f.finance.Balance(context.Background(), student.ID)
	if balance != 2500 {
		t.Errorf("expected balance 2500 after draw, got %d", balance)
	}

	// The renewal-funded token payment moves internal money; it must not
	// appear as new money received.
	payments := f.ledgerEntries(model.TxnPayment, model.TxnCompleted)
	if len(payments) != 0 {
		t.Errorf("renewal must not append payment-type ledger entries, got %d", len(payments))
	}

	renewals := f.ledgerEntries(model.TxnRenewal, model.TxnCompleted)
	if len(renewals) != 1 || renewals[0].Amount != 2500 {
		t.Fatalf("expected one renewal entry of 2500, got %+v", renewals)
	}

	verified, _ := f.service.paymentRepo.TotalByBooking(context.Background(), booking.ID, true)
	if verified != 2500 {
		t.Errorf("expected a verified token payment of 2500, got %d", verified)
	}
}

func TestProcessRenewal_SettlesWhenFullyPaid(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	result, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	})
	if err != nil {
		t.Fatalf("prebook failed: %v", err)
	}

	f.fundBalance(t, student.ID, 25000)

	renewed, err := f.service.ProcessRenewal(context.Background(), &model.RenewalRequest{
		BookingID: result.BookingID,
		Amount:    21500, // token 2500 already verified, price 24000
	})
	if err != nil {
		t.Fatalf("process renewal failed: %v", err)
	}
	if renewed.Status != model.BookingPaid {
		t.Errorf("expected booking to settle as paid, got %s", renewed.Status)
	}

	booking, _ := f.service.repo.FindByID(context.Background(), result.BookingID)
	if booking.Status != model.BookingPaid {
		t.Errorf("expected stored status paid, got %s", booking.Status)
	}

	balance, _ := f.finance.Balance(context.Background(), student.ID)
	if balance != 3500 {
		t.Errorf("expected balance 3500 after 21500 draw, got %d", balance)
	}
}

func TestProcessRenewal_RejectsInactiveBooking(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	booking := &model.Booking{
		StudentID: student.ID,
		RoomID:    room.ID,
		Status:    model.BookingExpired,
	}
	if err := f.service.repo.Create(context.Background(), booking); err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}

	_, err := f.service.ProcessRenewal(context.Background(), &model.RenewalRequest{
		BookingID: booking.ID,
		Amount:    1000,
	})
	if err == nil {
		t.Fatal("expected renewal against an expired booking to fail")
	}
	if code := appCode(t, err); code != apperrors.CodeBookingNotActive {
		t.Errorf("expected BOOKING_NOT_ACTIVE, got %s", code)
	}
}

func TestExpireOverdue_RefundsOnce(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	result, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	})
	if err != nil {
		t.Fatalf("prebook failed: %v", err)
	}

	booking, _ := f.service.repo.FindByID(context.Background(), result.BookingID)

	expired, err := f.service.ExpireOverdue(context.Background(), booking)
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if !expired {
		t.Fatal("expected first expiry to apply")
	}

	again, err := f.service.ExpireOverdue(context.Background(), booking)
	if err != nil {
		t.Fatalf("repeat expiry should be a no-op, got: %v", err)
	}
	if again {
		t.Error("expected repeat expiry to report already handled")
	}

	refunds := f.ledgerEntries(model.TxnRefund, model.TxnCompleted)
	if len(refunds) != 1 || refunds[0].Amount != 2500 {
		t.Fatalf("expected one refund entry of 2500, got %+v", refunds)
	}
}

func TestRoommates_RequiresPaidBooking(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	result, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	})
	if err != nil {
		t.Fatalf("prebook failed: %v", err)
	}

	_, err = f.service.Roommates(context.Background(), result.BookingID)
	if err == nil {
		t.Fatal("expected roommates of an unpaid booking to be refused")
	}
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT, got %s", code)
	}
}

func TestDashboard_ReportsPaymentProgress(t *testing.T) {
	f := newFixture(t)
	student := f.addStudent(t, model.GenderMale)
	room := f.addRoom(t, model.GenderMale, 24000, 2)

	if _, err := f.service.Prebook(context.Background(), &model.PrebookRequest{
		StudentID: student.ID,
		RoomID:    room.ID,
	}); err != nil {
		t.Fatalf("prebook failed: %v", err)
	}

	summary, err := f.service.Dashboard(context.Background(), student.ID)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}

	if summary.TotalDue != 24000 {
		t.Errorf("expected total due 24000, got %d", summary.TotalDue)
	}
	if summary.TotalTendered != 2500 {
		t.Errorf("expected tendered 2500, got %d", summary.TotalTendered)
	}
	if summary.Remaining != 21500 {
		t.Errorf("expected remaining 21500, got %d", summary.Remaining)
	}
	if summary.ProgressPct != 10 {
		t.Errorf("expected progress 10%%, got %d", summary.ProgressPct)
	}
}
