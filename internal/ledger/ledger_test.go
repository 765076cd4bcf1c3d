package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ledgerline/event-ticketing/internal/domain"
	"github.com/ledgerline/event-ticketing/internal/ledger"
	"github.com/ledgerline/event-ticketing/internal/observability"
	"golang.org/x/sync/errgroup"
)

// fakeStore serializes transactions with a mutex and applies mutations to
// staged copies, committing only when fn succeeds. That models the row-lock
// behavior the database store provides: operations on the same pool run one
// at a time, and a failed operation leaves no trace.
type fakeStore struct {
	mu       sync.Mutex
	pools    map[uuid.UUID]domain.TicketPool
	bookings map[uuid.UUID]domain.Booking
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pools:    make(map[uuid.UUID]domain.TicketPool),
		bookings: make(map[uuid.UUID]domain.Booking),
	}
}

func (s *fakeStore) addPool(p domain.TicketPool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[p.ID] = p
}

func (s *fakeStore) pool(id uuid.UUID) domain.TicketPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pools[id]
}

func (s *fakeStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{
		pools:    make(map[uuid.UUID]domain.TicketPool, len(s.pools)),
		bookings: make(map[uuid.UUID]domain.Booking, len(s.bookings)),
	}
	for k, v := range s.pools {
		tx.pools[k] = v
	}
	for k, v := range s.bookings {
		tx.bookings[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}
	s.pools = tx.pools
	s.bookings = tx.bookings
	return nil
}

type fakeTx struct {
	pools    map[uuid.UUID]domain.TicketPool
	bookings map[uuid.UUID]domain.Booking
}

func (t *fakeTx) PoolForUpdate(ctx context.Context, poolID uuid.UUID) (*domain.TicketPool, error) {
	p, ok := t.pools[poolID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (t *fakeTx) BookingForUpdate(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	b, ok := t.bookings[bookingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (t *fakeTx) AdjustAvailability(ctx context.Context, poolID uuid.UUID, delta int) error {
	p, ok := t.pools[poolID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Availability += delta
	if p.Availability < 0 {
		return domain.ErrInsufficientAvailability
	}
	t.pools[poolID] = p
	return nil
}

func (t *fakeTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	t.bookings[b.ID] = b
	return nil
}

func (t *fakeTx) SetBookingQuantity(ctx context.Context, bookingID uuid.UUID, quantity int) error {
	b, ok := t.bookings[bookingID]
	if !ok {
		return domain.ErrNotFound
	}
	b.Quantity = quantity
	t.bookings[bookingID] = b
	return nil
}

func (t *fakeTx) DeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	if _, ok := t.bookings[bookingID]; !ok {
		return domain.ErrNotFound
	}
	delete(t.bookings, bookingID)
	return nil
}

func newTestLedger(store ledger.Store) *ledger.Ledger {
	return ledger.New(store, observability.NewLogger())
}

func seedPool(store *fakeStore, availability int) domain.TicketPool {
	pool := domain.TicketPool{
		ID:           uuid.New(),
		EventID:      uuid.New(),
		Kind:         "general",
		Price:        25.00,
		Capacity:     availability,
		Availability: availability,
	}
	store.addPool(pool)
	return pool
}

func TestLedger_CreateBooking(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 10)
	l := newTestLedger(store)
	customer := uuid.New()

	booking, err := l.CreateBooking(ctx, pool.ID, customer, 4)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if booking.Quantity != 4 || booking.PoolID != pool.ID || booking.CustomerID != customer {
		t.Errorf("unexpected booking %+v", booking)
	}
	if got := store.pool(pool.ID).Availability; got != 6 {
		t.Errorf("expected availability 6, got %d", got)
	}
}

func TestLedger_CreateBooking_InvalidQuantity(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 10)
	l := newTestLedger(store)

	for _, qty := range []int{0, -3} {
		_, err := l.CreateBooking(ctx, pool.ID, uuid.New(), qty)
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("quantity %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
	if got := store.pool(pool.ID).Availability; got != 10 {
		t.Errorf("expected availability untouched at 10, got %d", got)
	}
}

func TestLedger_CreateBooking_Insufficient(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 5)
	l := newTestLedger(store)

	_, err := l.CreateBooking(ctx, pool.ID, uuid.New(), 6)
	if !errors.Is(err, domain.ErrInsufficientAvailability) {
		t.Fatalf("expected ErrInsufficientAvailability, got %v", err)
	}
	if got := store.pool(pool.ID).Availability; got != 5 {
		t.Errorf("rejected booking must not change availability, got %d", got)
	}
	if store.bookingCount() != 0 {
		t.Errorf("rejected booking must not persist a row")
	}
}

func TestLedger_CreateBooking_PoolMissing(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	l := newTestLedger(store)

	_, err := l.CreateBooking(ctx, uuid.New(), uuid.New(), 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Two concurrent bookings of 6 and 7 against a pool of 10: exactly one must
// commit, whichever ran second must be rejected, and availability must equal
// 10 minus the winner's quantity.
func TestLedger_ConcurrentCreates_OneWins(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 10)
	l := newTestLedger(store)

	results := make([]error, 2)
	var g errgroup.Group
	for i, qty := range []int{6, 7} {
		i, qty := i, qty
		g.Go(func() error {
			_, results[i] = l.CreateBooking(ctx, pool.ID, uuid.New(), qty)
			return nil
		})
	}
	g.Wait()

	var committed, rejected int
	var wonQty int
	for i, qty := range []int{6, 7} {
		switch {
		case results[i] == nil:
			committed++
			wonQty = qty
		case errors.Is(results[i], domain.ErrInsufficientAvailability):
			rejected++
		default:
			t.Fatalf("unexpected error %v", results[i])
		}
	}
	if committed != 1 || rejected != 1 {
		t.Fatalf("expected exactly one commit and one rejection, got %d/%d", committed, rejected)
	}
	if got := store.pool(pool.ID).Availability; got != 10-wonQty {
		t.Errorf("expected availability %d, got %d", 10-wonQty, got)
	}
}

// Many concurrent single-ticket bookings against a small pool: the number of
// committed bookings never exceeds availability, and the pool drains to
// exactly zero.
func TestLedger_ConcurrentCreates_NoOverselling(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 20)
	l := newTestLedger(store)

	const attempts = 50
	var mu sync.Mutex
	var committed int
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := l.CreateBooking(ctx, pool.ID, uuid.New(), 1)
			if err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
				return nil
			}
			if !errors.Is(err, domain.ErrInsufficientAvailability) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if committed != 20 {
		t.Errorf("expected 20 committed bookings, got %d", committed)
	}
	if got := store.pool(pool.ID).Availability; got != 0 {
		t.Errorf("expected availability 0, got %d", got)
	}
	if store.bookingCount() != 20 {
		t.Errorf("expected 20 booking rows, got %d", store.bookingCount())
	}
}

func TestLedger_UpdateBooking_Delta(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 10)
	l := newTestLedger(store)
	customer := uuid.New()

	booking, err := l.CreateBooking(ctx, pool.ID, customer, 5)
	if err != nil {
		t.Fatal(err)
	}

	// 5 -> 8 needs delta 3 against the remaining 5.
	updated, err := l.UpdateBooking(ctx, booking.ID, customer, 8)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.Quantity != 8 {
		t.Errorf("expected quantity 8, got %d", updated.Quantity)
	}
	if got := store.pool(pool.ID).Availability; got != 2 {
		t.Errorf("expected availability 2, got %d", got)
	}

	// 8 -> 11 needs delta 3 against the remaining 2.
	_, err = l.UpdateBooking(ctx, booking.ID, customer, 11)
	if !errors.Is(err, domain.ErrInsufficientAvailability) {
		t.Fatalf("expected ErrInsufficientAvailability, got %v", err)
	}
	if got := store.pool(pool.ID).Availability; got != 2 {
		t.Errorf("rejected update must not change availability, got %d", got)
	}

	// Shrinking reimburses the difference.
	updated, err = l.UpdateBooking(ctx, booking.ID, customer, 3)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Quantity != 3 {
		t.Errorf("expected quantity 3, got %d", updated.Quantity)
	}
	if got := store.pool(pool.ID).Availability; got != 7 {
		t.Errorf("expected availability 7, got %d", got)
	}
}

func TestLedger_UpdateBooking_NonOwner(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 10)
	l := newTestLedger(store)
	owner := uuid.New()

	booking, err := l.CreateBooking(ctx, pool.ID, owner, 2)
	if err != nil {
		t.Fatal(err)
	}

	_, err = l.UpdateBooking(ctx, booking.ID, uuid.New(), 3)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner, got %v", err)
	}
	if got := store.pool(pool.ID).Availability; got != 8 {
		t.Errorf("expected availability unchanged at 8, got %d", got)
	}
}

func TestLedger_CancelBooking_Reimburses(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 10)
	l := newTestLedger(store)
	customer := uuid.New()

	booking, err := l.CreateBooking(ctx, pool.ID, customer, 4)
	if err != nil {
		t.Fatal(err)
	}

	if err := l.CancelBooking(ctx, booking.ID, customer); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := store.pool(pool.ID).Availability; got != 10 {
		t.Errorf("expected availability restored to 10, got %d", got)
	}
	if store.bookingCount() != 0 {
		t.Errorf("expected booking deleted")
	}

	// Second cancel finds nothing and reimburses nothing.
	err = l.CancelBooking(ctx, booking.ID, customer)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second cancel, got %v", err)
	}
	if got := store.pool(pool.ID).Availability; got != 10 {
		t.Errorf("double cancel must not double-credit, got %d", got)
	}
}

func TestLedger_CancelBooking_NonOwner(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 10)
	l := newTestLedger(store)
	owner := uuid.New()

	booking, err := l.CreateBooking(ctx, pool.ID, owner, 4)
	if err != nil {
		t.Fatal(err)
	}

	err = l.CancelBooking(ctx, booking.ID, uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner, got %v", err)
	}
	if got := store.pool(pool.ID).Availability; got != 6 {
		t.Errorf("expected availability unchanged at 6, got %d", got)
	}
}

// Conservation: after an arbitrary interleaving of creates, updates and
// cancels, availability plus the sum of committed booking quantities equals
// the pool's capacity.
func TestLedger_Conservation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := seedPool(store, 30)
	l := newTestLedger(store)

	var g errgroup.Group
	for i := 0; i < 15; i++ {
		g.Go(func() error {
			customer := uuid.New()
			b, err := l.CreateBooking(ctx, pool.ID, customer, 2)
			if errors.Is(err, domain.ErrInsufficientAvailability) {
				return nil
			}
			if err != nil {
				return err
			}
			if _, err := l.UpdateBooking(ctx, b.ID, customer, 3); err != nil &&
				!errors.Is(err, domain.ErrInsufficientAvailability) {
				return err
			}
			if customer[0]%2 == 0 {
				if err := l.CancelBooking(ctx, b.ID, customer); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	booked := 0
	for _, b := range store.bookings {
		booked += b.Quantity
	}
	avail := store.pools[pool.ID].Availability
	store.mu.Unlock()

	if avail < 0 {
		t.Fatalf("availability went negative: %d", avail)
	}
	if avail+booked != 30 {
		t.Errorf("conservation violated: availability %d + booked %d != 30", avail, booked)
	}
}
