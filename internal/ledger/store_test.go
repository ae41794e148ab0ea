package ledger_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/ledger"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStore connects to LEDGER_TEST_DSN, a disposable database.
func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DSN not set")
	}
	require.NoError(t, postgres.Migrate(dsn))
	pool, err := postgres.Connect(context.Background(), dsn, 16)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return &ledger.Store{DB: pool}
}

func seed(t *testing.T, s *ledger.Store, stock int) orders.Product {
	t.Helper()
	p := orders.Product{ID: uuid.NewString(), OwnerID: uuid.NewString(), Title: "Lamp", PriceCents: 500, Stock: stock}
	require.NoError(t, s.SeedProduct(context.Background(), p))
	return p
}

func customer() orders.Actor {
	return orders.Actor{UserID: uuid.NewString(), Role: orders.RoleCustomer}
}

func TestStore_ConcurrentOrdersNeverOversell(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seed(t, s, 7)
	e := &orders.Engine{Store: s, Currency: "KZT"}

	var (
		wg     sync.WaitGroup
		placed atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateOrder(ctx, customer(), p.ID, 1)
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, orders.ErrInsufficientStock):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 7, placed.Load())
	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestStore_TransitionsAndHistory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seed(t, s, 3)
	e := &orders.Engine{Store: s, Currency: "KZT"}
	buyer := customer()
	seller := orders.Actor{UserID: p.OwnerID, Role: orders.RoleSeller}

	o, err := e.CreateOrder(ctx, buyer, p.ID, 2)
	require.NoError(t, err)
	_, err = e.ApplyTransition(ctx, orders.Request{OrderID: o.ID, Actor: seller, Transition: orders.TransitionReject})
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock, "rejection restores stock")

	history, err := s.ListTransactionsByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, orders.StatusPending, history[0].StatusTo)
	assert.Equal(t, orders.StatusRejected, history[1].StatusTo)
	assert.Equal(t, seller.UserID, history[1].UserID)

	_, err = s.GetOrder(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestStore_HistoryIgnoresWriterClock(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seed(t, s, 3)
	e := &orders.Engine{Store: s, Currency: "KZT"}
	o, err := e.CreateOrder(ctx, customer(), p.ID, 1)
	require.NoError(t, err)

	// a second instance whose clock runs an hour behind writes the next step
	behind := time.Now().Add(-time.Hour).UTC()
	seller := uuid.NewString()
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.InsertTransaction(ctx, orders.Transaction{ID: uuid.NewString(), OrderID: o.ID, UserID: seller,
			StatusFrom: orders.StatusPending, StatusTo: orders.StatusApproved, Timestamp: behind})
	}))
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.InsertTransaction(ctx, orders.Transaction{ID: uuid.NewString(), OrderID: o.ID, UserID: seller,
			StatusFrom: orders.StatusApproved, StatusTo: orders.StatusShipped, Timestamp: behind})
	}))

	history, err := s.ListTransactionsByOrder(ctx, o.ID)
	require.NoError(t, err)
	var chain []orders.Status
	for _, tr := range history {
		chain = append(chain, tr.StatusTo)
	}
	assert.Equal(t, []orders.Status{orders.StatusPending, orders.StatusApproved, orders.StatusShipped}, chain)

	mine, err := s.ListTransactionsByUser(ctx, seller)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, orders.StatusShipped, mine[0].StatusTo, "newest first")
}

func TestStore_SettledPaymentIsFinal(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := seed(t, s, 3)
	e := &orders.Engine{Store: s, Currency: "KZT"}
	o, err := e.CreateOrder(ctx, customer(), p.ID, 1)
	require.NoError(t, err)

	soID, payID := uuid.NewString(), uuid.NewString()
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		so, err := tx.EnsureSalesOrder(ctx, orders.SalesOrder{ID: soID, OrderID: o.ID, TotalCents: o.TotalCents, Status: orders.SalesOrderPending})
		if err != nil {
			return err
		}
		pay, err := tx.UpsertPendingPayment(ctx, orders.Payment{ID: payID, SalesOrderID: so.ID, Method: orders.MethodStripe, ExternalIntentID: "cs_" + payID})
		if err != nil {
			return err
		}
		return tx.UpdatePaymentStatus(ctx, pay.ID, orders.PaymentSucceeded)
	}))

	err = s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		_, err := tx.UpsertPendingPayment(ctx, orders.Payment{ID: uuid.NewString(), SalesOrderID: soID, Method: orders.MethodStripe, ExternalIntentID: "cs_other"})
		return err
	})
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	pay, err := s.GetPaymentByIntent(ctx, "cs_"+payID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentSucceeded, pay.Status)
}

func TestStore_Notifications(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	f := &notify.Fanout{Store: s}
	user := uuid.NewString()

	require.NoError(t, f.Notify(ctx, user, "one"))
	require.NoError(t, f.Notify(ctx, user, "two"))

	unread, err := f.Unread(ctx, user)
	require.NoError(t, err)
	require.Len(t, unread, 2)

	assert.ErrorIs(t, f.MarkRead(ctx, uuid.NewString(), unread[0].ID), orders.ErrNotFound)
	require.NoError(t, f.MarkRead(ctx, user, unread[0].ID))
	n, err := f.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
