package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/ledger/ledgertest"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct{ userID, message string }

type recorder struct {
	mu       sync.Mutex
	notes    []sent
	invoices []string
	fail     error
}

func (r *recorder) Notify(_ context.Context, userID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, sent{userID, message})
	return r.fail
}

func (r *recorder) RequestInvoice(_ context.Context, salesOrderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices = append(r.invoices, salesOrderID)
	return nil
}

func (r *recorder) to(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		if n.userID == userID {
			out = append(out, n.message)
		}
	}
	return out
}

func newEngine(t *testing.T) (*orders.Engine, *ledgertest.Store, *recorder) {
	t.Helper()
	store := ledgertest.New()
	rec := &recorder{}
	return &orders.Engine{Store: store, Notifier: rec, Invoices: rec, Currency: "KZT"}, store, rec
}

func stock(t *testing.T, store *ledgertest.Store, productID string) int {
	t.Helper()
	p, err := store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	e, store, rec := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 5)

	o, err := e.CreateOrder(ctx, buyer, p.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPending, o.Status)
	assert.EqualValues(t, 500, o.UnitPriceCents)
	assert.EqualValues(t, 1000, o.TotalCents)
	assert.Equal(t, 3, stock(t, store, p.ID))
	require.Len(t, rec.to("seller"), 1)
	assert.Contains(t, rec.to("seller")[0], "Lamp")

	txs := store.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, orders.Status(""), txs[0].StatusFrom)
	assert.Equal(t, orders.StatusPending, txs[0].StatusTo)
	assert.Equal(t, "buyer", txs[0].UserID)
}

func TestCreateOrder_PriceSnapshot(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 5)

	o, err := e.CreateOrder(ctx, buyer, p.ID, 2)
	require.NoError(t, err)
	store.SetPrice(p.ID, 900)
	store.SetTitle(p.ID, "Desk lamp")

	got, err := e.GetOrder(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, got.TotalCents)
	assert.EqualValues(t, 500, got.UnitPriceCents)
	assert.Equal(t, "Lamp", got.ProductTitle)
}

func TestCreateOrder_Rejected(t *testing.T) {
	ctx := context.Background()
	e, store, rec := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 1)

	_, err := e.CreateOrder(ctx, buyer, p.ID, 0)
	assert.ErrorIs(t, err, orders.ErrInvalidInput)

	_, err = e.CreateOrder(ctx, buyer, p.ID, 2)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)

	_, err = e.CreateOrder(ctx, seller, p.ID, 1)
	assert.ErrorIs(t, err, orders.ErrForbidden)

	_, err = e.CreateOrder(ctx, orders.SystemActor, p.ID, 1)
	assert.ErrorIs(t, err, orders.ErrForbidden)

	_, err = e.CreateOrder(ctx, buyer, "missing", 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	assert.Equal(t, 1, stock(t, store, p.ID))
	assert.Empty(t, store.Transactions())
	assert.Empty(t, rec.to("seller"))
}

func TestCreateOrder_ConcurrentStock(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t)
	const n, s = 20, 7
	p := store.AddProduct("seller", "Lamp", 500, s)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, short int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateOrder(ctx, buyer, p.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, orders.ErrInsufficientStock):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, s, ok)
	assert.Equal(t, n-s, short)
	assert.Equal(t, 0, stock(t, store, p.ID))
}

func TestApplyTransition_ApproveNotifiesBuyer(t *testing.T) {
	ctx := context.Background()
	e, store, rec := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 5)
	o, err := e.CreateOrder(ctx, buyer, p.ID, 2)
	require.NoError(t, err)

	got, err := e.ApplyTransition(ctx, orders.Request{OrderID: o.ID, Actor: seller, Transition: orders.TransitionApprove})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusApproved, got.Status)
	require.Len(t, rec.to("buyer"), 1)
	assert.Contains(t, rec.to("buyer")[0], "approved")
	assert.Equal(t, 3, stock(t, store, p.ID))
}

func TestApplyTransition_BuyerCancelsPending(t *testing.T) {
	ctx := context.Background()
	e, store, rec := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 5)
	o, err := e.CreateOrder(ctx, buyer, p.ID, 2)
	require.NoError(t, err)

	got, err := e.ApplyTransition(ctx, orders.Request{OrderID: o.ID, Actor: buyer, Transition: orders.TransitionCancel})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCanceled, got.Status)
	assert.Equal(t, 5, stock(t, store, p.ID))
	assert.Len(t, rec.to("seller"), 2) // new order, then cancellation

	_, err = e.ApplyTransition(ctx, orders.Request{OrderID: o.ID, Actor: buyer, Transition: orders.TransitionCancel})
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	assert.Equal(t, 5, stock(t, store, p.ID))
	assert.Len(t, store.Transactions(), 2)
}

func TestApplyTransition_FailedWriteLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	e, store, rec := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 5)
	o, err := e.CreateOrder(ctx, buyer, p.ID, 2)
	require.NoError(t, err)

	store.FailCommit = errors.New("connection reset")
	_, err = e.ApplyTransition(ctx, orders.Request{OrderID: o.ID, Actor: buyer, Transition: orders.TransitionCancel})
	require.Error(t, err)

	got, err := store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Equal(t, 3, stock(t, store, p.ID))
	assert.Len(t, store.Transactions(), 1)
	assert.Len(t, rec.to("seller"), 1)
}

func TestApplyTransition_RaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 5)
	o, err := e.CreateOrder(ctx, buyer, p.ID, 2)
	require.NoError(t, err)

	reqs := []orders.Request{
		{OrderID: o.ID, Actor: seller, Transition: orders.TransitionApprove, Expected: orders.StatusPending},
		{OrderID: o.ID, Actor: seller, Transition: orders.TransitionReject, Expected: orders.StatusPending},
		{OrderID: o.ID, Actor: buyer, Transition: orders.TransitionCancel, Expected: orders.StatusPending},
	}
	errs := make([]error, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.ApplyTransition(ctx, req)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, orders.ErrStaleState)
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, store.Transactions(), 2)
}

func TestApplyTransition_NotifierFailureKeepsCommit(t *testing.T) {
	ctx := context.Background()
	e, store, rec := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 5)
	o, err := e.CreateOrder(ctx, buyer, p.ID, 1)
	require.NoError(t, err)
	rec.fail = errors.New("notifications table unavailable")

	got, err := e.ApplyTransition(ctx, orders.Request{OrderID: o.ID, Actor: seller, Transition: orders.TransitionApprove})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusApproved, got.Status)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t)
	p := store.AddProduct("seller", "Lamp", 500, 5)
	o, err := e.CreateOrder(ctx, buyer, p.ID, 2)
	require.NoError(t, err)
	_, err = e.ApplyTransition(ctx, orders.Request{OrderID: o.ID, Actor: seller, Transition: orders.TransitionApprove})
	require.NoError(t, err)
	_, err = e.ApplyTransition(ctx, orders.Request{OrderID: o.ID, Actor: seller, Transition: orders.TransitionCancel})
	require.NoError(t, err)

	txs, err := e.OrderHistory(ctx, buyer, o.ID)
	require.NoError(t, err)
	assertChain(t, txs, orders.StatusPending, orders.StatusApproved, orders.StatusCanceled)

	mine, err := e.UserHistory(ctx, seller)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, orders.StatusCanceled, mine[0].StatusTo, "newest first")

	_, err = e.OrderHistory(ctx, orders.Actor{UserID: "stranger", Role: orders.RoleCustomer}, o.ID)
	assert.ErrorIs(t, err, orders.ErrForbidden)

	_, err = e.OrderHistory(ctx, admin, o.ID)
	assert.NoError(t, err)
}

// assertChain checks the rows form an unbroken chain that starts at creation.
func assertChain(t *testing.T, txs []orders.Transaction, statuses ...orders.Status) {
	t.Helper()
	require.Len(t, txs, len(statuses))
	prev := orders.Status("")
	for i, tx := range txs {
		assert.Equal(t, prev, tx.StatusFrom, "row %d", i)
		assert.Equal(t, statuses[i], tx.StatusTo, "row %d", i)
		prev = tx.StatusTo
	}
}
