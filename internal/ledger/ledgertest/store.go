// Package ledgertest provides an in-memory ledger with the same contract as
// the Postgres one. Every transaction holds one mutex, so transactions are
// serial, and a failed transaction restores the state it started from.
package ledgertest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/invoices"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/google/uuid"
)

type state struct {
	products      map[string]orders.Product
	orders        map[string]orders.Order
	salesOrders   map[string]orders.SalesOrder
	payments      map[string]orders.Payment
	invoices      map[string]orders.Invoice
	transactions  []orders.Transaction
	notifications []notify.Notification
}

func (s *state) clone() state {
	return state{
		products:      maps.Clone(s.products),
		orders:        maps.Clone(s.orders),
		salesOrders:   maps.Clone(s.salesOrders),
		payments:      maps.Clone(s.payments),
		invoices:      maps.Clone(s.invoices),
		transactions:  slices.Clone(s.transactions),
		notifications: slices.Clone(s.notifications),
	}
}

var (
	_ orders.Store   = (*Store)(nil)
	_ invoices.Store = (*Store)(nil)
	_ notify.Store   = (*Store)(nil)
)

type Store struct {
	mu sync.Mutex
	st state

	// FailCommit, when set, is returned instead of committing the next transaction.
	FailCommit error
}

func New() *Store {
	return &Store{st: state{
		products:    map[string]orders.Product{},
		orders:      map[string]orders.Order{},
		salesOrders: map[string]orders.SalesOrder{},
		payments:    map[string]orders.Payment{},
		invoices:    map[string]orders.Invoice{},
	}}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.st.clone()
	if err := fn(ctx, &tx{st: &s.st}); err != nil {
		s.st = saved
		return err
	}
	if s.FailCommit != nil {
		err := s.FailCommit
		s.FailCommit = nil
		s.st = saved
		return err
	}
	return nil
}

// AddProduct seeds a catalog row and returns it.
func (s *Store) AddProduct(ownerID, title string, priceCents int64, stock int) orders.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	p := orders.Product{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      title,
		PriceCents: priceCents,
		Stock:      stock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.st.products[p.ID] = p
	return p
}

// SetPrice changes the catalog price the way the catalog service would.
func (s *Store) SetPrice(productID string, priceCents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[productID]
	p.PriceCents = priceCents
	s.st.products[productID] = p
}

func (s *Store) SetTitle(productID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[productID]
	p.Title = title
	s.st.products[productID] = p
}

// Transactions returns every audit row in insertion order.
func (s *Store) Transactions() []orders.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.transactions)
}

// Notifications returns every stored notification in insertion order.
func (s *Store) Notifications() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.notifications)
}

func (s *Store) Payment(salesOrderID string) (orders.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[salesOrderID]
	return p, ok
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return get(s.st.orders, id)
}

func (s *Store) GetProduct(_ context.Context, id string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return get(s.st.products, id)
}

func (s *Store) GetSalesOrder(_ context.Context, id string) (orders.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, so := range s.st.salesOrders {
		if so.ID == id {
			return so, nil
		}
	}
	return orders.SalesOrder{}, orders.ErrNotFound
}

func (s *Store) GetSalesOrderByOrder(_ context.Context, orderID string) (orders.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return get(s.st.salesOrders, orderID)
}

func (s *Store) GetPaymentByIntent(_ context.Context, externalIntentID string) (orders.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paymentByIntent(&s.st, externalIntentID)
}

func (s *Store) ListTransactionsByOrder(_ context.Context, orderID string) ([]orders.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Transaction, 0)
	for _, t := range s.st.transactions {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListTransactionsByUser(_ context.Context, userID string) ([]orders.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Transaction, 0)
	for i := len(s.st.transactions) - 1; i >= 0; i-- {
		if t := s.st.transactions[i]; t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) EnsureInvoice(_ context.Context, salesOrderID string) (orders.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.st.invoices[salesOrderID]; ok {
		return inv, nil
	}
	if !salesOrderExists(&s.st, salesOrderID) {
		return orders.Invoice{}, orders.ErrNotFound
	}
	inv := orders.Invoice{ID: uuid.NewString(), SalesOrderID: salesOrderID, IssuedAt: time.Now().UTC().Truncate(time.Second)}
	s.st.invoices[salesOrderID] = inv
	return inv, nil
}

func (s *Store) GetInvoiceBySalesOrder(_ context.Context, salesOrderID string) (orders.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return get(s.st.invoices, salesOrderID)
}

func (s *Store) SetInvoiceDocument(_ context.Context, invoiceID, ref string) (orders.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, inv := range s.st.invoices {
		if inv.ID != invoiceID {
			continue
		}
		if inv.DocumentRef == "" {
			inv.DocumentRef = ref
			s.st.invoices[k] = inv
		}
		return inv, nil
	}
	return orders.Invoice{}, orders.ErrNotFound
}

func (s *Store) InvoiceSnapshot(_ context.Context, salesOrderID string) (orders.InvoiceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.st.invoices[salesOrderID]
	if !ok {
		return orders.InvoiceSnapshot{}, orders.ErrNotFound
	}
	for _, so := range s.st.salesOrders {
		if so.ID != salesOrderID {
			continue
		}
		o := s.st.orders[so.OrderID]
		snap := orders.InvoiceSnapshot{Invoice: inv, SalesOrder: so, Order: o, Product: s.st.products[o.ProductID]}
		if p, ok := s.st.payments[so.ID]; ok {
			snap.Payment = &p
		}
		return snap, nil
	}
	return orders.InvoiceSnapshot{}, orders.ErrNotFound
}

func (s *Store) InsertNotification(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.notifications = append(s.st.notifications, n)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, q notify.Query) ([]notify.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Notification, 0)
	for _, n := range s.st.notifications {
		if n.UserID == q.UserID && (!q.UnreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.OldestFirst {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.st.notifications {
		if n.ID == id && n.UserID == userID {
			s.st.notifications[i].Read = true
			return nil
		}
	}
	return orders.ErrNotFound
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.st.notifications {
		if s.st.notifications[i].UserID == userID && !s.st.notifications[i].Read {
			s.st.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

func get[V any](m map[string]V, key string) (V, error) {
	v, ok := m[key]
	if !ok {
		var zero V
		return zero, orders.ErrNotFound
	}
	return v, nil
}

func paymentByIntent(st *state, externalIntentID string) (orders.Payment, error) {
	for _, p := range st.payments {
		if p.ExternalIntentID == externalIntentID {
			return p, nil
		}
	}
	return orders.Payment{}, orders.ErrNotFound
}

func salesOrderExists(st *state, id string) bool {
	for _, so := range st.salesOrders {
		if so.ID == id {
			return true
		}
	}
	return false
}

// tx mutates the live state; Store.InTx restores a snapshot on failure.
type tx struct{ st *state }

func (t *tx) LockProduct(_ context.Context, id string) (orders.Product, error) {
	return get(t.st.products, id)
}

func (t *tx) AdjustStock(_ context.Context, productID string, delta int) error {
	p, err := get(t.st.products, productID)
	if err != nil {
		return err
	}
	if p.Stock+delta < 0 {
		return fmt.Errorf("%w: stock would drop below zero", orders.ErrInsufficientStock)
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	t.st.products[productID] = p
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, dup := t.st.orders[o.ID]; dup {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	t.st.orders[o.ID] = o
	return nil
}

func (t *tx) LockOrder(_ context.Context, id string) (orders.Order, error) {
	return get(t.st.orders, id)
}

func (t *tx) UpdateOrderStatus(_ context.Context, id string, s orders.Status) error {
	o, err := get(t.st.orders, id)
	if err != nil {
		return err
	}
	o.Status = s
	o.UpdatedAt = time.Now().UTC()
	t.st.orders[id] = o
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, tr orders.Transaction) error {
	t.st.transactions = append(t.st.transactions, tr)
	return nil
}

// salesOrders is keyed by order id; payments and invoices by sales order id.

func (t *tx) EnsureSalesOrder(_ context.Context, so orders.SalesOrder) (orders.SalesOrder, error) {
	if existing, ok := t.st.salesOrders[so.OrderID]; ok {
		return existing, nil
	}
	if so.CreatedAt.IsZero() {
		so.CreatedAt = time.Now().UTC()
	}
	t.st.salesOrders[so.OrderID] = so
	return so, nil
}

func (t *tx) LockSalesOrder(_ context.Context, id string) (orders.SalesOrder, error) {
	for _, so := range t.st.salesOrders {
		if so.ID == id {
			return so, nil
		}
	}
	return orders.SalesOrder{}, orders.ErrNotFound
}

func (t *tx) LockSalesOrderByOrder(_ context.Context, orderID string) (orders.SalesOrder, error) {
	return get(t.st.salesOrders, orderID)
}

func (t *tx) UpdateSalesOrderStatus(_ context.Context, id string, s orders.SalesOrderStatus) error {
	for k, so := range t.st.salesOrders {
		if so.ID == id {
			so.Status = s
			t.st.salesOrders[k] = so
			return nil
		}
	}
	return orders.ErrNotFound
}

func (t *tx) UpsertPendingPayment(_ context.Context, p orders.Payment) (orders.Payment, error) {
	now := time.Now().UTC()
	if existing, ok := t.st.payments[p.SalesOrderID]; ok {
		if existing.Status != orders.PaymentPending {
			return orders.Payment{}, fmt.Errorf("%w: payment for sales order %s is already settled", orders.ErrInvalidTransition, p.SalesOrderID)
		}
		existing.ExternalIntentID = p.ExternalIntentID
		existing.Method = p.Method
		existing.UpdatedAt = now
		t.st.payments[p.SalesOrderID] = existing
		return existing, nil
	}
	p.Status = orders.PaymentPending
	p.CreatedAt, p.UpdatedAt = now, now
	t.st.payments[p.SalesOrderID] = p
	return p, nil
}

func (t *tx) LockPaymentBySalesOrder(_ context.Context, salesOrderID string) (orders.Payment, error) {
	return get(t.st.payments, salesOrderID)
}

func (t *tx) LockPaymentByIntent(_ context.Context, externalIntentID string) (orders.Payment, error) {
	return paymentByIntent(t.st, externalIntentID)
}

func (t *tx) UpdatePaymentStatus(_ context.Context, id string, s orders.PaymentStatus) error {
	for k, p := range t.st.payments {
		if p.ID == id {
			p.Status = s
			p.UpdatedAt = time.Now().UTC()
			t.st.payments[k] = p
			return nil
		}
	}
	return orders.ErrNotFound
}
