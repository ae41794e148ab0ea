package ledger

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type txStore struct{ q querier }

func (t *txStore) LockProduct(ctx context.Context, id string) (orders.Product, error) {
	p, err := scanProduct(t.q.QueryRow(ctx, selectProduct+` WHERE id = $1 FOR UPDATE`, id))
	return p, mapErr(err)
}

func (t *txStore) AdjustStock(ctx context.Context, productID string, delta int) error {
	ct, err := t.q.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, productID, delta)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *txStore) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders (id, buyer_id, product_id, product_title, quantity, unit_price_cents, total_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.BuyerID, o.ProductID, o.ProductTitle, o.Quantity, o.UnitPriceCents, o.TotalCents, string(o.Status), o.CreatedAt, o.UpdatedAt)
	return mapErr(err)
}

func (t *txStore) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(t.q.QueryRow(ctx, selectOrder+` WHERE id = $1 FOR UPDATE`, id))
	return o, mapErr(err)
}

func (t *txStore) UpdateOrderStatus(ctx context.Context, id string, s orders.Status) error {
	ct, err := t.q.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, string(s))
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *txStore) InsertTransaction(ctx context.Context, tr orders.Transaction) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO transactions (id, order_id, user_id, status_from, status_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.ID, tr.OrderID, nullable(tr.UserID), string(tr.StatusFrom), string(tr.StatusTo), tr.Timestamp)
	return mapErr(err)
}

func (t *txStore) EnsureSalesOrder(ctx context.Context, so orders.SalesOrder) (orders.SalesOrder, error) {
	if _, err := t.q.Exec(ctx, `
		INSERT INTO sales_orders (id, order_id, total_cents, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING`,
		so.ID, so.OrderID, so.TotalCents, string(so.Status)); err != nil {
		return orders.SalesOrder{}, mapErr(err)
	}
	return t.LockSalesOrderByOrder(ctx, so.OrderID)
}

func (t *txStore) LockSalesOrder(ctx context.Context, id string) (orders.SalesOrder, error) {
	so, err := scanSalesOrder(t.q.QueryRow(ctx, selectSalesOrder+` WHERE id = $1 FOR UPDATE`, id))
	return so, mapErr(err)
}

func (t *txStore) LockSalesOrderByOrder(ctx context.Context, orderID string) (orders.SalesOrder, error) {
	so, err := scanSalesOrder(t.q.QueryRow(ctx, selectSalesOrder+` WHERE order_id = $1 FOR UPDATE`, orderID))
	return so, mapErr(err)
}

func (t *txStore) UpdateSalesOrderStatus(ctx context.Context, id string, s orders.SalesOrderStatus) error {
	ct, err := t.q.Exec(ctx, `UPDATE sales_orders SET status = $2 WHERE id = $1`, id, string(s))
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *txStore) UpsertPendingPayment(ctx context.Context, p orders.Payment) (orders.Payment, error) {
	stored, err := scanPayment(t.q.QueryRow(ctx, `
		INSERT INTO payments (id, sales_order_id, method, external_intent_id, status)
		VALUES ($1, $2, $3, $4, 'pending')
		ON CONFLICT (sales_order_id) DO UPDATE
		SET external_intent_id = EXCLUDED.external_intent_id, method = EXCLUDED.method, updated_at = now()
		WHERE payments.status = 'pending'
		RETURNING id, sales_order_id, method, external_intent_id, status, created_at, updated_at`,
		p.ID, p.SalesOrderID, p.Method, p.ExternalIntentID))
	if err != nil {
		err = mapErr(err)
		if err == orders.ErrNotFound {
			// the conflicting row is settled and the WHERE clause skipped it
			return orders.Payment{}, fmt.Errorf("%w: payment for sales order %s is already settled", orders.ErrInvalidTransition, p.SalesOrderID)
		}
		return orders.Payment{}, err
	}
	return stored, nil
}

func (t *txStore) LockPaymentBySalesOrder(ctx context.Context, salesOrderID string) (orders.Payment, error) {
	p, err := scanPayment(t.q.QueryRow(ctx, selectPayment+` WHERE sales_order_id = $1 FOR UPDATE`, salesOrderID))
	return p, mapErr(err)
}

func (t *txStore) LockPaymentByIntent(ctx context.Context, externalIntentID string) (orders.Payment, error) {
	p, err := scanPayment(t.q.QueryRow(ctx, selectPayment+` WHERE external_intent_id = $1 FOR UPDATE`, externalIntentID))
	return p, mapErr(err)
}

func (t *txStore) UpdatePaymentStatus(ctx context.Context, id string, s orders.PaymentStatus) error {
	ct, err := t.q.Exec(ctx, `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`, id, string(s))
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}
