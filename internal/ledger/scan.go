package ledger

import (
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/jackc/pgx/v5"
)

const (
	selectProduct = `SELECT id, owner_id, title, description, stock, price_cents, created_at, updated_at FROM products`

	selectOrder = `SELECT id, buyer_id, product_id, product_title, quantity, unit_price_cents, total_cents, status, created_at, updated_at FROM orders`

	selectSalesOrder = `SELECT id, order_id, total_cents, status, created_at FROM sales_orders`

	selectPayment = `SELECT id, sales_order_id, method, external_intent_id, status, created_at, updated_at FROM payments`

	selectInvoice = `SELECT id, sales_order_id, issued_at, document_ref FROM invoices`

	selectTransaction = `SELECT id, order_id, COALESCE(user_id::text, ''), status_from, status_to, created_at FROM transactions`

	selectNotification = `SELECT id, user_id, message, read, created_at FROM notifications`
)

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.ProductID, &o.ProductTitle, &o.Quantity, &o.UnitPriceCents, &o.TotalCents, &status, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}

func scanSalesOrder(row pgx.Row) (orders.SalesOrder, error) {
	var (
		so     orders.SalesOrder
		status string
	)
	err := row.Scan(&so.ID, &so.OrderID, &so.TotalCents, &status, &so.CreatedAt)
	so.Status = orders.SalesOrderStatus(status)
	return so, err
}

func scanPayment(row pgx.Row) (orders.Payment, error) {
	var (
		p      orders.Payment
		status string
	)
	err := row.Scan(&p.ID, &p.SalesOrderID, &p.Method, &p.ExternalIntentID, &status, &p.CreatedAt, &p.UpdatedAt)
	p.Status = orders.PaymentStatus(status)
	return p, err
}

func scanInvoice(row pgx.Row) (orders.Invoice, error) {
	var inv orders.Invoice
	err := row.Scan(&inv.ID, &inv.SalesOrderID, &inv.IssuedAt, &inv.DocumentRef)
	return inv, err
}

func scanTransaction(row pgx.Row) (orders.Transaction, error) {
	var (
		t        orders.Transaction
		from, to string
	)
	err := row.Scan(&t.ID, &t.OrderID, &t.UserID, &from, &to, &t.Timestamp)
	t.StatusFrom, t.StatusTo = orders.Status(from), orders.Status(to)
	return t, err
}

func scanNotification(row pgx.Row) (notify.Notification, error) {
	var n notify.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt)
	return n, err
}

// nullable stores an empty id as NULL.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}
