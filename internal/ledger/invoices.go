package ledger

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/google/uuid"
)

func (s *Store) EnsureInvoice(ctx context.Context, salesOrderID string) (orders.Invoice, error) {
	if _, err := s.DB.Exec(ctx, `
		INSERT INTO invoices (id, sales_order_id) VALUES ($1, $2)
		ON CONFLICT (sales_order_id) DO NOTHING`, uuid.NewString(), salesOrderID); err != nil {
		return orders.Invoice{}, mapErr(err)
	}
	return s.GetInvoiceBySalesOrder(ctx, salesOrderID)
}

func (s *Store) GetInvoiceBySalesOrder(ctx context.Context, salesOrderID string) (orders.Invoice, error) {
	inv, err := scanInvoice(s.DB.QueryRow(ctx, selectInvoice+` WHERE sales_order_id = $1`, salesOrderID))
	return inv, mapErr(err)
}

func (s *Store) SetInvoiceDocument(ctx context.Context, invoiceID, ref string) (orders.Invoice, error) {
	if _, err := s.DB.Exec(ctx, `UPDATE invoices SET document_ref = $2 WHERE id = $1 AND document_ref = ''`, invoiceID, ref); err != nil {
		return orders.Invoice{}, mapErr(err)
	}
	inv, err := scanInvoice(s.DB.QueryRow(ctx, selectInvoice+` WHERE id = $1`, invoiceID))
	return inv, mapErr(err)
}

func (s *Store) InvoiceSnapshot(ctx context.Context, salesOrderID string) (orders.InvoiceSnapshot, error) {
	var (
		snap                       orders.InvoiceSnapshot
		soStatus, orderStatus      string
		payID, payMethod, payExtID *string
		payStatus                  *string
		payCreated, payUpdated     *time.Time
	)
	err := s.DB.QueryRow(ctx, `
		SELECT i.id, i.sales_order_id, i.issued_at, i.document_ref,
		       so.id, so.order_id, so.total_cents, so.status, so.created_at,
		       o.id, o.buyer_id, o.product_id, o.product_title, o.quantity, o.unit_price_cents, o.total_cents, o.status, o.created_at, o.updated_at,
		       p.id, p.owner_id, p.title, p.description, p.stock, p.price_cents, p.created_at, p.updated_at,
		       pay.id, pay.method, pay.external_intent_id, pay.status, pay.created_at, pay.updated_at
		FROM sales_orders so
		JOIN invoices i ON i.sales_order_id = so.id
		JOIN orders o ON o.id = so.order_id
		JOIN products p ON p.id = o.product_id
		LEFT JOIN payments pay ON pay.sales_order_id = so.id
		WHERE so.id = $1`, salesOrderID).Scan(
		&snap.Invoice.ID, &snap.Invoice.SalesOrderID, &snap.Invoice.IssuedAt, &snap.Invoice.DocumentRef,
		&snap.SalesOrder.ID, &snap.SalesOrder.OrderID, &snap.SalesOrder.TotalCents, &soStatus, &snap.SalesOrder.CreatedAt,
		&snap.Order.ID, &snap.Order.BuyerID, &snap.Order.ProductID, &snap.Order.ProductTitle, &snap.Order.Quantity, &snap.Order.UnitPriceCents,
		&snap.Order.TotalCents, &orderStatus, &snap.Order.CreatedAt, &snap.Order.UpdatedAt,
		&snap.Product.ID, &snap.Product.OwnerID, &snap.Product.Title, &snap.Product.Description, &snap.Product.Stock,
		&snap.Product.PriceCents, &snap.Product.CreatedAt, &snap.Product.UpdatedAt,
		&payID, &payMethod, &payExtID, &payStatus, &payCreated, &payUpdated,
	)
	if err != nil {
		return orders.InvoiceSnapshot{}, mapErr(err)
	}
	snap.SalesOrder.Status = orders.SalesOrderStatus(soStatus)
	snap.Order.Status = orders.Status(orderStatus)
	if payID != nil {
		snap.Payment = &orders.Payment{
			ID:               *payID,
			SalesOrderID:     snap.SalesOrder.ID,
			Method:           *payMethod,
			ExternalIntentID: *payExtID,
			Status:           orders.PaymentStatus(*payStatus),
			CreatedAt:        *payCreated,
			UpdatedAt:        *payUpdated,
		}
	}
	return snap, nil
}
