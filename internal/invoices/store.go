package invoices

import (
	"context"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type Store interface {
	GetSalesOrder(ctx context.Context, id string) (orders.SalesOrder, error)
	// EnsureInvoice creates the sales order's invoice row if absent and returns the stored row.
	EnsureInvoice(ctx context.Context, salesOrderID string) (orders.Invoice, error)
	GetInvoiceBySalesOrder(ctx context.Context, salesOrderID string) (orders.Invoice, error)
	InvoiceSnapshot(ctx context.Context, salesOrderID string) (orders.InvoiceSnapshot, error)
	// SetInvoiceDocument writes ref only if the invoice has none yet and returns the stored row,
	// which carries the earlier reference when another writer won.
	SetInvoiceDocument(ctx context.Context, invoiceID, ref string) (orders.Invoice, error)
}
