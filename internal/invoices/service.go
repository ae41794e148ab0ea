package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

// Service is the user-facing side: download links and manual re-requests.
type Service struct {
	Orders   orders.Store
	Invoices Store
	Blobs    BlobStore
	Queue    orders.InvoiceQueue
	URLTTL   time.Duration
}

// DownloadURL returns a short-lived link to the invoice document.
func (s *Service) DownloadURL(ctx context.Context, actor orders.Actor, salesOrderID string) (string, error) {
	if err := s.authorize(ctx, actor, salesOrderID); err != nil {
		return "", err
	}
	inv, err := s.Invoices.GetInvoiceBySalesOrder(ctx, salesOrderID)
	if err != nil {
		return "", err
	}
	if inv.DocumentRef == "" {
		return "", fmt.Errorf("%w: invoice for sales order %s is not ready", orders.ErrNotFound, salesOrderID)
	}
	ttl := s.URLTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return s.Blobs.URL(ctx, inv.DocumentRef, ttl)
}

// Request queues generation for a paid sales order. Asking again is harmless.
func (s *Service) Request(ctx context.Context, actor orders.Actor, salesOrderID string) error {
	if err := s.authorize(ctx, actor, salesOrderID); err != nil {
		return err
	}
	so, err := s.Orders.GetSalesOrder(ctx, salesOrderID)
	if err != nil {
		return err
	}
	if so.Status != orders.SalesOrderPaid {
		return fmt.Errorf("sales order %s is %s: %w", so.ID, so.Status, ErrNotPaid)
	}
	inv, err := s.Invoices.GetInvoiceBySalesOrder(ctx, salesOrderID)
	if err == nil && inv.DocumentRef != "" {
		return nil
	}
	if err != nil && !errors.Is(err, orders.ErrNotFound) {
		return err
	}
	return s.Queue.RequestInvoice(ctx, salesOrderID)
}

func (s *Service) authorize(ctx context.Context, actor orders.Actor, salesOrderID string) error {
	so, err := s.Orders.GetSalesOrder(ctx, salesOrderID)
	if err != nil {
		return err
	}
	o, err := s.Orders.GetOrder(ctx, so.OrderID)
	if err != nil {
		return err
	}
	p, err := s.Orders.GetProduct(ctx, o.ProductID)
	if err != nil {
		return err
	}
	if !actor.CanView(o.BuyerID, p.OwnerID) {
		return fmt.Errorf("%w: %s may not access the invoice of sales order %s", orders.ErrForbidden, actor, salesOrderID)
	}
	return nil
}
