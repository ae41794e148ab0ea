package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/rs/zerolog/log"
)

var (
	ErrGeneration = errors.New("invoice generation failed")
	ErrInFlight   = errors.New("invoice generation already in progress")
	ErrNotPaid    = fmt.Errorf("%w: sales order is not paid", orders.ErrInvalidTransition)
)

type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// Pipeline turns a paid sales order into exactly one stored invoice document.
type Pipeline struct {
	Store    Store
	Blobs    BlobStore
	Lock     Locker // optional; duplicates converge without it
	Currency string

	// Renderer defaults to Render.
	Renderer func(snap orders.InvoiceSnapshot, currency string) ([]byte, error)
}

// Generate returns the invoice's document reference, rendering and storing it
// on first use. Concurrent calls for one sales order agree on a single reference.
func (p *Pipeline) Generate(ctx context.Context, salesOrderID string) (string, error) {
	if inv, err := p.Store.GetInvoiceBySalesOrder(ctx, salesOrderID); err == nil && inv.DocumentRef != "" {
		return inv.DocumentRef, nil
	}

	so, err := p.Store.GetSalesOrder(ctx, salesOrderID)
	if err != nil {
		return "", fmt.Errorf("sales order %s: %w", salesOrderID, err)
	}
	if so.Status != orders.SalesOrderPaid {
		return "", fmt.Errorf("sales order %s is %s: %w", so.ID, so.Status, ErrNotPaid)
	}

	if p.Lock != nil {
		release, ok, err := p.Lock.Acquire(ctx, fmt.Sprintf(redisx.KeyInvoiceLock, salesOrderID))
		switch {
		case err != nil:
			log.Warn().Err(err).Str("sales_order_id", salesOrderID).Msg("invoices: lock unavailable, generating without it")
		case !ok:
			return "", ErrInFlight
		default:
			defer release()
		}
	}

	inv, err := p.Store.EnsureInvoice(ctx, salesOrderID)
	if err != nil {
		return "", err
	}
	if inv.DocumentRef != "" {
		return inv.DocumentRef, nil
	}

	snap, err := p.Store.InvoiceSnapshot(ctx, salesOrderID)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", salesOrderID, err)
	}
	render := p.Renderer
	if render == nil {
		render = Render
	}
	data, err := render(snap, p.Currency)
	if err != nil {
		if !errors.Is(err, ErrGeneration) {
			err = fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		return "", err
	}

	key := DocumentKey(data)
	if err := p.Blobs.Put(ctx, key, data, "application/pdf"); err != nil {
		return "", err
	}
	stored, err := p.Store.SetInvoiceDocument(ctx, inv.ID, key)
	if err != nil {
		return "", err
	}

	log.Info().Str("sales_order_id", salesOrderID).Str("invoice_id", inv.ID).Str("document_ref", stored.DocumentRef).Msg("invoices: document stored")
	return stored.DocumentRef, nil
}
