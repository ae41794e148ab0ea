package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

type InvoiceQueue interface {
	RequestInvoice(ctx context.Context, salesOrderID string) error
}

// Engine owns every write to order and sales order status.
//
// Each write runs in one transaction that locks the order row first, so
// transitions on the same order are linearised and the loser re-reads the
// committed status. Effects are dispatched only after commit.
type Engine struct {
	Store    Store
	Notifier Notifier
	Invoices InvoiceQueue
	Currency string
}

func (e *Engine) CreateOrder(ctx context.Context, actor Actor, productID string, quantity int) (Order, error) {
	if quantity <= 0 {
		return Order{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if actor.UserID == "" || actor.Role == RoleSystem {
		return Order{}, forbiddenf("%s cannot place orders", actor)
	}

	var (
		order   Order
		effects []Effect
	)
	err := e.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("product %s: %w", productID, err)
		}
		if p.OwnerID == actor.UserID {
			return forbiddenf("you cannot purchase your own product")
		}
		if p.Stock < quantity {
			return fmt.Errorf("%w: %d of %s left, %d requested", ErrInsufficientStock, p.Stock, p.Title, quantity)
		}
		if err := tx.AdjustStock(ctx, p.ID, -quantity); err != nil {
			return err
		}

		now := time.Now().UTC()
		order = Order{
			ID:             uuid.NewString(),
			BuyerID:        actor.UserID,
			ProductID:      p.ID,
			ProductTitle:   p.Title,
			Quantity:       quantity,
			UnitPriceCents: p.PriceCents,
			TotalCents:     p.PriceCents * int64(quantity),
			Status:         StatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, Transaction{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			UserID:    actor.UserID,
			StatusTo:  StatusPending,
			Timestamp: now,
		}); err != nil {
			return err
		}
		effects = []Effect{notifyEffect(p.OwnerID, "New order for %s from %s: quantity %d, total %s. Approve or reject.",
			p.Title, actor.UserID, quantity, FormatAmount(order.TotalCents, e.Currency))}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("product_id", productID).Stringer("actor", actor).Msg("engine: create order failed")
		return Order{}, err
	}

	log.Info().Str("order_id", order.ID).Str("product_id", productID).Int("quantity", quantity).Msg("engine: order created")
	e.Dispatch(ctx, effects)
	return order, nil
}

// ApplyTransition validates and commits one transition, then dispatches its effects.
func (e *Engine) ApplyTransition(ctx context.Context, req Request) (Order, error) {
	var (
		order   Order
		effects []Effect
	)
	err := e.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		order, effects, err = e.Apply(ctx, tx, req)
		return err
	})
	if err != nil {
		log.Warn().Err(err).
			Str("order_id", req.OrderID).
			Str("transition", string(req.Transition)).
			Stringer("actor", req.Actor).
			Msg("engine: transition rejected")
		return Order{}, err
	}

	e.Dispatch(ctx, effects)
	return order, nil
}

// Apply runs a transition inside a transaction owned by the caller and returns
// the effects the caller must dispatch once that transaction has committed.
func (e *Engine) Apply(ctx context.Context, tx Tx, req Request) (Order, []Effect, error) {
	o, err := tx.LockOrder(ctx, req.OrderID)
	if err != nil {
		return Order{}, nil, fmt.Errorf("order %s: %w", req.OrderID, err)
	}
	p, err := tx.LockProduct(ctx, o.ProductID)
	if err != nil {
		return Order{}, nil, fmt.Errorf("product %s: %w", o.ProductID, err)
	}

	st := State{Order: o, Product: p, Currency: e.Currency}
	so, err := tx.LockSalesOrderByOrder(ctx, o.ID)
	switch {
	case err == nil:
		st.SalesOrder = &so
		pay, err := tx.LockPaymentBySalesOrder(ctx, so.ID)
		if err == nil {
			st.Payment = &pay
		} else if !errors.Is(err, ErrNotFound) {
			return Order{}, nil, err
		}
	case !errors.Is(err, ErrNotFound):
		return Order{}, nil, err
	}

	d, err := Decide(st, req)
	if err != nil {
		return Order{}, nil, err
	}

	if err := tx.UpdateOrderStatus(ctx, o.ID, d.To); err != nil {
		return Order{}, nil, err
	}
	if d.StockDelta != 0 {
		if err := tx.AdjustStock(ctx, p.ID, d.StockDelta); err != nil {
			return Order{}, nil, err
		}
	}
	if d.SalesOrderTo != "" && st.SalesOrder.Status != d.SalesOrderTo {
		if err := tx.UpdateSalesOrderStatus(ctx, st.SalesOrder.ID, d.SalesOrderTo); err != nil {
			return Order{}, nil, err
		}
	}

	now := time.Now().UTC()
	if err := tx.InsertTransaction(ctx, Transaction{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		UserID:     req.Actor.UserID,
		StatusFrom: d.From,
		StatusTo:   d.To,
		Timestamp:  now,
	}); err != nil {
		return Order{}, nil, err
	}

	log.Info().
		Str("order_id", o.ID).
		Stringer("from", d.From).
		Stringer("to", d.To).
		Stringer("actor", req.Actor).
		Msg("engine: transition committed")

	o.Status = d.To
	o.UpdatedAt = now
	return o, d.Effects, nil
}

// Dispatch runs post-commit effects. Failures are logged; the committed change stands.
func (e *Engine) Dispatch(ctx context.Context, effects []Effect) {
	ctx = context.WithoutCancel(ctx)
	for _, ef := range effects {
		switch ef.Kind {
		case EffectNotify:
			if e.Notifier == nil {
				continue
			}
			if err := e.Notifier.Notify(ctx, ef.UserID, ef.Message); err != nil {
				log.Error().Err(err).Str("user_id", ef.UserID).Msg("engine: notification failed")
			}
		case EffectGenerateInvoice:
			if e.Invoices == nil {
				continue
			}
			if err := e.Invoices.RequestInvoice(ctx, ef.SalesOrderID); err != nil {
				log.Error().Err(err).Str("sales_order_id", ef.SalesOrderID).Msg("engine: invoice request failed")
			}
		}
	}
}

func (e *Engine) GetOrder(ctx context.Context, actor Actor, id string) (Order, error) {
	o, err := e.Store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := e.authorizeView(ctx, actor, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// OrderHistory returns the transactions of one order, oldest first.
func (e *Engine) OrderHistory(ctx context.Context, actor Actor, orderID string) ([]Transaction, error) {
	if _, err := e.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return e.Store.ListTransactionsByOrder(ctx, orderID)
}

// UserHistory returns the transitions the actor performed, newest first.
func (e *Engine) UserHistory(ctx context.Context, actor Actor) ([]Transaction, error) {
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	return e.Store.ListTransactionsByUser(ctx, actor.UserID)
}

func (e *Engine) authorizeView(ctx context.Context, actor Actor, o Order) error {
	p, err := e.Store.GetProduct(ctx, o.ProductID)
	if err != nil {
		return err
	}
	if !actor.CanView(o.BuyerID, p.OwnerID) {
		return forbiddenf("%s may not view order %s", actor, o.ID)
	}
	return nil
}
