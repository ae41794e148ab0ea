package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrSuperseded marks a failure or cancellation for a checkout the buyer has
// since replaced. It is acknowledged and leaves the live payment alone.
var ErrSuperseded = errors.New("event is for a superseded checkout")

// Deduper remembers processed gateway event ids. It only shortcuts replays;
// the payment row status is what makes reconciliation idempotent.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type Service struct {
	Store       orders.Store
	Engine      *orders.Engine
	Gateway     Gateway
	Dedup       Deduper
	Currency    string
	FrontendURL string
}

// InitiatePayment opens a checkout session for an approved order and records
// the pending payment. The gateway call runs outside any transaction.
func (s *Service) InitiatePayment(ctx context.Context, actor orders.Actor, orderID string) (Checkout, error) {
	var (
		req CheckoutRequest
		so  orders.SalesOrder
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if actor.Role == orders.RoleSystem || actor.UserID != o.BuyerID {
			return fmt.Errorf("%w: only the buyer can pay for order %s", orders.ErrForbidden, o.ID)
		}
		if o.Status != orders.StatusApproved {
			return fmt.Errorf("%w: order %s is %s, payment needs an approved order", orders.ErrInvalidTransition, o.ID, o.Status)
		}
		p, err := tx.LockProduct(ctx, o.ProductID)
		if err != nil {
			return err
		}

		so, err = tx.EnsureSalesOrder(ctx, orders.SalesOrder{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			TotalCents: o.TotalCents,
			Status:     orders.SalesOrderPending,
		})
		if err != nil {
			return err
		}
		if so.Status != orders.SalesOrderPending {
			return fmt.Errorf("%w: sales order %s is %s", orders.ErrInvalidTransition, so.ID, so.Status)
		}
		pay, err := tx.LockPaymentBySalesOrder(ctx, so.ID)
		switch {
		case err == nil && pay.Status.Settled():
			return fmt.Errorf("%w: payment for order %s is already %s", orders.ErrInvalidTransition, o.ID, pay.Status)
		case err != nil && !errors.Is(err, orders.ErrNotFound):
			return err
		}

		req = CheckoutRequest{
			SalesOrderID:    so.ID,
			OrderID:         o.ID,
			Title:           p.Title,
			Quantity:        o.Quantity,
			UnitAmountCents: o.UnitPriceCents,
			Currency:        s.Currency,
			SuccessURL:      fmt.Sprintf("%s/orders/%s/success/", s.FrontendURL, o.ID),
			CancelURL:       fmt.Sprintf("%s/orders/%s/cancel/", s.FrontendURL, o.ID),
		}
		return nil
	})
	if err != nil {
		return Checkout{}, err
	}

	co, err := s.Gateway.CreateCheckout(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("payments: checkout session failed")
		return Checkout{}, err
	}

	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != orders.StatusApproved {
			return &orders.StaleError{OrderID: o.ID, Expected: orders.StatusApproved, Actual: o.Status}
		}
		_, err = tx.UpsertPendingPayment(ctx, orders.Payment{
			ID:               uuid.NewString(),
			SalesOrderID:     so.ID,
			Method:           orders.MethodStripe,
			ExternalIntentID: co.SessionID,
		})
		return err
	})
	if err != nil {
		return Checkout{}, err
	}

	log.Info().Str("order_id", orderID).Str("sales_order_id", so.ID).Str("session_id", co.SessionID).Msg("payments: checkout session created")
	return co, nil
}

// Reconcile handles one webhook delivery. Only signature and payload errors are
// returned; anything else is logged and acknowledged so the gateway stops retrying.
func (s *Service) Reconcile(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.Gateway.ParseEvent(payload, signature)
	if err != nil {
		log.Warn().Err(err).Msg("payments: webhook rejected")
		return err
	}

	switch err := s.ReconcileEvent(ctx, ev); {
	case err == nil:
	case errors.Is(err, orders.ErrAlreadyApplied):
		log.Debug().Str("event_id", ev.ID).Str("type", ev.Type).Msg("payments: event already applied")
	case errors.Is(err, ErrSuperseded):
		log.Info().Str("event_id", ev.ID).Str("type", ev.Type).Str("intent_id", ev.IntentID).Msg("payments: ignoring event for replaced checkout")
	default:
		log.Error().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Str("intent_id", ev.IntentID).Msg("payments: event not applied")
	}
	return nil
}

// ReconcileEvent applies a verified event. A replay returns ErrAlreadyApplied.
func (s *Service) ReconcileEvent(ctx context.Context, ev Event) error {
	if ev.Status == "" {
		log.Debug().Str("event_id", ev.ID).Str("type", ev.Type).Msg("payments: ignoring event type")
		return nil
	}
	if s.Dedup != nil && ev.ID != "" {
		if seen, err := s.Dedup.Seen(ctx, ev.ID); err == nil && seen {
			return orders.ErrAlreadyApplied
		}
	}

	salesOrderID, err := s.resolveSalesOrder(ctx, ev)
	if err != nil {
		return err
	}
	so, err := s.Store.GetSalesOrder(ctx, salesOrderID)
	if err != nil {
		return fmt.Errorf("sales order %s: %w", salesOrderID, err)
	}

	var effects []orders.Effect
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		// order row first, like every other writer
		if _, err := tx.LockOrder(ctx, so.OrderID); err != nil {
			return err
		}
		if _, err := tx.LockSalesOrder(ctx, so.ID); err != nil {
			return err
		}
		pay, err := tx.LockPaymentBySalesOrder(ctx, so.ID)
		if err != nil {
			return fmt.Errorf("payment for sales order %s: %w", so.ID, err)
		}
		// a success is applied whatever checkout it came from; the money was taken
		if ev.Status != orders.PaymentSucceeded && !ev.refersTo(pay.ExternalIntentID) {
			return fmt.Errorf("%w: %s is not the current checkout %s", ErrSuperseded, ev.IntentID, pay.ExternalIntentID)
		}
		if pay.Status == ev.Status {
			return orders.ErrAlreadyApplied
		}
		if pay.Status.Settled() {
			return fmt.Errorf("%w: payment %s is %s, event says %s", orders.ErrInvalidTransition, pay.ID, pay.Status, ev.Status)
		}
		if err := tx.UpdatePaymentStatus(ctx, pay.ID, ev.Status); err != nil {
			return err
		}

		t := orders.TransitionMarkPaid
		if ev.Status != orders.PaymentSucceeded {
			t = orders.TransitionMarkFailed
		}
		_, effects, err = s.Engine.Apply(ctx, tx, orders.Request{OrderID: so.OrderID, Actor: orders.SystemActor, Transition: t})
		if errors.Is(err, orders.ErrInvalidTransition) {
			// the gateway outcome is recorded even when the order has moved on
			log.Warn().Err(err).Str("order_id", so.OrderID).Str("payment_id", pay.ID).Msg("payments: payment settled but order not transitioned")
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Str("event_id", ev.ID).Str("sales_order_id", so.ID).Str("status", string(ev.Status)).Msg("payments: event applied")
	s.Engine.Dispatch(ctx, effects)
	if s.Dedup != nil && ev.ID != "" {
		if err := s.Dedup.Mark(ctx, ev.ID); err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("payments: dedup mark failed")
		}
	}
	return nil
}

func (s *Service) resolveSalesOrder(ctx context.Context, ev Event) (string, error) {
	for _, id := range []string{ev.IntentID, ev.PaymentIntentID} {
		if id == "" {
			continue
		}
		pay, err := s.Store.GetPaymentByIntent(ctx, id)
		if err == nil {
			return pay.SalesOrderID, nil
		}
		if !errors.Is(err, orders.ErrNotFound) {
			return "", err
		}
	}
	if id := ev.Metadata[MetaSalesOrderID]; id != "" {
		return id, nil
	}
	if ev.PaymentIntentID == "" {
		return "", fmt.Errorf("%w: event %s carries no sales order reference", orders.ErrNotFound, ev.ID)
	}

	meta, err := s.Gateway.IntentMetadata(ctx, ev.PaymentIntentID)
	if err != nil {
		return "", err
	}
	if id := meta[MetaSalesOrderID]; id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: intent %s has no sales order metadata", orders.ErrNotFound, ev.PaymentIntentID)
}
