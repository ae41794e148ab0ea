package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var stripeStatus = map[stripe.EventType]orders.PaymentStatus{
	"checkout.session.completed":    orders.PaymentSucceeded,
	"payment_intent.succeeded":      orders.PaymentSucceeded,
	"payment_intent.payment_failed": orders.PaymentFailed,
	"payment_intent.canceled":       orders.PaymentCanceled,
	"checkout.session.expired":      orders.PaymentCanceled,
}

type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func (s *Stripe) ParseEvent(payload []byte, signature string) (Event, error) {
	if signature == "" {
		return Event{}, fmt.Errorf("%w: missing signature", ErrUnauthenticated)
	}
	if !json.Valid(payload) {
		return Event{}, ErrMalformedPayload
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if ev.Data == nil {
		return Event{}, fmt.Errorf("%w: event %s has no data", ErrMalformedPayload, ev.ID)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type), Status: stripeStatus[ev.Type]}
	switch {
	case strings.HasPrefix(out.Type, "checkout.session."):
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		out.IntentID, out.Metadata = cs.ID, cs.Metadata
		if cs.PaymentIntent != nil {
			out.PaymentIntentID = cs.PaymentIntent.ID
		}
	case strings.HasPrefix(out.Type, "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		out.IntentID, out.PaymentIntentID, out.Metadata = pi.ID, pi.ID, pi.Metadata
	}
	return out, nil
}

func (s *Stripe) IntentMetadata(ctx context.Context, intentID string) (map[string]string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get payment intent %s: %w", intentID, err)
	}
	return pi.Metadata, nil
}

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	meta := map[string]string{MetaSalesOrderID: req.SalesOrderID, MetaOrderID: req.OrderID}
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.SalesOrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Title),
				},
			},
			Quantity: stripe.Int64(int64(req.Quantity)),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: meta},
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return Checkout{SessionID: cs.ID, URL: cs.URL}, nil
}
