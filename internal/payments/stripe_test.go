package payments

import (
	"bytes"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const whsec = "whsec_test"

func signStripe(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func TestStripeParseEvent(t *testing.T) {
	s := NewStripe("sk_test", whsec)

	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{
			name: "checkout session completed",
			payload: `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{
				"id":"cs_1","object":"checkout.session","payment_intent":"pi_1","metadata":{"sales_order_id":"so-1"}}}}`,
			want: Event{ID: "evt_1", Type: "checkout.session.completed", Status: orders.PaymentSucceeded,
				IntentID: "cs_1", PaymentIntentID: "pi_1", Metadata: map[string]string{"sales_order_id": "so-1"}},
		},
		{
			name: "payment failed",
			payload: `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{
				"id":"pi_2","object":"payment_intent","metadata":{}}}}`,
			want: Event{ID: "evt_2", Type: "payment_intent.payment_failed", Status: orders.PaymentFailed,
				IntentID: "pi_2", PaymentIntentID: "pi_2", Metadata: map[string]string{}},
		},
		{
			name: "session expired",
			payload: `{"id":"evt_3","object":"event","type":"checkout.session.expired","data":{"object":{
				"id":"cs_3","object":"checkout.session"}}}`,
			want: Event{ID: "evt_3", Type: "checkout.session.expired", Status: orders.PaymentCanceled, IntentID: "cs_3"},
		},
		{
			name:    "ignored type",
			payload: `{"id":"evt_4","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`,
			want:    Event{ID: "evt_4", Type: "customer.created"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.payload)
			got, err := s.ParseEvent(body, signStripe(body, whsec, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripeParseEvent_Rejects(t *testing.T) {
	s := NewStripe("sk_test", whsec)
	body := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)

	_, err := s.ParseEvent(body, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.ParseEvent(body, signStripe(body, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.ParseEvent(body, signStripe(body, whsec, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrUnauthenticated, "outside the replay tolerance")

	tampered := bytes.Replace(body, []byte("pi_1"), []byte("pi_2"), 1)
	_, err = s.ParseEvent(tampered, signStripe(body, whsec, time.Now()))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	garbage := []byte(`{"id":`)
	_, err = s.ParseEvent(garbage, signStripe(garbage, whsec, time.Now()))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
