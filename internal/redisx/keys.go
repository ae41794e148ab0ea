package redisx

import "time"

const (
	// Dedup webhook processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// In-flight invoice generation: lock:invoice:{sales_order_id} -> holder token
	KeyInvoiceLock = "lock:invoice:%s"

	// Live notification channel per user: user_{user_id}
	ChannelUser = "user_%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLInvoiceLock = 2 * time.Minute
)
