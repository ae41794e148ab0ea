package orders

import "time"

type Product struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Stock       int
	PriceCents  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID             string    `json:"id"`
	BuyerID        string    `json:"buyer_id"`
	ProductID      string    `json:"product_id"`
	ProductTitle   string    `json:"product_title"` // snapshot at creation
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"` // snapshot at creation
	TotalCents     int64     `json:"total_cents"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SalesOrder struct {
	ID         string           `json:"id"`
	OrderID    string           `json:"order_id"`
	TotalCents int64            `json:"total_cents"`
	Status     SalesOrderStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
}

const MethodStripe = "stripe"

type Payment struct {
	ID               string        `json:"id"`
	SalesOrderID     string        `json:"sales_order_id"`
	Method           string        `json:"method"`
	ExternalIntentID string        `json:"external_intent_id"`
	Status           PaymentStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type Invoice struct {
	ID           string    `json:"id"`
	SalesOrderID string    `json:"sales_order_id"`
	IssuedAt     time.Time `json:"issued_at"`
	DocumentRef  string    `json:"document_ref,omitempty"`
}

// Transaction is one accepted status change. StatusFrom is empty for the creation row.
type Transaction struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id,omitempty"`
	StatusFrom Status    `json:"status_from"`
	StatusTo   Status    `json:"status_to"`
	Timestamp  time.Time `json:"timestamp"`
}

// InvoiceSnapshot is everything an invoice is rendered from, read in one statement.
type InvoiceSnapshot struct {
	Invoice    Invoice
	SalesOrder SalesOrder
	Order      Order
	Product    Product
	Payment    *Payment
}
