package orders

import "context"

// Store is the ledger as seen by the engine and the reconciler.
// Reads outside InTx see committed state only.
type Store interface {
	// InTx runs fn in one database transaction; any error from fn rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOrder(ctx context.Context, id string) (Order, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	GetSalesOrder(ctx context.Context, id string) (SalesOrder, error)
	GetSalesOrderByOrder(ctx context.Context, orderID string) (SalesOrder, error)
	GetPaymentByIntent(ctx context.Context, externalIntentID string) (Payment, error)
	ListTransactionsByOrder(ctx context.Context, orderID string) ([]Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
}

// Tx is the write side. Lock* methods take a row lock held until commit
// and return ErrNotFound when the row does not exist.
type Tx interface {
	LockProduct(ctx context.Context, id string) (Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) error

	InsertOrder(ctx context.Context, o Order) error
	LockOrder(ctx context.Context, id string) (Order, error)
	UpdateOrderStatus(ctx context.Context, id string, s Status) error
	InsertTransaction(ctx context.Context, t Transaction) error

	// EnsureSalesOrder inserts so unless the order already has one, then locks and returns the stored row.
	EnsureSalesOrder(ctx context.Context, so SalesOrder) (SalesOrder, error)
	LockSalesOrder(ctx context.Context, id string) (SalesOrder, error)
	LockSalesOrderByOrder(ctx context.Context, orderID string) (SalesOrder, error)
	UpdateSalesOrderStatus(ctx context.Context, id string, s SalesOrderStatus) error

	// UpsertPendingPayment creates the sales order's payment or re-points a still
	// pending one at a new external intent. A settled payment is left alone and
	// ErrInvalidTransition is returned.
	UpsertPendingPayment(ctx context.Context, p Payment) (Payment, error)
	LockPaymentBySalesOrder(ctx context.Context, salesOrderID string) (Payment, error)
	LockPaymentByIntent(ctx context.Context, externalIntentID string) (Payment, error)
	UpdatePaymentStatus(ctx context.Context, id string, s PaymentStatus) error
}
