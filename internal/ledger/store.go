package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/invoices"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres ledger. It implements orders.Store, invoices.Store and notify.Store.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Error().Err(rbErr).Msg("ledger: rollback failed")
		}
	}()

	if err := fn(ctx, &txStore{q: tx}); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, selectOrder+` WHERE id = $1`, id))
	return o, mapErr(err)
}

func (s *Store) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, selectProduct+` WHERE id = $1`, id))
	return p, mapErr(err)
}

func (s *Store) GetSalesOrder(ctx context.Context, id string) (orders.SalesOrder, error) {
	so, err := scanSalesOrder(s.DB.QueryRow(ctx, selectSalesOrder+` WHERE id = $1`, id))
	return so, mapErr(err)
}

func (s *Store) GetSalesOrderByOrder(ctx context.Context, orderID string) (orders.SalesOrder, error) {
	so, err := scanSalesOrder(s.DB.QueryRow(ctx, selectSalesOrder+` WHERE order_id = $1`, orderID))
	return so, mapErr(err)
}

func (s *Store) GetPaymentByIntent(ctx context.Context, externalIntentID string) (orders.Payment, error) {
	p, err := scanPayment(s.DB.QueryRow(ctx, selectPayment+` WHERE external_intent_id = $1`, externalIntentID))
	return p, mapErr(err)
}

func (s *Store) ListTransactionsByOrder(ctx context.Context, orderID string) ([]orders.Transaction, error) {
	return listTransactions(ctx, s.DB, selectTransaction+` WHERE order_id = $1 ORDER BY seq`, orderID)
}

func (s *Store) ListTransactionsByUser(ctx context.Context, userID string) ([]orders.Transaction, error) {
	return listTransactions(ctx, s.DB, selectTransaction+` WHERE user_id = $1 ORDER BY seq DESC`, userID)
}

// SeedProduct inserts or replaces a catalog row. The catalog itself is managed elsewhere;
// this exists for fixtures and tooling.
func (s *Store) SeedProduct(ctx context.Context, p orders.Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products (id, owner_id, title, description, price_cents, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id, title = EXCLUDED.title, description = EXCLUDED.description,
		    price_cents = EXCLUDED.price_cents, stock = EXCLUDED.stock, updated_at = now()`,
		p.ID, p.OwnerID, p.Title, p.Description, p.PriceCents, p.Stock)
	return mapErr(err)
}

func listTransactions(ctx context.Context, q querier, sql string, args ...any) ([]orders.Transaction, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]orders.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}

// mapErr translates driver errors into the orders error vocabulary.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return fmt.Errorf("%w: %s", orders.ErrStaleState, pgErr.Message)
		case pgerrcode.CheckViolation:
			if pgErr.ConstraintName == "products_stock_check" {
				return fmt.Errorf("%w: %s", orders.ErrInsufficientStock, pgErr.Message)
			}
		case pgerrcode.InvalidTextRepresentation:
			// malformed uuid in a lookup
			return orders.ErrNotFound
		}
	}
	return err
}

var (
	_ orders.Store   = (*Store)(nil)
	_ invoices.Store = (*Store)(nil)
	_ notify.Store   = (*Store)(nil)
)
