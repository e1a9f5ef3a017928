package store

import (
	"context"
	"errors"
	"time"

	"CryptoPayRecon/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) CreateExpectedPayment(ctx context.Context, p *models.ExpectedPayment) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO expected_payments (
			id, order_id, user_id, asset, expected_amount,
			fiat_equivalent, destination_address, registered_at, payment_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		p.ID,
		p.OrderID,
		p.UserID,
		string(p.Asset),
		p.ExpectedAmount.String(),
		p.FiatEquivalent.String(),
		p.DestinationAddress,
		p.RegisteredAt,
		string(p.PaymentStatus),
	)
	return err
}

func (s *Store) GetExpectedPayment(ctx context.Context, id string) (*models.ExpectedPayment, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, order_id, user_id, asset, expected_amount::text,
			fiat_equivalent::text, destination_address, registered_at,
			payment_status, updated_at
		FROM expected_payments WHERE id=$1
	`, id)
	return scanExpectedPayment(row)
}

// ListActivePayments returns unpaid payments whose matching window is still
// open: registered within the window and not in the future.
func (s *Store) ListActivePayments(ctx context.Context, window time.Duration) ([]*models.ExpectedPayment, error) {
	now := time.Now().UTC()
	rows, err := s.Pool.Query(ctx, `
		SELECT id, order_id, user_id, asset, expected_amount::text,
			fiat_equivalent::text, destination_address, registered_at,
			payment_status, updated_at
		FROM expected_payments
		WHERE payment_status='not_paid'
			AND registered_at > $1
			AND registered_at <= $2
		ORDER BY registered_at
	`, now.Add(-window), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ExpectedPayment
	for rows.Next() {
		p, err := scanExpectedPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountActivePayments(ctx context.Context, window time.Duration) (int64, error) {
	now := time.Now().UTC()
	var n int64
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM expected_payments
		WHERE payment_status='not_paid'
			AND registered_at > $1
			AND registered_at <= $2
	`, now.Add(-window), now).Scan(&n)
	return n, err
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, seller_id, status, created_at, updated_at
		FROM orders WHERE id=$1
	`, orderID)

	var order models.Order
	var status string
	if err := row.Scan(&order.OrderID, &order.SellerID, &status, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatus(status)
	return &order, nil
}

// GetSellerAddress reads the seller's currently configured wallet for the
// asset; found is false when none is configured.
func (s *Store) GetSellerAddress(ctx context.Context, sellerID string, asset models.Asset) (string, bool, error) {
	var addr string
	err := s.Pool.QueryRow(ctx, `
		SELECT address FROM seller_wallets WHERE seller_id=$1 AND asset=$2
	`, sellerID, string(asset)).Scan(&addr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return addr, addr != "", nil
}

// MarkPaid performs the dual transition as one transaction, each write guarded
// by the state it expects. applied is false when another writer already moved
// either record; that is a routine race outcome, not an error.
func (s *Store) MarkPaid(ctx context.Context, paymentID, orderID string) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := tx.Exec(ctx, `
		UPDATE expected_payments
		SET payment_status='paid', updated_at=now()
		WHERE id=$1 AND payment_status='not_paid'
	`, paymentID)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	res, err = tx.Exec(ctx, `
		UPDATE orders
		SET status='pending', updated_at=now()
		WHERE id=$1 AND status='awaiting_payment'
	`, orderID)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// HasActivePaymentTo reports whether some active payment for the asset is
// waiting on a seller whose current wallet is the given address.
func (s *Store) HasActivePaymentTo(ctx context.Context, asset models.Asset, address string, window time.Duration) (bool, error) {
	now := time.Now().UTC()
	var exists bool
	err := s.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM expected_payments ep
			JOIN orders o ON o.id = ep.order_id
			JOIN seller_wallets sw ON sw.seller_id = o.seller_id AND sw.asset = ep.asset
			WHERE ep.payment_status='not_paid'
				AND ep.asset=$1
				AND ep.registered_at > $2
				AND ep.registered_at <= $3
				AND sw.address=$4
		)
	`, string(asset), now.Add(-window), now, address).Scan(&exists)
	return exists, err
}

func (s *Store) UpsertPriceQuote(ctx context.Context, quote models.PriceQuote) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO price_quotes (asset, fiat_price, fetched_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (asset) DO UPDATE
		SET fiat_price=EXCLUDED.fiat_price, fetched_at=EXCLUDED.fetched_at
	`, string(quote.Asset), quote.FiatPrice.String(), quote.FetchedAt)
	return err
}

func (s *Store) GetPriceQuote(ctx context.Context, asset models.Asset) (models.PriceQuote, bool, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT asset, fiat_price::text, fetched_at FROM price_quotes WHERE asset=$1
	`, string(asset))
	quote, err := scanPriceQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PriceQuote{}, false, nil
		}
		return models.PriceQuote{}, false, err
	}
	return quote, true, nil
}

func (s *Store) ListPriceQuotes(ctx context.Context) ([]models.PriceQuote, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT asset, fiat_price::text, fetched_at FROM price_quotes ORDER BY asset
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PriceQuote
	for rows.Next() {
		quote, err := scanPriceQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, quote)
	}
	return out, rows.Err()
}

func scanExpectedPayment(row pgx.Row) (*models.ExpectedPayment, error) {
	var p models.ExpectedPayment
	var asset, expected, fiat, status string
	if err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.UserID,
		&asset,
		&expected,
		&fiat,
		&p.DestinationAddress,
		&p.RegisteredAt,
		&status,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if p.ExpectedAmount, err = decimal.NewFromString(expected); err != nil {
		return nil, err
	}
	if p.FiatEquivalent, err = decimal.NewFromString(fiat); err != nil {
		return nil, err
	}
	p.Asset = models.Asset(asset)
	p.PaymentStatus = models.PaymentStatus(status)
	return &p, nil
}

func scanPriceQuote(row pgx.Row) (models.PriceQuote, error) {
	var quote models.PriceQuote
	var asset, price string
	if err := row.Scan(&asset, &price, &quote.FetchedAt); err != nil {
		return models.PriceQuote{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return models.PriceQuote{}, err
	}
	quote.Asset = models.Asset(asset)
	quote.FiatPrice = p
	return quote, nil
}
