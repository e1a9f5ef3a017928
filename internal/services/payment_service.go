package services

import (
	"context"
	"errors"
	"log"
	"time"

	"CryptoPayRecon/internal/chain"
	"CryptoPayRecon/internal/models"
	"CryptoPayRecon/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingUserID    = errors.New("missing user id")
	ErrMissingOrderID   = errors.New("missing order id")
	ErrUnsupportedAsset = errors.New("unsupported asset")
	ErrInvalidAddress   = errors.New("invalid destination address")
	ErrInvalidAmount    = errors.New("fiat amount must be positive")
	ErrNoPrice          = errors.New("no price available for asset")
)

// cryptoPrecision is the display precision the expected amount is rounded to.
const cryptoPrecision = 6

type Store interface {
	CreateExpectedPayment(ctx context.Context, p *models.ExpectedPayment) error
	GetExpectedPayment(ctx context.Context, id string) (*models.ExpectedPayment, error)
}

type PriceCache interface {
	Get(ctx context.Context, asset models.Asset) (models.PriceQuote, bool, error)
}

// Starter lets the service kick the reconciler when it runs in-process; nil
// when the reconciler lives in a separate worker process.
type Starter interface {
	EnsureRunning(ctx context.Context) error
}

// PaymentService is the inbound surface the presentation layer calls when a
// payer chooses a crypto payment method.
type PaymentService struct {
	Store      Store
	Prices     PriceCache
	Adapters   chain.Registry
	Reconciler Starter
}

// CreateExpectedPayment converts the fiat invoice total into an expected
// crypto quantity at the cached rate, snapshots the destination address, and
// opens the matching window.
func (s *PaymentService) CreateExpectedPayment(ctx context.Context, orderID, userID string, asset models.Asset, fiatTotal decimal.Decimal, destinationAddress string) (*models.ExpectedPayment, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if !fiatTotal.IsPositive() {
		return nil, ErrInvalidAmount
	}
	adapter, ok := s.Adapters.For(asset)
	if !ok {
		return nil, ErrUnsupportedAsset
	}
	if !adapter.ValidateAddress(destinationAddress) {
		return nil, ErrInvalidAddress
	}

	price, err := s.fiatPrice(ctx, asset)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &models.ExpectedPayment{
		ID:                 uuid.NewString(),
		OrderID:            orderID,
		UserID:             userID,
		Asset:              asset,
		ExpectedAmount:     fiatTotal.Div(price).Round(cryptoPrecision),
		FiatEquivalent:     fiatTotal,
		DestinationAddress: destinationAddress,
		RegisteredAt:       now,
		PaymentStatus:      models.PaymentNotPaid,
		UpdatedAt:          now,
	}

	if err := s.Store.CreateExpectedPayment(ctx, p); err != nil {
		return nil, err
	}

	if s.Reconciler != nil {
		if err := s.Reconciler.EnsureRunning(ctx); err != nil {
			log.Printf("reconciler ensure-running failed: %v", err)
		}
	}
	return p, nil
}

func (s *PaymentService) GetExpectedPayment(ctx context.Context, id string) (*models.ExpectedPayment, error) {
	return s.Store.GetExpectedPayment(ctx, id)
}

func (s *PaymentService) fiatPrice(ctx context.Context, asset models.Asset) (decimal.Decimal, error) {
	quote, found, err := s.Prices.Get(ctx, asset)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if found {
		return quote.FiatPrice, nil
	}
	// Cold start: the cache has never been filled. Fall back to the
	// documented rough estimate rather than refusing the registration.
	est, ok := pricing.DefaultEstimate(asset)
	if !ok {
		return decimal.Decimal{}, ErrNoPrice
	}
	log.Printf("no cached price for %s, using default estimate %s", asset, est)
	return est, nil
}
