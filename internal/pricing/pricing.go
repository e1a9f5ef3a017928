package pricing

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"CryptoPayRecon/internal/models"

	"github.com/shopspring/decimal"
)

// Store is the slice of persistence the cache needs: one upserted quote row
// per asset, read back as the last successfully fetched value.
type Store interface {
	UpsertPriceQuote(ctx context.Context, quote models.PriceQuote) error
	GetPriceQuote(ctx context.Context, asset models.Asset) (models.PriceQuote, bool, error)
	ListPriceQuotes(ctx context.Context) ([]models.PriceQuote, error)
}

// Service keeps the per-asset fiat quotes warm. Refresh failures for an asset
// leave its previous quote and timestamp untouched, so readers always see the
// last value that was actually fetched.
type Service struct {
	Store    Store
	Source   Source
	Interval time.Duration

	refreshing atomic.Bool
}

// Run refreshes immediately, then on every interval until ctx is cancelled.
// The schedule is independent of demand; Get never triggers a fetch.
func (s *Service) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Refresh(ctx); err != nil {
			log.Printf("price refresh failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh fetches and upserts a quote per supported asset. A refresh already
// in progress makes a new call a no-op. Per-asset failures are logged and
// skipped; the stale row stays.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		log.Printf("price refresh already in progress, skipping")
		return nil
	}
	defer s.refreshing.Store(false)

	now := time.Now().UTC()
	for _, asset := range models.SupportedAssets() {
		price, err := s.Source.FiatPrice(ctx, asset)
		if err != nil {
			log.Printf("price fetch %s failed, keeping cached value: %v", asset, err)
			continue
		}
		quote := models.PriceQuote{Asset: asset, FiatPrice: price, FetchedAt: now}
		if err := s.Store.UpsertPriceQuote(ctx, quote); err != nil {
			log.Printf("price upsert %s failed: %v", asset, err)
			continue
		}
		log.Printf("price %s updated: %s", asset, price)
	}
	return ctx.Err()
}

// Get returns the last successfully fetched quote. found is false only when
// no fetch for the asset has ever succeeded.
func (s *Service) Get(ctx context.Context, asset models.Asset) (models.PriceQuote, bool, error) {
	return s.Store.GetPriceQuote(ctx, asset)
}

func (s *Service) List(ctx context.Context) ([]models.PriceQuote, error) {
	return s.Store.ListPriceQuotes(ctx)
}

// Rough toman estimates for the cold-start case: the cache has never been
// filled and the source is down. Callers opt into these explicitly; Get
// reports found=false rather than inventing a value.
var defaultEstimates = map[models.Asset]decimal.Decimal{
	models.AssetUSDT: decimal.NewFromInt(100_000),
	models.AssetTRX:  decimal.NewFromInt(25_000),
	models.AssetXRP:  decimal.NewFromInt(250_000),
	models.AssetADA:  decimal.NewFromInt(60_000),
}

func DefaultEstimate(asset models.Asset) (decimal.Decimal, bool) {
	est, ok := defaultEstimates[asset]
	return est, ok
}
