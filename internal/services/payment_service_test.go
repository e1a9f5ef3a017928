package services

import (
	"context"
	"errors"
	"testing"

	"CryptoPayRecon/internal/chain"
	"CryptoPayRecon/internal/models"
	"CryptoPayRecon/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentStore struct {
	payments map[string]*models.ExpectedPayment
	err      error
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: map[string]*models.ExpectedPayment{}}
}

func (f *fakePaymentStore) CreateExpectedPayment(ctx context.Context, p *models.ExpectedPayment) error {
	if f.err != nil {
		return f.err
	}
	f.payments[p.ID] = p
	return nil
}

func (f *fakePaymentStore) GetExpectedPayment(ctx context.Context, id string) (*models.ExpectedPayment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

type fakePriceCache struct {
	quotes map[models.Asset]models.PriceQuote
	err    error
}

func (f *fakePriceCache) Get(ctx context.Context, asset models.Asset) (models.PriceQuote, bool, error) {
	if f.err != nil {
		return models.PriceQuote{}, false, f.err
	}
	q, ok := f.quotes[asset]
	return q, ok, nil
}

type fakeAdapter struct {
	asset models.Asset
	valid bool
}

func (f *fakeAdapter) Asset() models.Asset { return f.asset }
func (f *fakeAdapter) ValidateAddress(address string) bool {
	return f.valid
}
func (f *fakeAdapter) FetchIncoming(ctx context.Context, address string, limit int) ([]chain.Transfer, error) {
	return nil, nil
}

type fakeStarter struct {
	calls int
}

func (f *fakeStarter) EnsureRunning(ctx context.Context) error {
	f.calls++
	return nil
}

func newService(store *fakePaymentStore, prices *fakePriceCache) *PaymentService {
	return &PaymentService{
		Store:  store,
		Prices: prices,
		Adapters: chain.Registry{
			models.AssetUSDT: &fakeAdapter{asset: models.AssetUSDT, valid: true},
			models.AssetTRX:  &fakeAdapter{asset: models.AssetTRX, valid: false},
		},
	}
}

func cachedPrice(asset models.Asset, price int64) *fakePriceCache {
	return &fakePriceCache{quotes: map[models.Asset]models.PriceQuote{
		asset: {Asset: asset, FiatPrice: decimal.NewFromInt(price)},
	}}
}

func TestCreateExpectedPaymentConvertsAtCachedRate(t *testing.T) {
	store := newFakePaymentStore()
	svc := newService(store, cachedPrice(models.AssetUSDT, 100_000))

	p, err := svc.CreateExpectedPayment(context.Background(), "order-1", "user-1",
		models.AssetUSDT, decimal.NewFromInt(5_000_000), "TAddr")
	require.NoError(t, err)

	// 5,000,000 toman at 100,000 toman/USDT
	assert.True(t, p.ExpectedAmount.Equal(decimal.NewFromInt(50)), "got %s", p.ExpectedAmount)
	assert.True(t, p.FiatEquivalent.Equal(decimal.NewFromInt(5_000_000)))
	assert.Equal(t, models.PaymentNotPaid, p.PaymentStatus)
	assert.Equal(t, "order-1", p.OrderID)
	assert.NotEmpty(t, p.ID)
	assert.Contains(t, store.payments, p.ID)

	got, err := svc.GetExpectedPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestCreateExpectedPaymentRoundsToSixPlaces(t *testing.T) {
	store := newFakePaymentStore()
	svc := newService(store, cachedPrice(models.AssetUSDT, 103_000))

	p, err := svc.CreateExpectedPayment(context.Background(), "order-1", "user-1",
		models.AssetUSDT, decimal.NewFromInt(1_000_000), "TAddr")
	require.NoError(t, err)
	assert.True(t, p.ExpectedAmount.Equal(decimal.RequireFromString("9.708738")), "got %s", p.ExpectedAmount)
}

func TestCreateExpectedPaymentValidation(t *testing.T) {
	svc := newService(newFakePaymentStore(), cachedPrice(models.AssetUSDT, 100_000))
	ctx := context.Background()
	fiat := decimal.NewFromInt(1_000_000)

	_, err := svc.CreateExpectedPayment(ctx, "", "user-1", models.AssetUSDT, fiat, "TAddr")
	assert.ErrorIs(t, err, ErrMissingOrderID)

	_, err = svc.CreateExpectedPayment(ctx, "order-1", "", models.AssetUSDT, fiat, "TAddr")
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = svc.CreateExpectedPayment(ctx, "order-1", "user-1", models.AssetUSDT, decimal.Zero, "TAddr")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateExpectedPayment(ctx, "order-1", "user-1", models.Asset("DOGE"), fiat, "TAddr")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)

	// the TRX adapter in this registry rejects every address
	_, err = svc.CreateExpectedPayment(ctx, "order-1", "user-1", models.AssetTRX, fiat, "TAddr")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestCreateExpectedPaymentColdStartUsesEstimate(t *testing.T) {
	store := newFakePaymentStore()
	svc := newService(store, &fakePriceCache{quotes: map[models.Asset]models.PriceQuote{}})

	p, err := svc.CreateExpectedPayment(context.Background(), "order-1", "user-1",
		models.AssetUSDT, decimal.NewFromInt(1_000_000), "TAddr")
	require.NoError(t, err)

	est, ok := pricing.DefaultEstimate(models.AssetUSDT)
	require.True(t, ok)
	want := decimal.NewFromInt(1_000_000).Div(est).Round(6)
	assert.True(t, p.ExpectedAmount.Equal(want), "got %s want %s", p.ExpectedAmount, want)
}

func TestCreateExpectedPaymentPriceCacheError(t *testing.T) {
	svc := newService(newFakePaymentStore(), &fakePriceCache{err: errors.New("db down")})
	_, err := svc.CreateExpectedPayment(context.Background(), "order-1", "user-1",
		models.AssetUSDT, decimal.NewFromInt(1_000_000), "TAddr")
	assert.ErrorContains(t, err, "db down")
}

func TestCreateExpectedPaymentKicksReconciler(t *testing.T) {
	store := newFakePaymentStore()
	svc := newService(store, cachedPrice(models.AssetUSDT, 100_000))
	starter := &fakeStarter{}
	svc.Reconciler = starter

	_, err := svc.CreateExpectedPayment(context.Background(), "order-1", "user-1",
		models.AssetUSDT, decimal.NewFromInt(1_000_000), "TAddr")
	require.NoError(t, err)
	assert.Equal(t, 1, starter.calls)
}

func TestCreateExpectedPaymentStoreFailureIsReturned(t *testing.T) {
	store := newFakePaymentStore()
	store.err = errors.New("insert failed")
	starter := &fakeStarter{}
	svc := newService(store, cachedPrice(models.AssetUSDT, 100_000))
	svc.Reconciler = starter

	_, err := svc.CreateExpectedPayment(context.Background(), "order-1", "user-1",
		models.AssetUSDT, decimal.NewFromInt(1_000_000), "TAddr")
	assert.ErrorContains(t, err, "insert failed")
	assert.Zero(t, starter.calls, "a failed registration must not kick the reconciler")
}
