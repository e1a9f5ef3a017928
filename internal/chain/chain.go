package chain

import (
	"context"
	"time"

	"CryptoPayRecon/internal/models"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Transfer is a network-agnostic view of one on-chain transfer. Amount is in
// the asset's display precision; the adapter owns the smallest-unit conversion.
type Transfer struct {
	TxID      string
	Direction Direction
	Amount    decimal.Decimal
	Timestamp time.Time
	Confirmed bool
}

// Adapter answers "what recent transfers landed at this address?" for one
// network. Implementations are stateless; FetchIncoming returns transfers
// newest-first, already filtered to the incoming direction. An address with no
// history yields an empty slice, not an error.
type Adapter interface {
	Asset() models.Asset
	FetchIncoming(ctx context.Context, address string, limit int) ([]Transfer, error)
	ValidateAddress(address string) bool
}

type Registry map[models.Asset]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Asset()] = a
	}
	return r
}

func (r Registry) For(asset models.Asset) (Adapter, bool) {
	a, ok := r[asset]
	return a, ok
}
