package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Asset string

const (
	AssetTRX  Asset = "TRX"
	AssetUSDT Asset = "USDT"
	AssetXRP  Asset = "XRP"
	AssetADA  Asset = "ADA"
)

func SupportedAssets() []Asset {
	return []Asset{AssetTRX, AssetUSDT, AssetXRP, AssetADA}
}

func (a Asset) Supported() bool {
	switch a {
	case AssetTRX, AssetUSDT, AssetXRP, AssetADA:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentNotPaid PaymentStatus = "not_paid"
	PaymentPaid    PaymentStatus = "paid"
)

type OrderStatus string

const (
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPending         OrderStatus = "pending"
	OrderConfirmed       OrderStatus = "confirmed"
	OrderPreparing       OrderStatus = "preparing"
	OrderShipped         OrderStatus = "shipped"
	OrderDelivered       OrderStatus = "delivered"
	OrderCancelled       OrderStatus = "cancelled"
)

// ExpectedPayment is the record the presentation layer registers when a payer
// picks a crypto payment method. The reconciler mutates it exactly once,
// not_paid -> paid. DestinationAddress is a snapshot taken at registration
// time; matching runs against the seller's currently configured address.
type ExpectedPayment struct {
	ID                 string
	OrderID            string
	UserID             string
	Asset              Asset
	ExpectedAmount     decimal.Decimal
	FiatEquivalent     decimal.Decimal
	DestinationAddress string
	RegisteredAt       time.Time
	PaymentStatus      PaymentStatus
	UpdatedAt          time.Time
}

type Order struct {
	OrderID   string
	SellerID  string
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceQuote is a point cache row, one per asset. FiatPrice is the price of
// one display unit of the asset in the platform fiat unit.
type PriceQuote struct {
	Asset     Asset
	FiatPrice decimal.Decimal
	FetchedAt time.Time
}
