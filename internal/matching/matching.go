package matching

import (
	"CryptoPayRecon/internal/chain"
	"CryptoPayRecon/internal/models"

	"github.com/shopspring/decimal"
)

// TolerancePercent is the accepted deviation around the expected amount. It
// absorbs network fee deduction and price drift between quote and transfer.
const TolerancePercent = 5

// Match scans transfers in the order the adapter returned them (newest first)
// and picks the first one that satisfies the expected payment: confirmed, not
// older than the registration, and within the inclusive tolerance band. It
// never looks for a "best" candidate; the first valid transfer wins.
func Match(expected models.ExpectedPayment, transfers []chain.Transfer) (chain.Transfer, bool) {
	tolerance := expected.ExpectedAmount.Mul(decimal.New(TolerancePercent, -2))
	min := expected.ExpectedAmount.Sub(tolerance)
	max := expected.ExpectedAmount.Add(tolerance)

	for _, t := range transfers {
		if !t.Confirmed {
			continue
		}
		if t.Direction != chain.Incoming {
			continue
		}
		// Transfers made before the invoice existed can never satisfy it.
		if t.Timestamp.Before(expected.RegisteredAt) {
			continue
		}
		if t.Amount.LessThan(min) || t.Amount.GreaterThan(max) {
			continue
		}
		return t, true
	}
	return chain.Transfer{}, false
}
