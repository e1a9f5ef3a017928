package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"CryptoPayRecon/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotePage(rial string) string {
	return fmt.Sprintf(`<html><body><table>
<tr><th>قیمت ریالی</th><td class="value">%s</td></tr>
</table></body></html>`, rial)
}

func TestFiatPriceParsesRialQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/profile/crypto-tether", r.URL.Path)
		fmt.Fprint(w, quotePage("1,234,560"))
	}))
	defer srv.Close()

	src := NewTGJUSource(srv.URL)
	price, err := src.FiatPrice(context.Background(), models.AssetUSDT)
	require.NoError(t, err)
	// 1,234,560 rial -> 123,456 toman
	assert.True(t, price.Equal(decimal.NewFromInt(123_456)), "got %s", price)
}

func TestFiatPriceRejectsImplausibleQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage("5,000,000"))
	}))
	defer srv.Close()

	src := NewTGJUSource(srv.URL)
	_, err := src.FiatPrice(context.Background(), models.AssetUSDT)
	assert.ErrorContains(t, err, "out of plausible range")
}

func TestFiatPriceMissingFromPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	}))
	defer srv.Close()

	src := NewTGJUSource(srv.URL)
	_, err := src.FiatPrice(context.Background(), models.AssetTRX)
	assert.ErrorContains(t, err, "not found in page")
}

func TestFiatPriceSourceOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewTGJUSource(srv.URL)
	_, err := src.FiatPrice(context.Background(), models.AssetXRP)
	assert.ErrorContains(t, err, "http status 503")
}

func TestFiatPriceUnknownAsset(t *testing.T) {
	src := NewTGJUSource("http://localhost:0")
	_, err := src.FiatPrice(context.Background(), models.Asset("DOGE"))
	assert.ErrorContains(t, err, "no quote profile")
}
