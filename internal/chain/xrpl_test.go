package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xrplTestAddress = "rEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh"

func TestXRPLFetchIncoming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account/"+xrplTestAddress+"/transactions", r.URL.Path)
		fmt.Fprintf(w, `{"transactions": [
			{"hash": "tx-drops", "TransactionType": "Payment", "Destination": %q,
			 "Amount": "48500000", "date": "2026-08-01T10:00:00Z",
			 "meta": {"TransactionResult": "tesSUCCESS"}},
			{"hash": "tx-object", "TransactionType": "Payment", "Destination": %q,
			 "Amount": {"currency": "XRP", "value": "12.5"}, "date": "2026-08-01T10:01:00Z",
			 "meta": {"TransactionResult": "tesSUCCESS"}},
			{"hash": "tx-failed", "TransactionType": "Payment", "Destination": %q,
			 "Amount": "1000000", "date": "2026-08-01T10:02:00Z",
			 "meta": {"TransactionResult": "tecUNFUNDED_PAYMENT"}},
			{"hash": "tx-issued", "TransactionType": "Payment", "Destination": %q,
			 "Amount": {"currency": "USD", "value": "100"}, "date": "2026-08-01T10:03:00Z",
			 "meta": {"TransactionResult": "tesSUCCESS"}},
			{"hash": "tx-trustset", "TransactionType": "TrustSet", "Destination": %q,
			 "date": "2026-08-01T10:04:00Z", "meta": {"TransactionResult": "tesSUCCESS"}},
			{"hash": "tx-elsewhere", "TransactionType": "Payment",
			 "Destination": "rDodqfAoF8pVh2SoUwhQRfvkqrs4wwxUrz",
			 "Amount": "1000000", "date": "2026-08-01T10:05:00Z",
			 "meta": {"TransactionResult": "tesSUCCESS"}}
		]}`, xrplTestAddress, xrplTestAddress, xrplTestAddress, xrplTestAddress, xrplTestAddress)
	}))
	defer srv.Close()

	a := NewXRPLAdapter(srv.URL)
	transfers, err := a.FetchIncoming(context.Background(), xrplTestAddress, 50)
	require.NoError(t, err)
	require.Len(t, transfers, 3)

	assert.Equal(t, "tx-drops", transfers[0].TxID)
	assert.True(t, transfers[0].Amount.Equal(decimal.RequireFromString("48.5")))
	assert.True(t, transfers[0].Confirmed)

	assert.Equal(t, "tx-object", transfers[1].TxID)
	assert.True(t, transfers[1].Amount.Equal(decimal.RequireFromString("12.5")))

	assert.Equal(t, "tx-failed", transfers[2].TxID)
	assert.False(t, transfers[2].Confirmed)
}

func TestXRPLUnknownAccountIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewXRPLAdapter(srv.URL)
	transfers, err := a.FetchIncoming(context.Background(), xrplTestAddress, 50)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestXRPLValidateAddress(t *testing.T) {
	a := NewXRPLAdapter("")
	assert.True(t, a.ValidateAddress(xrplTestAddress))
	assert.True(t, a.ValidateAddress(" "+xrplTestAddress+" "))
	assert.False(t, a.ValidateAddress(""))
	assert.False(t, a.ValidateAddress("xEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh"))
	assert.False(t, a.ValidateAddress("r0invalid"))
}

func TestParseXRPAmount(t *testing.T) {
	d, ok := parseXRPAmount([]byte(`"1500000"`))
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("1.5")))

	d, ok = parseXRPAmount([]byte(`{"currency": "XRP", "value": 2.5}`))
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("2.5")))

	_, ok = parseXRPAmount([]byte(`{"currency": "EUR", "value": "9"}`))
	assert.False(t, ok)

	_, ok = parseXRPAmount(nil)
	assert.False(t, ok)
}
