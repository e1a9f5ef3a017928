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

func TestTRC20FetchIncoming(t *testing.T) {
	addr, _ := tronTestAddress(0x11)
	other, _ := tronTestAddress(0x12)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/"+addr+"/transactions/trc20", r.URL.Path)
		assert.Equal(t, DefaultUSDTContract, r.URL.Query().Get("contract_address"))
		assert.Equal(t, "true", r.URL.Query().Get("only_confirmed"))
		fmt.Fprintf(w, `{"success": true, "data": [
			{"transaction_id": "usdt-in", "from": %q, "to": %q, "value": "48500000",
			 "block_timestamp": 1700000000000, "token_info": {"symbol": "USDT", "decimals": 6}},
			{"transaction_id": "usdt-out", "from": %q, "to": %q, "value": "1000000",
			 "block_timestamp": 1700000000000, "token_info": {"symbol": "USDT", "decimals": 6}},
			{"transaction_id": "usdt-bad-value", "from": %q, "to": %q, "value": "not-a-number",
			 "block_timestamp": 1700000000000, "token_info": {"symbol": "USDT", "decimals": 6}}
		]}`, other, addr, addr, other, other, addr)
	}))
	defer srv.Close()

	a := NewTRC20Adapter(srv.URL, "", "")
	transfers, err := a.FetchIncoming(context.Background(), addr, 50)
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	assert.Equal(t, "usdt-in", transfers[0].TxID)
	assert.True(t, transfers[0].Amount.Equal(decimal.RequireFromString("48.5")))
	assert.True(t, transfers[0].Confirmed)
}

func TestTRC20DefaultsTokenDecimals(t *testing.T) {
	addr, _ := tronTestAddress(0x13)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success": true, "data": [
			{"transaction_id": "usdt-in", "to": %q, "value": "1000000",
			 "block_timestamp": 1700000000000, "token_info": {"symbol": "USDT"}}
		]}`, addr)
	}))
	defer srv.Close()

	a := NewTRC20Adapter(srv.URL, "", "")
	transfers, err := a.FetchIncoming(context.Background(), addr, 50)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.True(t, transfers[0].Amount.Equal(decimal.NewFromInt(1)))
}

func TestTRC20UnknownAccountIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	addr, _ := tronTestAddress(0x14)
	a := NewTRC20Adapter(srv.URL, "", "")
	transfers, err := a.FetchIncoming(context.Background(), addr, 50)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}
