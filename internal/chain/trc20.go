package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CryptoPayRecon/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultUSDTContract is the TRC-20 USDT token contract on Tron mainnet.
const DefaultUSDTContract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

const usdtDecimals = 6

// TRC20Adapter reads token transfers for one contract from the TronGrid
// trc20 endpoint. The response shape differs from native transfers, so the
// token rides in its own adapter rather than a flag on TronAdapter.
type TRC20Adapter struct {
	baseURL  string
	apiKey   string
	contract string
	client   *http.Client
}

func NewTRC20Adapter(baseURL, apiKey, contract string) *TRC20Adapter {
	if baseURL == "" {
		baseURL = defaultTronGridURL
	}
	if contract == "" {
		contract = DefaultUSDTContract
	}
	return &TRC20Adapter{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		contract: contract,
		client:   newExplorerClient(),
	}
}

func (a *TRC20Adapter) Asset() models.Asset { return models.AssetUSDT }

func (a *TRC20Adapter) ValidateAddress(address string) bool {
	return ValidateTronAddress(address)
}

func (a *TRC20Adapter) FetchIncoming(ctx context.Context, address string, limit int) ([]Transfer, error) {
	if address == "" {
		return nil, errors.New("trc20: address is empty")
	}
	values := url.Values{}
	values.Set("limit", strconv.Itoa(clampLimit(limit, 200)))
	values.Set("contract_address", a.contract)
	values.Set("only_confirmed", "true")
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20?%s", a.baseURL, url.PathEscape(address), values.Encode())

	headers := map[string]string{}
	if a.apiKey != "" {
		headers["TRON-PRO-API-KEY"] = a.apiKey
	}

	var resp trc20TxResponse
	if err := getJSON(ctx, a.client, endpoint, headers, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("trc20: %w", err)
	}
	if !resp.Success {
		return nil, nil
	}

	var out []Transfer
	for _, tx := range resp.Data {
		if !strings.EqualFold(tx.To, address) {
			continue
		}
		raw, err := decimal.NewFromString(tx.Value)
		if err != nil {
			continue
		}
		decimals := tx.TokenInfo.Decimals
		if decimals <= 0 {
			decimals = usdtDecimals
		}
		out = append(out, Transfer{
			TxID:      tx.TransactionID,
			Direction: Incoming,
			Amount:    raw.Shift(int32(-decimals)),
			Timestamp: time.UnixMilli(tx.BlockTimestamp).UTC(),
			// only_confirmed is set on the request; what comes back is final.
			Confirmed: true,
		})
	}
	return out, nil
}

type trc20TxResponse struct {
	Success bool      `json:"success"`
	Data    []trc20Tx `json:"data"`
}

type trc20Tx struct {
	TransactionID  string `json:"transaction_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Value          string `json:"value"`
	BlockTimestamp int64  `json:"block_timestamp"`
	TokenInfo      struct {
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"token_info"`
}
