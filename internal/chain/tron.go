package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"CryptoPayRecon/internal/models"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
)

const (
	defaultTronGridURL = "https://api.trongrid.io"

	// Tron addresses are 20 payload bytes behind a 0x41 version byte.
	tronAddressVersion = 0x41
	sunPerTRX          = 6
)

var tronAddressRe = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

// TronAdapter reads native TRX transfers from the TronGrid account API.
type TronAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewTronAdapter(baseURL, apiKey string) *TronAdapter {
	if baseURL == "" {
		baseURL = defaultTronGridURL
	}
	return &TronAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newExplorerClient(),
	}
}

func (a *TronAdapter) Asset() models.Asset { return models.AssetTRX }

func (a *TronAdapter) ValidateAddress(address string) bool {
	return ValidateTronAddress(address)
}

func (a *TronAdapter) FetchIncoming(ctx context.Context, address string, limit int) ([]Transfer, error) {
	if address == "" {
		return nil, errors.New("tron: address is empty")
	}
	values := url.Values{}
	values.Set("limit", strconv.Itoa(clampLimit(limit, 200)))
	values.Set("only_confirmed", "true")
	values.Set("only_to", "true")
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/transactions?%s", a.baseURL, url.PathEscape(address), values.Encode())

	var resp tronTxResponse
	if err := getJSON(ctx, a.client, endpoint, a.headers(), &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("tron: %w", err)
	}
	if !resp.Success {
		return nil, nil
	}

	var out []Transfer
	for _, tx := range resp.Data {
		if len(tx.RawData.Contract) == 0 {
			continue
		}
		contract := tx.RawData.Contract[0]
		if contract.Type != "TransferContract" {
			continue
		}
		to := TronHexToBase58(contract.Parameter.Value.ToAddress)
		if !strings.EqualFold(to, address) {
			continue
		}
		confirmed := len(tx.Ret) == 0 || tx.Ret[0].ContractRet == "SUCCESS"
		out = append(out, Transfer{
			TxID:      tx.TxID,
			Direction: Incoming,
			Amount:    decimal.New(contract.Parameter.Value.Amount, -sunPerTRX),
			Timestamp: time.UnixMilli(tx.BlockTimestamp).UTC(),
			Confirmed: confirmed,
		})
	}
	return out, nil
}

func (a *TronAdapter) headers() map[string]string {
	if a.apiKey == "" {
		return nil
	}
	return map[string]string{"TRON-PRO-API-KEY": a.apiKey}
}

// ValidateTronAddress checks the base58check encoding, not just the shape.
func ValidateTronAddress(address string) bool {
	address = strings.TrimSpace(address)
	if !tronAddressRe.MatchString(address) {
		return false
	}
	payload, version, err := base58.CheckDecode(address)
	return err == nil && version == tronAddressVersion && len(payload) == 20
}

// TronHexToBase58 converts the 41-prefixed hex form TronGrid returns into the
// T... base58check form wallets use. Unrecognized input passes through.
func TronHexToBase58(hexAddr string) string {
	b, err := hex.DecodeString(hexAddr)
	if err != nil || len(b) != 21 || b[0] != tronAddressVersion {
		return hexAddr
	}
	return base58.CheckEncode(b[1:], tronAddressVersion)
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		return 50
	}
	if limit > max {
		return max
	}
	return limit
}

// TronGrid response types

type tronTxResponse struct {
	Success bool     `json:"success"`
	Data    []tronTx `json:"data"`
}

type tronTx struct {
	TxID           string `json:"txID"`
	BlockTimestamp int64  `json:"block_timestamp"`
	RawData        struct {
		Contract []struct {
			Type      string `json:"type"`
			Parameter struct {
				Value struct {
					OwnerAddress string `json:"owner_address"`
					ToAddress    string `json:"to_address"`
					Amount       int64  `json:"amount"`
				} `json:"value"`
			} `json:"parameter"`
		} `json:"contract"`
	} `json:"raw_data"`
	Ret []struct {
		ContractRet string `json:"contractRet"`
	} `json:"ret"`
}
