package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"CryptoPayRecon/internal/models"

	"github.com/shopspring/decimal"
)

const (
	defaultXRPScanURL = "https://api.xrpscan.com/api/v1"
	dropsPerXRP       = 6
)

var xrpAddressRe = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)

// XRPLAdapter reads XRP payments from the XRPScan account API.
type XRPLAdapter struct {
	baseURL string
	client  *http.Client
}

func NewXRPLAdapter(baseURL string) *XRPLAdapter {
	if baseURL == "" {
		baseURL = defaultXRPScanURL
	}
	return &XRPLAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newExplorerClient(),
	}
}

func (a *XRPLAdapter) Asset() models.Asset { return models.AssetXRP }

func (a *XRPLAdapter) ValidateAddress(address string) bool {
	return xrpAddressRe.MatchString(strings.TrimSpace(address))
}

func (a *XRPLAdapter) FetchIncoming(ctx context.Context, address string, limit int) ([]Transfer, error) {
	if address == "" {
		return nil, errors.New("xrpl: address is empty")
	}
	values := url.Values{}
	values.Set("limit", strconv.Itoa(clampLimit(limit, 100)))
	endpoint := fmt.Sprintf("%s/account/%s/transactions?%s", a.baseURL, url.PathEscape(address), values.Encode())

	var resp xrpscanTxResponse
	if err := getJSON(ctx, a.client, endpoint, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("xrpl: %w", err)
	}

	var out []Transfer
	for _, tx := range resp.Transactions {
		if tx.TransactionType != "Payment" {
			continue
		}
		if !strings.EqualFold(tx.Destination, address) {
			continue
		}
		amount, ok := parseXRPAmount(tx.Amount)
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339, tx.Date)
		if err != nil {
			continue
		}
		out = append(out, Transfer{
			TxID:      tx.Hash,
			Direction: Incoming,
			Amount:    amount,
			Timestamp: ts.UTC(),
			Confirmed: tx.Meta.TransactionResult == "tesSUCCESS",
		})
	}
	return out, nil
}

// parseXRPAmount handles both wire forms: a bare string of drops for native
// XRP, or a {currency, value} object for issued currencies. Only native XRP
// amounts are accepted.
func parseXRPAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Decimal{}, false
	}

	var drops string
	if err := json.Unmarshal(raw, &drops); err == nil {
		d, err := decimal.NewFromString(drops)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d.Shift(-dropsPerXRP), true
	}

	var issued struct {
		Currency string          `json:"currency"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &issued); err != nil {
		return decimal.Decimal{}, false
	}
	if issued.Currency != "XRP" {
		return decimal.Decimal{}, false
	}
	var valueStr string
	if err := json.Unmarshal(issued.Value, &valueStr); err != nil {
		// value may come through as a bare number
		valueStr = strings.TrimSpace(string(issued.Value))
	}
	d, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

type xrpscanTxResponse struct {
	Transactions []xrpscanTx `json:"transactions"`
}

type xrpscanTx struct {
	Hash            string          `json:"hash"`
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	Amount          json.RawMessage `json:"Amount"`
	Date            string          `json:"date"`
	Meta            struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
}
