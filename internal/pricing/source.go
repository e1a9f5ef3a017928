package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"CryptoPayRecon/internal/models"

	"github.com/shopspring/decimal"
)

const defaultTGJUBaseURL = "https://www.tgju.org"

// Source yields the fiat price of one display unit of an asset.
type Source interface {
	FiatPrice(ctx context.Context, asset models.Asset) (decimal.Decimal, error)
}

// tgjuProfile describes where an asset's quote lives and the rial range a
// sane quote must fall in. Out-of-range values are treated as fetch failures
// so a scrape glitch cannot poison the cache.
type tgjuProfile struct {
	path    string
	minRial int64
	maxRial int64
}

var tgjuProfiles = map[models.Asset]tgjuProfile{
	models.AssetUSDT: {path: "/profile/crypto-tether", minRial: 800_000, maxRial: 2_000_000},
	models.AssetTRX:  {path: "/profile/crypto-tron", minRial: 100_000, maxRial: 1_000_000},
	models.AssetXRP:  {path: "/profile/crypto-ripple", minRial: 1_000_000, maxRial: 10_000_000},
	models.AssetADA:  {path: "/profile/crypto-cardano", minRial: 100_000, maxRial: 2_000_000},
}

// The quote sits in a table cell after the rial price label on the profile
// page; there is no JSON endpoint for it.
var tgjuPriceRe = regexp.MustCompile(`(?s)قیمت\s*ریالی.*?<td[^>]*>\s*([\d,]+)\s*</td>`)

// TGJUSource scrapes per-asset rial quotes from tgju.org profile pages and
// converts them to toman, the platform fiat unit.
type TGJUSource struct {
	baseURL string
	client  *http.Client
}

func NewTGJUSource(baseURL string) *TGJUSource {
	if baseURL == "" {
		baseURL = defaultTGJUBaseURL
	}
	return &TGJUSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *TGJUSource) FiatPrice(ctx context.Context, asset models.Asset) (decimal.Decimal, error) {
	profile, ok := tgjuProfiles[asset]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no quote profile for asset %s", asset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+profile.path, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, fmt.Errorf("quote source http status %d for %s", resp.StatusCode, asset)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	m := tgjuPriceRe.FindSubmatch(body)
	if m == nil {
		return decimal.Decimal{}, fmt.Errorf("rial price for %s not found in page", asset)
	}

	rial, err := strconv.ParseInt(strings.ReplaceAll(string(m[1]), ",", ""), 10, 64)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("rial price for %s unparsable: %w", asset, err)
	}
	if rial < profile.minRial || rial > profile.maxRial {
		return decimal.Decimal{}, fmt.Errorf("rial price for %s out of plausible range: %d", asset, rial)
	}

	return decimal.NewFromInt(rial / 10), nil
}
