package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultOracleURL is the ETH Gas Station endpoint.
const DefaultOracleURL = "https://ethgasstation.info/json/ethgasAPI.json"

const maxOracleBody = 64 * 1024

// Oracle fetches gas prices from an ETH Gas Station compatible endpoint.
// The "average" field is read as gwei.
type Oracle struct {
	url  string
	http *http.Client
}

// NewOracle creates an oracle client.
func NewOracle(url string, timeout time.Duration) *Oracle {
	if url == "" {
		url = DefaultOracleURL
	}
	return &Oracle{url: url, http: &http.Client{Timeout: timeout}}
}

type stationResponse struct {
	Average json.Number `json:"average"`
}

// GasPrice returns the average gas price in wei. It satisfies PriceFunc.
func (o *Oracle) GasPrice(ctx context.Context) (*big.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gas oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gas oracle: HTTP %d", resp.StatusCode)
	}

	var body stationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOracleBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("gas oracle: decode: %w", err)
	}
	if body.Average == "" {
		return nil, fmt.Errorf("gas oracle: no average price")
	}
	gwei, err := decimal.NewFromString(body.Average.String())
	if err != nil {
		return nil, fmt.Errorf("gas oracle: bad average %q: %w", body.Average, err)
	}
	if gwei.Sign() <= 0 {
		return nil, fmt.Errorf("gas oracle: non-positive price %s", gwei)
	}
	// Whole gwei only, like the wallet always did.
	return gwei.Truncate(0).Shift(9).BigInt(), nil
}
