// Package types defines the asset model shared by the ledger, validator and
// submitter.
package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AssetType identifies an asset by its ticker symbol.
type AssetType string

// NativeAsset is the chain's native coin.
const NativeAsset AssetType = "ETH"

// NativeDecimals is the number of decimals of the native coin (wei).
const NativeDecimals = 18

// String returns the ticker symbol.
func (a AssetType) String() string { return string(a) }

// ParseAssetType normalizes a user-supplied ticker.
func ParseAssetType(s string) AssetType {
	return AssetType(strings.ToUpper(strings.TrimSpace(s)))
}

// AssetSpec describes where an asset lives on a particular network.
type AssetSpec struct {
	Type     AssetType      `json:"type" yaml:"type"`
	Contract common.Address `json:"contract" yaml:"contract"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
}

// NativeSpec returns the spec of the native coin.
func NativeSpec() AssetSpec {
	return AssetSpec{Type: NativeAsset, Decimals: NativeDecimals}
}

// IsNative reports whether the spec describes the native coin.
func (s AssetSpec) IsNative() bool {
	return s.Type == NativeAsset
}

// Asset is a tracked balance.
//
// Balance is the last chain-confirmed amount. DisplayBalance is Balance plus
// the not-yet-confirmed local deltas of in-flight sends; both converge once
// every operation touching the asset has resolved.
type Asset struct {
	Type           AssetType       `json:"type"`
	Balance        decimal.Decimal `json:"balance"`
	DisplayBalance decimal.Decimal `json:"displayBalance"`
}

// NewAsset returns an asset whose balance and display balance are both b.
func NewAsset(t AssetType, b decimal.Decimal) Asset {
	return Asset{Type: t, Balance: b, DisplayBalance: b}
}

// Pending returns the outstanding local delta (DisplayBalance - Balance).
func (a Asset) Pending() decimal.Decimal {
	return a.DisplayBalance.Sub(a.Balance)
}
