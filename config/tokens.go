package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Token is an ERC-20 contract tracked on one network.
type Token struct {
	Symbol  string `yaml:"symbol"`
	Address string `yaml:"address"`
}

// TokenRegistry lists tracked tokens per network.
type TokenRegistry map[NetworkType][]Token

// DefaultTokens returns the built-in token table.
func DefaultTokens() TokenRegistry {
	return TokenRegistry{
		Mainnet: {{Symbol: "DAI", Address: "0x89d24a6b4ccb1b6faa2625fe562bdd9a23260359"}},
		Testnet: {{Symbol: "DAI", Address: "0xad6d458402f60fd3bd25163575031acdce07538d"}},
		Dev:     {{Symbol: "DAI", Address: "0x0000000000000000000000000000000000000000"}},
	}
}

// LoadTokens reads a tokens.yaml file keyed by network name. A missing file
// yields an empty registry.
//
//	mainnet:
//	  - symbol: USDC
//	    address: 0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48
func LoadTokens(path string) (TokenRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TokenRegistry{}, nil
		}
		return nil, err
	}
	var reg TokenRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if reg == nil {
		reg = TokenRegistry{}
	}
	return reg, nil
}

// Merge overlays other onto r. Tokens with the same symbol on the same
// network are replaced, others are appended.
func (r TokenRegistry) Merge(other TokenRegistry) TokenRegistry {
	out := make(TokenRegistry, len(r))
	for n, toks := range r {
		out[n] = append([]Token(nil), toks...)
	}
	for n, toks := range other {
		for _, t := range toks {
			t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
			replaced := false
			for i, cur := range out[n] {
				if strings.EqualFold(cur.Symbol, t.Symbol) {
					out[n][i] = t
					replaced = true
					break
				}
			}
			if !replaced {
				out[n] = append(out[n], t)
			}
		}
	}
	return out
}

// Specs returns the native asset followed by the tokens of network.
// Token decimals are left zero and resolved from the contract at load time.
func (r TokenRegistry) Specs(network NetworkType) []types.AssetSpec {
	specs := []types.AssetSpec{types.NativeSpec()}
	for _, t := range r[network] {
		specs = append(specs, types.AssetSpec{
			Type:     types.ParseAssetType(t.Symbol),
			Contract: common.HexToAddress(t.Address),
		})
	}
	return specs
}

func validateTokens(r TokenRegistry) error {
	for n, toks := range r {
		if !knownNetwork(n) {
			return fmt.Errorf("tokens: unknown network %q", n)
		}
		seen := make(map[string]struct{}, len(toks))
		for i, t := range toks {
			sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
			if sym == "" {
				return fmt.Errorf("tokens.%s[%d]: symbol is empty", n, i)
			}
			if types.ParseAssetType(sym) == types.NativeAsset {
				return fmt.Errorf("tokens.%s[%d]: %s is the native asset", n, i, sym)
			}
			if !common.IsHexAddress(t.Address) {
				return fmt.Errorf("tokens.%s[%d]: invalid address %q", n, i, t.Address)
			}
			if _, dup := seen[sym]; dup {
				return fmt.Errorf("tokens.%s has duplicate symbol %s", n, sym)
			}
			seen[sym] = struct{}{}
		}
	}
	return nil
}
