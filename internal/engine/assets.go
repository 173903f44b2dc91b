package engine

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// loadAssets queries every tracked asset of chain concurrently. The native
// balance is required; a token that cannot be read is left out with a
// warning. Returned specs carry the decimals reported by each contract.
func loadAssets(ctx context.Context, chain *Chain, addr common.Address) ([]types.Asset, []types.AssetSpec, error) {
	type result struct {
		asset types.Asset
		spec  types.AssetSpec
		ok    bool
	}
	results := make([]result, len(chain.Assets))

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range chain.Assets {
		i, spec := i, spec
		g.Go(func() error {
			if spec.IsNative() {
				bal, err := chain.Net.Balance(gctx, addr)
				if err != nil {
					return fmt.Errorf("load %s balance: %w", spec.Type, err)
				}
				results[i] = result{types.NewAsset(spec.Type, types.FromSubunits(bal, spec.Decimals)), spec, true}
				return nil
			}

			dec, err := chain.Net.TokenDecimals(gctx, spec.Contract)
			if err != nil {
				log.Engine.Warn().Err(err).Str("asset", spec.Type.String()).Msg("Token decimals unavailable, skipping")
				return nil
			}
			spec.Decimals = dec
			bal, err := chain.Net.TokenBalance(gctx, spec.Contract, addr)
			if err != nil {
				log.Engine.Warn().Err(err).Str("asset", spec.Type.String()).Msg("Token balance unavailable, skipping")
				return nil
			}
			results[i] = result{types.NewAsset(spec.Type, types.FromSubunits(bal, dec)), spec, true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	assets := make([]types.Asset, 0, len(results))
	specs := make([]types.AssetSpec, 0, len(results))
	for _, r := range results {
		if r.ok {
			assets = append(assets, r.asset)
			specs = append(specs, r.spec)
		}
	}
	return assets, specs, nil
}
