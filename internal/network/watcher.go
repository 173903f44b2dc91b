package network

import (
	"context"
	"math/big"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// watcher polls the chain for transfers to one address.
type watcher struct {
	backend Backend
	opts    Options
	addr    common.Address
	fn      TransferFunc

	tokens map[common.Address]types.AssetType
	native bool
	next   uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newWatcher(b Backend, opts Options, addr common.Address, assets []types.AssetSpec, fn TransferFunc, from uint64) *watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		backend: b,
		opts:    opts,
		addr:    addr,
		fn:      fn,
		tokens:  make(map[common.Address]types.AssetType),
		next:    from,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, a := range assets {
		if a.IsNative() {
			w.native = opts.WatchNative
			continue
		}
		w.tokens[a.Contract] = a.Type
	}
	return w
}

func (w *watcher) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.poll(); err != nil && w.ctx.Err() == nil {
				log.Network.Warn().Err(err).Str("address", w.addr.Hex()).Msg("Transfer poll failed")
			}
		}
	}
}

func (w *watcher) stop() {
	w.cancel()
	<-w.done
}

// poll scans [next, min(head, next+MaxBlockRange-1)] and advances next only
// after the whole range succeeded.
func (w *watcher) poll() error {
	head, err := w.backend.BlockNumber(w.ctx)
	if err != nil {
		return err
	}
	if head < w.next {
		return nil
	}
	to := head
	if to-w.next+1 > w.opts.MaxBlockRange {
		to = w.next + w.opts.MaxBlockRange - 1
	}

	var found []Transfer
	if len(w.tokens) > 0 {
		logs, err := w.tokenTransfers(w.next, to)
		if err != nil {
			return err
		}
		found = append(found, logs...)
	}
	if w.native {
		for n := w.next; n <= to; n++ {
			txs, err := w.nativeTransfers(n)
			if err != nil {
				return err
			}
			found = append(found, txs...)
		}
	}

	w.next = to + 1
	for _, t := range found {
		if w.ctx.Err() != nil {
			return nil
		}
		w.fn(t)
	}
	return nil
}

func (w *watcher) tokenTransfers(from, to uint64) ([]Transfer, error) {
	contracts := make([]common.Address, 0, len(w.tokens))
	for c := range w.tokens {
		contracts = append(contracts, c)
	}
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: contracts,
		Topics:    [][]common.Hash{{TransferTopic}, nil, {addressTopic(w.addr)}},
	}
	logs, err := w.backend.FilterLogs(w.ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]Transfer, 0, len(logs))
	for _, l := range logs {
		t, ok := w.decodeLog(l)
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (w *watcher) decodeLog(l ethtypes.Log) (Transfer, bool) {
	if l.Removed || len(l.Topics) != 3 || l.Topics[0] != TransferTopic {
		return Transfer{}, false
	}
	asset, ok := w.tokens[l.Address]
	if !ok {
		return Transfer{}, false
	}
	return Transfer{
		TxHash:   l.TxHash,
		LogIndex: l.Index,
		Block:    l.BlockNumber,
		Asset:    asset,
		Contract: l.Address,
		From:     common.BytesToAddress(l.Topics[1].Bytes()),
		To:       common.BytesToAddress(l.Topics[2].Bytes()),
		Amount:   new(big.Int).SetBytes(l.Data),
	}, true
}

// nativeTransfers returns successful value transfers to the watched address
// in block n. LogIndex carries the transaction's position in the block.
func (w *watcher) nativeTransfers(n uint64) ([]Transfer, error) {
	block, err := w.backend.BlockByNumber(w.ctx, new(big.Int).SetUint64(n))
	if err != nil {
		return nil, err
	}

	var out []Transfer
	for i, tx := range block.Transactions() {
		if tx.To() == nil || *tx.To() != w.addr || tx.Value().Sign() <= 0 {
			continue
		}
		receipt, err := w.backend.TransactionReceipt(w.ctx, tx.Hash())
		if err != nil {
			return nil, err
		}
		if receipt.Status != ethtypes.ReceiptStatusSuccessful {
			continue
		}
		t := Transfer{
			TxHash:   tx.Hash(),
			LogIndex: uint(i),
			Block:    n,
			Asset:    types.NativeAsset,
			To:       w.addr,
			Amount:   new(big.Int).Set(tx.Value()),
		}
		if from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
			t.From = from
		}
		out = append(out, t)
	}
	return out, nil
}
