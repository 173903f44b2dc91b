package network

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	mu sync.Mutex

	head       uint64
	balances   map[common.Address]*big.Int
	chainID    *big.Int
	gas        uint64
	gasPrice   *big.Int
	nonce      uint64
	sent       []*ethtypes.Transaction
	sendErr    error
	receipts   map[common.Hash]*ethtypes.Receipt
	receiptErr error
	receiptHit int
	callOut    map[string][]byte
	logs       []ethtypes.Log
	blocks     map[uint64]*ethtypes.Block
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		balances: make(map[common.Address]*big.Int),
		chainID:  big.NewInt(1337),
		gasPrice: big.NewInt(1_000_000_000),
		receipts: make(map[common.Hash]*ethtypes.Receipt),
		callOut:  make(map[string][]byte),
		blocks:   make(map[uint64]*ethtypes.Block),
	}
}

func (f *fakeBackend) BalanceAt(_ context.Context, a common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[a]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return f.gasPrice, nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptHit++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.callOut[string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ethtypes.Log
	for _, l := range f.logs {
		n := new(big.Int).SetUint64(l.BlockNumber)
		if n.Cmp(q.FromBlock) < 0 || n.Cmp(q.ToBlock) > 0 {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) BlockByNumber(_ context.Context, n *big.Int) (*ethtypes.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.blocks[n.Uint64()]; ok {
		return b, nil
	}
	return ethtypes.NewBlockWithHeader(&ethtypes.Header{Number: new(big.Int).Set(n)}), nil
}

func (f *fakeBackend) setHead(n uint64) {
	f.mu.Lock()
	f.head = n
	f.mu.Unlock()
}
