// Package network is the chain capability used by the wallet engine, backed
// by a go-ethereum JSON-RPC client.
package network

import (
	"context"
	"errors"
	"math/big"

	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ErrNoReceipt is returned by WaitForConfirmation when the context ends
// before the transaction is mined.
var ErrNoReceipt = errors.New("no receipt before deadline")

// Transfer is an incoming value transfer observed on chain. The payload is
// untrusted until the reconciler has checked it.
type Transfer struct {
	TxHash   common.Hash     `json:"txHash"`
	LogIndex uint            `json:"logIndex"`
	Block    uint64          `json:"block"`
	Asset    types.AssetType `json:"asset"`
	Contract common.Address  `json:"contract"`
	From     common.Address  `json:"from"`
	To       common.Address  `json:"to"`
	Amount   *big.Int        `json:"amount"`
}

// TransferFunc receives transfers for a subscription. It is called from the
// watcher goroutine and must not block for long.
type TransferFunc func(Transfer)

// Subscription identifies a transfer subscription.
type Subscription uint64

// Network is the chain capability consumed by the wallet core.
type Network interface {
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	Submit(ctx context.Context, tx *ethtypes.Transaction) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
	SubscribeTransfers(addr common.Address, assets []types.AssetSpec, fn TransferFunc) (Subscription, error)
	Unsubscribe(sub Subscription) error
	TokenDecimals(ctx context.Context, contract common.Address) (uint8, error)
	TokenBalance(ctx context.Context, contract, addr common.Address) (*big.Int, error)
}

// Backend is the subset of *ethclient.Client the adapter needs.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*ethtypes.Block, error)
}
