package network

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Options tune the polling behavior of a Client.
type Options struct {
	// PollInterval is the delay between receipt and block polls.
	PollInterval time.Duration
	// MaxBlockRange caps how many blocks one watcher tick scans.
	MaxBlockRange uint64
	// WatchNative enables scanning blocks for incoming native transfers.
	WatchNative bool
}

// DefaultOptions returns the options used by the daemon.
func DefaultOptions() Options {
	return Options{
		PollInterval:  4 * time.Second,
		MaxBlockRange: 500,
		WatchNative:   true,
	}
}

// Client implements Network on top of a Backend.
type Client struct {
	backend Backend
	opts    Options

	mu       sync.Mutex
	nextSub  Subscription
	watchers map[Subscription]*watcher
	closed   bool
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(ec, opts), nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.MaxBlockRange == 0 {
		opts.MaxBlockRange = DefaultOptions().MaxBlockRange
	}
	return &Client{
		backend:  backend,
		opts:     opts,
		watchers: make(map[Subscription]*watcher),
	}
}

// Balance returns the latest native balance in wei.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

// NetworkID returns the EIP-155 chain ID.
func (c *Client) NetworkID(ctx context.Context) (*big.Int, error) {
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return id, nil
}

// EstimateGas returns the gas units msg would consume.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return gas, nil
}

// SuggestGasPrice returns the node's suggested legacy gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return price, nil
}

// PendingNonce returns the next nonce for addr including pending txs.
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("pending nonce: %w", err)
	}
	return nonce, nil
}

// Submit broadcasts a signed transaction.
func (c *Client) Submit(ctx context.Context, tx *ethtypes.Transaction) (common.Hash, error) {
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	log.Network.Info().Str("tx", tx.Hash().Hex()).Uint64("nonce", tx.Nonce()).Msg("Transaction submitted")
	return tx.Hash(), nil
}

// WaitForConfirmation polls for the receipt of hash. Only "not yet mined"
// is polled again; any other transport error is returned as is.
func (c *Client) WaitForConfirmation(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt of %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNoReceipt, hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// TokenDecimals calls decimals() on an ERC-20 contract.
func (c *Client) TokenDecimals(ctx context.Context, contract common.Address) (uint8, error) {
	data, err := PackDecimals()
	if err != nil {
		return 0, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals of %s: %w", contract.Hex(), err)
	}
	return unpackDecimals(out)
}

// TokenBalance calls balanceOf(addr) on an ERC-20 contract.
func (c *Client) TokenBalance(ctx context.Context, contract, addr common.Address) (*big.Int, error) {
	data, err := PackBalanceOf(addr)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf on %s: %w", contract.Hex(), err)
	}
	return unpackBalance(out)
}

// SubscribeTransfers starts watching incoming transfers to addr for the
// given assets. Scanning starts at the block after the current head.
func (c *Client) SubscribeTransfers(addr common.Address, assets []types.AssetSpec, fn TransferFunc) (Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	head, err := c.backend.BlockNumber(ctx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("subscribe transfers: head: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errors.New("subscribe transfers: client closed")
	}
	c.nextSub++
	id := c.nextSub

	w := newWatcher(c.backend, c.opts, addr, assets, fn, head+1)
	c.watchers[id] = w
	go w.run()

	log.Network.Debug().
		Uint64("sub", uint64(id)).
		Str("address", addr.Hex()).
		Int("assets", len(assets)).
		Msg("Transfer subscription started")
	return id, nil
}

// Unsubscribe stops a subscription and waits for its goroutine to exit.
// Unknown handles are ignored.
func (c *Client) Unsubscribe(sub Subscription) error {
	c.mu.Lock()
	w, ok := c.watchers[sub]
	delete(c.watchers, sub)
	c.mu.Unlock()

	if ok {
		w.stop()
		log.Network.Debug().Uint64("sub", uint64(sub)).Msg("Transfer subscription stopped")
	}
	return nil
}

// subscriptions returns the number of active subscriptions.
func (c *Client) subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers)
}

// Close stops every subscription.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	ws := c.watchers
	c.watchers = make(map[Subscription]*watcher)
	c.mu.Unlock()

	for _, w := range ws {
		w.stop()
	}
}
