// Package engine runs the wallet's operations as a state machine and owns
// the ledger, the reconciler and the transfer subscription.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/gas"
	"github.com/Klingon-tech/klingnet-wallet/internal/ledger"
	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/network"
	"github.com/Klingon-tech/klingnet-wallet/internal/transfer"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoWallet is returned by operations that need a loaded identity.
	ErrNoWallet = errors.New("no wallet loaded")
	// ErrInvalidAmount is returned for non-positive send amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Options select the chain profile for an operation.
type Options struct {
	Testnet bool `json:"testnet"`
}

// Chain is a network together with the assets tracked on it.
type Chain struct {
	Name   string
	Net    network.Network
	Assets []types.AssetSpec
}

// ProviderFunc returns the chain for opts.
type ProviderFunc func(ctx context.Context, opts Options) (*Chain, error)

// Config configures an Engine.
type Config struct {
	Identities *wallet.Manager
	Provider   ProviderFunc
	// GasPrice is the oracle; nil means always use the network price.
	GasPrice gas.PriceFunc
	// Default is used by InitWallet.
	Default Options
	// ConfirmTimeout bounds the confirmation wait of a send. Zero means
	// wait as long as the caller's context allows.
	ConfirmTimeout time.Duration
	Metrics        *Metrics
}

// WalletInfo is the payload of a successful lifecycle operation.
type WalletInfo struct {
	Address  common.Address `json:"address"`
	Network  string         `json:"network"`
	Assets   []types.Asset  `json:"assets"`
	Mnemonic string         `json:"mnemonic,omitempty"`
}

// SendResult is the payload of a settled send.
type SendResult struct {
	Hash    common.Hash     `json:"hash"`
	Asset   types.AssetType `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
	Outcome string          `json:"outcome"`
}

// Engine is the wallet's operation state machine.
//
// Lifecycle operations (init, create, restore, remove) run one at a time.
// Sends run concurrently with each other and with incoming transfer
// notifications; the ledger applies each of their transitions atomically.
type Engine struct {
	cfg        Config
	ledger     *ledger.Ledger
	reconciler *ledger.Reconciler
	bus        *Bus
	metrics    *Metrics

	lifecycle sync.Mutex

	mu       sync.RWMutex
	identity *wallet.Identity
	chain    *Chain
	specs    map[types.AssetType]types.AssetSpec
	sub      network.Subscription
	subNet   network.Network
	records  map[Kind]*OperationRecord
}

// New creates an engine with an empty ledger and no identity.
func New(cfg Config) *Engine {
	e := &Engine{
		cfg:     cfg,
		bus:     NewBus(cfg.Metrics.eventDropped),
		metrics: cfg.Metrics,
		specs:   make(map[types.AssetType]types.AssetSpec),
		records: make(map[Kind]*OperationRecord),
	}
	e.ledger = ledger.New(e.onLedgerChange)
	e.reconciler = ledger.NewReconciler(e.ledger)
	for _, k := range Kinds {
		e.records[k] = &OperationRecord{Kind: k, State: StateIdle}
	}
	return e
}

// Subscribe returns a stream of operation and ledger events.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	return e.bus.Subscribe(buffer)
}

// InitWallet loads the stored identity and fresh balances for the default
// chain. On failure the ledger is left as it was.
func (e *Engine) InitWallet(ctx context.Context) (*WalletInfo, error) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	op := e.begin(KindInit)
	info, err := e.load(ctx, e.cfg.Default, func() (*wallet.Identity, error) {
		return e.cfg.Identities.Load(ctx, wallet.FromPrivateKey, nil)
	})
	return e.finishWallet(op, info, err)
}

// CreateWallet generates a new identity, persists it and loads its
// balances. The payload carries the mnemonic for a one-time backup.
func (e *Engine) CreateWallet(ctx context.Context, opts Options) (*WalletInfo, error) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	op := e.begin(KindCreate)
	info, err := e.load(ctx, opts, func() (*wallet.Identity, error) {
		return e.cfg.Identities.Generate(ctx)
	})
	return e.finishWallet(op, info, err)
}

// RestoreWallet restores the identity for words, requiring it to derive
// expected. A mismatch purges stored keys and leaves the ledger untouched.
func (e *Engine) RestoreWallet(ctx context.Context, words []string, expected string, opts Options) (*WalletInfo, error) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	op := e.begin(KindRestore)
	info, err := e.load(ctx, opts, func() (*wallet.Identity, error) {
		return e.cfg.Identities.Restore(ctx, words, expected)
	})
	return e.finishWallet(op, info, err)
}

// RemoveWallet deletes the stored identity and clears the ledger. If the
// storage delete fails nothing changes and the transfer subscription is
// restored.
func (e *Engine) RemoveWallet(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	op := e.begin(KindRemove)

	// Stop crediting the old identity before its keys go away.
	e.detach()

	if err := e.cfg.Identities.Remove(ctx); err != nil {
		e.attach()
		e.finish(op, nil, err)
		return err
	}

	e.mu.Lock()
	e.identity = nil
	e.chain = nil
	e.specs = make(map[types.AssetType]types.AssetSpec)
	e.mu.Unlock()

	e.reconciler.Clear()
	e.ledger.OnWalletRemoved()
	e.finish(op, nil, nil)
	return nil
}

// SendAsset sends amount of asset to to and waits for the outcome. The
// display balance is debited up front and restored on any outcome other
// than a confirmed receipt.
func (e *Engine) SendAsset(ctx context.Context, to common.Address, amount decimal.Decimal, asset types.AssetType) (*SendResult, error) {
	op := e.begin(KindSend)

	res, err := e.send(ctx, to, amount, asset)
	var payload any
	if res != nil {
		payload = res
	}
	e.finish(op, payload, err)
	return res, err
}

func (e *Engine) send(ctx context.Context, to common.Address, amount decimal.Decimal, asset types.AssetType) (*SendResult, error) {
	e.mu.RLock()
	id, chain := e.identity, e.chain
	spec, tracked := e.specs[asset]
	e.mu.RUnlock()

	if id == nil || chain == nil {
		return nil, ErrNoWallet
	}
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !tracked {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownAsset, asset)
	}

	debit, err := e.ledger.BeginSend(asset, amount)
	if err != nil {
		return nil, err
	}
	res := &SendResult{Asset: asset, Amount: amount}

	submitter := transfer.NewSubmitter(chain.Net, gas.NewValidator(chain.Net, e.cfg.GasPrice))
	h, err := submitter.Send(ctx, transfer.Request{Identity: id, To: to, Amount: amount, Asset: spec})
	if err != nil {
		debit.Fail()
		return res, err
	}
	res.Hash = h.Hash

	waitCtx := ctx
	if e.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
		defer cancel()
	}
	outcome, err := submitter.AwaitConfirmation(waitCtx, h)
	if err != nil {
		debit.Fail()
		return res, err
	}
	res.Outcome = outcome.String()
	if outcome != transfer.Confirmed {
		debit.Fail()
		return res, fmt.Errorf("%w: %s", transfer.ErrReverted, h.Hash.Hex())
	}
	debit.Succeed()
	return res, nil
}

// Refresh re-queries balances and resyncs the ledger, keeping pending
// deltas of in-flight sends.
func (e *Engine) Refresh(ctx context.Context) ([]types.Asset, error) {
	e.mu.RLock()
	id, chain := e.identity, e.chain
	e.mu.RUnlock()
	if id == nil || chain == nil {
		return nil, ErrNoWallet
	}

	assets, _, err := loadAssets(ctx, chain, id.Address())
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		if err := e.ledger.Resync(a.Type, a.Balance); err != nil {
			log.Engine.Warn().Err(err).Str("asset", a.Type.String()).Msg("Resync skipped")
		}
	}
	return e.ledger.Snapshot(), nil
}

// Snapshot returns the current ledger.
func (e *Engine) Snapshot() []types.Asset {
	return e.ledger.Snapshot()
}

// Operation returns a copy of the latest record of kind.
func (e *Engine) Operation(kind Kind) (OperationRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.records[kind]
	if !ok {
		return OperationRecord{}, false
	}
	return *r, true
}

// Loading reports whether any lifecycle operation is running. Sends do not
// count.
func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loadingLocked()
}

func (e *Engine) loadingLocked() bool {
	for k, r := range e.records {
		if k.lifecycle() && r.State == StateLoading {
			return true
		}
	}
	return false
}

// Address returns the loaded identity's address.
func (e *Engine) Address() (common.Address, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.identity == nil {
		return common.Address{}, false
	}
	return e.identity.Address(), true
}

// Network returns the name of the active chain profile.
func (e *Engine) Network() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.chain == nil {
		return ""
	}
	return e.chain.Name
}

// Close stops the transfer subscription.
func (e *Engine) Close() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	e.detach()
}

// load resolves an identity, loads its balances and, only if both worked,
// makes it the active wallet.
func (e *Engine) load(ctx context.Context, opts Options, resolve func() (*wallet.Identity, error)) (*WalletInfo, error) {
	id, err := resolve()
	if err != nil {
		return nil, err
	}
	chain, err := e.cfg.Provider(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect network: %w", err)
	}
	assets, specs, err := loadAssets(ctx, chain, id.Address())
	if err != nil {
		return nil, err
	}

	e.activate(id, chain, specs, assets)
	return &WalletInfo{
		Address:  id.Address(),
		Network:  chain.Name,
		Assets:   e.ledger.Snapshot(),
		Mnemonic: id.Mnemonic(),
	}, nil
}

// activate swaps in a new identity. The old subscription is removed before
// the new one is attached so listeners never accumulate.
func (e *Engine) activate(id *wallet.Identity, chain *Chain, specs []types.AssetSpec, assets []types.Asset) {
	e.detach()

	e.ledger.OnWalletLoaded(assets)
	e.reconciler.Reset(id.Address(), specs)

	bySpec := make(map[types.AssetType]types.AssetSpec, len(specs))
	for _, s := range specs {
		bySpec[s.Type] = s
	}
	e.mu.Lock()
	e.identity = id
	e.chain = chain
	e.specs = bySpec
	e.mu.Unlock()

	e.attach()
}

// attach subscribes the current identity to incoming transfers. Failure is
// logged; balances can still be refreshed by polling.
func (e *Engine) attach() {
	e.mu.RLock()
	id, chain := e.identity, e.chain
	specs := make([]types.AssetSpec, 0, len(e.specs))
	for _, s := range e.specs {
		specs = append(specs, s)
	}
	e.mu.RUnlock()
	if id == nil || chain == nil {
		return
	}

	sub, err := chain.Net.SubscribeTransfers(id.Address(), specs, e.onTransfer)
	if err != nil {
		log.Engine.Warn().Err(err).Str("address", id.Address().Hex()).Msg("Transfer subscription failed")
		return
	}
	e.mu.Lock()
	e.sub, e.subNet = sub, chain.Net
	e.mu.Unlock()
}

func (e *Engine) detach() {
	e.mu.Lock()
	sub, net := e.sub, e.subNet
	e.sub, e.subNet = 0, nil
	e.mu.Unlock()
	if net == nil {
		return
	}
	if err := net.Unsubscribe(sub); err != nil {
		log.Engine.Warn().Err(err).Msg("Unsubscribe failed")
	}
}

func (e *Engine) onTransfer(t network.Transfer) {
	err := e.reconciler.Apply(t)
	e.metrics.notification(err == nil)
}

func (e *Engine) onLedgerChange(c ledger.Change) {
	e.metrics.transition(string(c.Transition))
	e.bus.publish(&LedgerEvent{Change: c})
}

type opHandle struct {
	id   uuid.UUID
	kind Kind
}

func (e *Engine) begin(kind Kind) opHandle {
	op := opHandle{id: uuid.New(), kind: kind}

	e.mu.Lock()
	e.records[kind] = &OperationRecord{ID: op.id, Kind: kind, State: StateLoading, StartedAt: time.Now()}
	loading := e.loadingLocked()
	e.mu.Unlock()

	e.metrics.setLoading(loading)
	e.metrics.operation(kind, PhaseStart)
	e.bus.publish(&OperationEvent{ID: op.id, Kind: kind, Phase: PhaseStart})
	log.Engine.Debug().Str("op", op.id.String()).Str("kind", string(kind)).Msg("Operation started")
	return op
}

func (e *Engine) finish(op opHandle, payload any, err error) {
	phase, state := PhaseSuccess, StateSucceeded
	if err != nil {
		phase, state = PhaseFail, StateFailed
	}

	e.mu.Lock()
	// A newer run of the same kind owns the record.
	if r := e.records[op.kind]; r.ID == op.id {
		r.State = state
		r.Payload = payload
		r.FinishedAt = time.Now()
		if err != nil {
			r.Err = err.Error()
		}
	}
	loading := e.loadingLocked()
	e.mu.Unlock()

	e.metrics.setLoading(loading)
	e.metrics.operation(op.kind, phase)
	e.bus.publish(&OperationEvent{ID: op.id, Kind: op.kind, Phase: phase, Payload: payload, Err: err})

	ev := log.Engine.Info()
	if err != nil {
		ev = log.Engine.Warn().Err(err)
	}
	ev.Str("op", op.id.String()).Str("kind", string(op.kind)).Str("result", string(phase)).Msg("Operation finished")
}

func (e *Engine) finishWallet(op opHandle, info *WalletInfo, err error) (*WalletInfo, error) {
	if err != nil {
		e.finish(op, nil, err)
		return nil, err
	}
	// The record keeps the payload without the mnemonic.
	stored := *info
	stored.Mnemonic = ""
	e.finish(op, &stored, nil)
	return info, nil
}
