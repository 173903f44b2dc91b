// Package ledger keeps per-asset balances and applies the named balance
// transitions of the wallet.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrUnknownAsset is returned for assets that are not tracked.
var ErrUnknownAsset = errors.New("unknown asset")

// Transition names a ledger mutation.
type Transition string

// Ledger transitions.
const (
	ExternalCredit Transition = "external_credit"
	SendStart      Transition = "send_start"
	SendSuccess    Transition = "send_success"
	SendFailed     Transition = "send_failed"
	WalletLoaded   Transition = "wallet_loaded"
	WalletRemoved  Transition = "wallet_removed"
	Resynced       Transition = "resync"
)

// Change describes one applied transition and the asset's state after it.
// WalletRemoved carries no asset.
type Change struct {
	Transition Transition      `json:"transition"`
	Asset      types.AssetType `json:"asset,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	State      types.Asset     `json:"state"`
}

// Listener observes changes. It runs while the ledger lock is held, so it
// must be quick and must not call back into the ledger.
type Listener func(Change)

// Ledger is the authoritative balance state. Every transition is applied
// atomically, so concurrent callers never lose updates.
type Ledger struct {
	mu       sync.Mutex
	assets   map[types.AssetType]*types.Asset
	order    []types.AssetType
	gen      uint64 // bumped on every wallet load or removal
	listener Listener
}

// New creates an empty ledger. listener may be nil.
func New(listener Listener) *Ledger {
	return &Ledger{
		assets:   make(map[types.AssetType]*types.Asset),
		listener: listener,
	}
}

// OnExternalCredit records a confirmed incoming transfer.
func (l *Ledger) OnExternalCredit(asset types.AssetType, amount decimal.Decimal) error {
	return l.apply(ExternalCredit, asset, amount, func(a *types.Asset) {
		a.Balance = a.Balance.Add(amount)
		a.DisplayBalance = a.DisplayBalance.Add(amount)
	})
}

// OnSendStart optimistically debits the display balance.
func (l *Ledger) OnSendStart(asset types.AssetType, amount decimal.Decimal) error {
	return l.apply(SendStart, asset, amount, startDebit(amount))
}

// OnSendSuccess commits a confirmed send to the balance.
func (l *Ledger) OnSendSuccess(asset types.AssetType, amount decimal.Decimal) error {
	return l.apply(SendSuccess, asset, amount, commitDebit(amount))
}

// OnSendFailed reverts an optimistic debit.
func (l *Ledger) OnSendFailed(asset types.AssetType, amount decimal.Decimal) error {
	return l.apply(SendFailed, asset, amount, revertDebit(amount))
}

func startDebit(amount decimal.Decimal) func(*types.Asset) {
	return func(a *types.Asset) { a.DisplayBalance = a.DisplayBalance.Sub(amount) }
}

func commitDebit(amount decimal.Decimal) func(*types.Asset) {
	return func(a *types.Asset) { a.Balance = a.Balance.Sub(amount) }
}

func revertDebit(amount decimal.Decimal) func(*types.Asset) {
	return func(a *types.Asset) { a.DisplayBalance = a.DisplayBalance.Add(amount) }
}

// Resync replaces the confirmed balance with a fresh chain value while
// keeping the pending local delta.
func (l *Ledger) Resync(asset types.AssetType, chain decimal.Decimal) error {
	return l.apply(Resynced, asset, chain, func(a *types.Asset) {
		pending := a.Pending()
		a.Balance = chain
		a.DisplayBalance = chain.Add(pending)
	})
}

// OnWalletLoaded replaces the whole ledger with assets.
func (l *Ledger) OnWalletLoaded(assets []types.Asset) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	l.assets = make(map[types.AssetType]*types.Asset, len(assets))
	l.order = nil
	for _, a := range assets {
		a := a
		if _, dup := l.assets[a.Type]; !dup {
			l.order = append(l.order, a.Type)
		}
		l.assets[a.Type] = &a
	}
	for _, t := range l.order {
		l.emit(Change{Transition: WalletLoaded, Asset: t, State: *l.assets[t]})
	}
	log.Ledger.Debug().Int("assets", len(l.order)).Msg("Ledger replaced")
}

// OnWalletRemoved clears the ledger.
func (l *Ledger) OnWalletRemoved() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	l.assets = make(map[types.AssetType]*types.Asset)
	l.order = nil
	l.emit(Change{Transition: WalletRemoved})
	log.Ledger.Debug().Msg("Ledger cleared")
}

// Get returns a copy of one asset.
func (l *Ledger) Get(asset types.AssetType) (types.Asset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assets[asset]
	if !ok {
		return types.Asset{}, false
	}
	return *a, true
}

// Has reports whether asset is tracked.
func (l *Ledger) Has(asset types.AssetType) bool {
	_, ok := l.Get(asset)
	return ok
}

// Snapshot returns a copy of all assets in load order.
func (l *Ledger) Snapshot() []types.Asset {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Asset, 0, len(l.order))
	for _, t := range l.order {
		out = append(out, *l.assets[t])
	}
	return out
}

// Len returns the number of tracked assets.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

func (l *Ledger) apply(tr Transition, asset types.AssetType, amount decimal.Decimal, fn func(*types.Asset)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyLocked(tr, asset, amount, fn)
}

// applyAt applies the transition only while the ledger still holds the
// wallet load gen. It reports whether anything changed.
func (l *Ledger) applyAt(gen uint64, tr Transition, asset types.AssetType, amount decimal.Decimal, fn func(*types.Asset)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	return l.applyLocked(tr, asset, amount, fn) == nil
}

func (l *Ledger) applyLocked(tr Transition, asset types.AssetType, amount decimal.Decimal, fn func(*types.Asset)) error {
	a, ok := l.assets[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	fn(a)
	l.emit(Change{Transition: tr, Asset: asset, Amount: amount, State: *a})

	log.Ledger.Debug().
		Str("transition", string(tr)).
		Str("asset", asset.String()).
		Str("amount", amount.String()).
		Str("balance", a.Balance.String()).
		Str("display", a.DisplayBalance.String()).
		Msg("Ledger updated")
	return nil
}

func (l *Ledger) emit(c Change) {
	if l.listener != nil {
		l.listener(c)
	}
}
