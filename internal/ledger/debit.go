package ledger

import (
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/shopspring/decimal"
)

// Debit is an optimistic send in flight. Exactly one of Succeed or Fail
// takes effect; later calls are no-ops. A debit belongs to the wallet load
// it was opened under: once the ledger is replaced or cleared, settling it
// leaves the ledger untouched.
type Debit struct {
	ledger *Ledger
	gen    uint64
	asset  types.AssetType
	amount decimal.Decimal

	mu       sync.Mutex
	resolved Transition
}

// BeginSend applies OnSendStart and returns the handle that settles it.
func (l *Ledger) BeginSend(asset types.AssetType, amount decimal.Decimal) (*Debit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.applyLocked(SendStart, asset, amount, startDebit(amount)); err != nil {
		return nil, err
	}
	return &Debit{ledger: l, gen: l.gen, asset: asset, amount: amount}, nil
}

// Succeed commits the send. It reports whether this call settled the debit.
func (d *Debit) Succeed() bool {
	return d.resolve(SendSuccess, commitDebit(d.amount))
}

// Fail reverts the optimistic debit. It reports whether this call settled
// the debit.
func (d *Debit) Fail() bool {
	return d.resolve(SendFailed, revertDebit(d.amount))
}

func (d *Debit) resolution() Transition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolved
}

func (d *Debit) resolve(tr Transition, fn func(*types.Asset)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resolved != "" {
		return false
	}
	d.resolved = tr
	if !d.ledger.applyAt(d.gen, tr, d.asset, d.amount, fn) {
		log.Ledger.Debug().
			Str("transition", string(tr)).
			Str("asset", d.asset.String()).
			Msg("Debit settled after wallet change, ledger untouched")
	}
	return true
}
