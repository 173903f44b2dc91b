package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/network"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// Rejection reasons for chain notifications.
var (
	ErrWrongRecipient = errors.New("transfer not addressed to wallet")
	ErrNonPositive    = errors.New("transfer amount not positive")
	ErrDuplicate      = errors.New("transfer already applied")
	ErrNoIdentity     = errors.New("no identity to reconcile against")
)

type transferKey struct {
	asset    types.AssetType
	txHash   common.Hash
	logIndex uint
}

// Reconciler validates untrusted transfer notifications and credits the
// ledger with the ones that pass.
type Reconciler struct {
	ledger *Ledger

	mu      sync.Mutex
	address common.Address
	active  bool
	specs   map[types.AssetType]types.AssetSpec
	seen    map[transferKey]struct{}
}

// NewReconciler creates a reconciler over l. It rejects everything until
// Reset is called.
func NewReconciler(l *Ledger) *Reconciler {
	return &Reconciler{
		ledger: l,
		specs:  make(map[types.AssetType]types.AssetSpec),
		seen:   make(map[transferKey]struct{}),
	}
}

// Reset switches to a new identity and tracked asset set and forgets all
// previously applied transfers.
func (r *Reconciler) Reset(addr common.Address, assets []types.AssetSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.address = addr
	r.active = true
	r.specs = make(map[types.AssetType]types.AssetSpec, len(assets))
	for _, a := range assets {
		r.specs[a.Type] = a
	}
	r.seen = make(map[transferKey]struct{})
}

// Clear stops accepting transfers until the next Reset.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.address = common.Address{}
	r.specs = make(map[types.AssetType]types.AssetSpec)
	r.seen = make(map[transferKey]struct{})
}

// Apply checks t and credits the ledger. Each (asset, tx, log index) is
// applied at most once per identity.
func (r *Reconciler) Apply(t network.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(t); err != nil {
		log.Ledger.Debug().
			Err(err).
			Str("tx", t.TxHash.Hex()).
			Str("asset", t.Asset.String()).
			Msg("Transfer notification rejected")
		return err
	}

	spec := r.specs[t.Asset]
	amount := types.FromSubunits(t.Amount, spec.Decimals)
	if err := r.ledger.OnExternalCredit(t.Asset, amount); err != nil {
		return err
	}
	r.seen[transferKey{t.Asset, t.TxHash, t.LogIndex}] = struct{}{}

	log.Ledger.Info().
		Str("tx", t.TxHash.Hex()).
		Str("asset", t.Asset.String()).
		Str("amount", amount.String()).
		Msg("Incoming transfer credited")
	return nil
}

func (r *Reconciler) check(t network.Transfer) error {
	if !r.active {
		return ErrNoIdentity
	}
	// Addresses are compared as bytes, which ignores hex case.
	if t.To != r.address {
		return fmt.Errorf("%w: %s", ErrWrongRecipient, t.To.Hex())
	}
	if t.Amount == nil || t.Amount.Sign() <= 0 {
		return ErrNonPositive
	}
	spec, ok := r.specs[t.Asset]
	if !ok || !r.ledger.Has(t.Asset) {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, t.Asset)
	}
	if !spec.IsNative() && spec.Contract != t.Contract {
		return fmt.Errorf("%w: %s from contract %s", ErrUnknownAsset, t.Asset, t.Contract.Hex())
	}
	if _, dup := r.seen[transferKey{t.Asset, t.TxHash, t.LogIndex}]; dup {
		return ErrDuplicate
	}
	return nil
}
