// Package gas estimates gas, fetches gas prices and checks that a transfer
// is affordable before it is signed.
package gas

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/network"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientFunds means the amount (plus gas for native sends)
	// exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientGas means the native balance cannot cover the gas cost.
	ErrInsufficientGas = errors.New("insufficient gas")
)

// PriceFunc returns a gas price in wei. It may fail.
type PriceFunc func(ctx context.Context) (*big.Int, error)

// Call is a transfer expressed in the asset's smallest unit.
type Call struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
	Asset  types.AssetSpec
}

// Funds are the sender's balances in smallest units. Token is only
// consulted for token transfers.
type Funds struct {
	Native *big.Int
	Token  *big.Int
}

// Validator queries the network for gas figures and balances.
type Validator struct {
	net   network.Network
	price PriceFunc
}

// NewValidator creates a validator. price may be nil, in which case the
// price is always unknown.
func NewValidator(net network.Network, price PriceFunc) *Validator {
	return &Validator{net: net, price: price}
}

// CallMsg builds the message used for estimation and submission: a plain
// value transfer for the native coin, transfer(to, amount) calldata sent to
// the token contract otherwise.
func CallMsg(c Call) (ethereum.CallMsg, error) {
	if c.Asset.IsNative() {
		to := c.To
		return ethereum.CallMsg{From: c.From, To: &to, Value: new(big.Int).Set(c.Amount)}, nil
	}
	data, err := network.PackTransfer(c.To, c.Amount)
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("encode token transfer: %w", err)
	}
	contract := c.Asset.Contract
	return ethereum.CallMsg{From: c.From, To: &contract, Value: new(big.Int), Data: data}, nil
}

// EstimateGasLimit asks the network how many gas units the call needs.
func (v *Validator) EstimateGasLimit(ctx context.Context, c Call) (*big.Int, error) {
	msg, err := CallMsg(c)
	if err != nil {
		return nil, err
	}
	limit, err := v.net.EstimateGas(ctx, msg)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(limit), nil
}

// FetchGasPrice returns the oracle price, or nil when it is unavailable. A
// nil price means "let the network decide".
func (v *Validator) FetchGasPrice(ctx context.Context) *big.Int {
	if v.price == nil {
		return nil
	}
	price, err := v.price(ctx)
	if err != nil {
		log.Gas.Warn().Err(err).Msg("Gas price unavailable, using network default")
		return nil
	}
	if price == nil || price.Sign() <= 0 {
		log.Gas.Warn().Msg("Gas oracle returned no usable price, using network default")
		return nil
	}
	return price
}

// Funds loads the balances ValidateSufficiency needs for c.
func (v *Validator) Funds(ctx context.Context, c Call) (Funds, error) {
	native, err := v.net.Balance(ctx, c.From)
	if err != nil {
		return Funds{}, err
	}
	f := Funds{Native: native}
	if !c.Asset.IsNative() {
		f.Token, err = v.net.TokenBalance(ctx, c.Asset.Contract, c.From)
		if err != nil {
			return Funds{}, err
		}
	}
	return f, nil
}

// CheckAmount reports ErrInsufficientFunds when the amount alone exceeds
// the balance it is drawn from. Nodes refuse to estimate such a call, so
// it runs before EstimateGasLimit.
func CheckAmount(c Call, funds Funds) error {
	have := orZero(funds.Native)
	if !c.Asset.IsNative() {
		have = orZero(funds.Token)
	}
	if orZero(c.Amount).Cmp(have) > 0 {
		return fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientFunds, orZero(c.Amount), c.Asset.Type, have)
	}
	return nil
}

// ValidateSufficiency checks c against funds. A nil gasPrice means the
// price is unknown: the gas check is skipped and a native send reserves the
// raw gas limit instead of limit*price.
func ValidateSufficiency(c Call, funds Funds, gasLimit, gasPrice *big.Int) error {
	native := orZero(funds.Native)
	limit := orZero(gasLimit)

	var cost *big.Int
	if gasPrice != nil {
		cost = new(big.Int).Mul(limit, gasPrice)
		if cost.Cmp(native) > 0 {
			return fmt.Errorf("%w: gas cost %s exceeds balance %s", ErrInsufficientGas, cost, native)
		}
	} else {
		cost = new(big.Int).Set(limit)
	}

	if c.Asset.IsNative() {
		total := new(big.Int).Add(orZero(c.Amount), cost)
		if total.Cmp(native) > 0 {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, total, native)
		}
		return nil
	}

	token := orZero(funds.Token)
	if orZero(c.Amount).Cmp(token) > 0 {
		return fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientFunds, c.Amount, c.Asset.Type, token)
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
