// Package transfer builds, signs and submits value transfers and waits for
// their confirmation.
//
// A submitted transaction cannot be revoked. Cancelling the context passed
// to AwaitConfirmation only stops waiting; the transaction may still be
// mined afterwards.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-wallet/internal/gas"
	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/network"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

var (
	// ErrSubmission means the network rejected the transaction or returned
	// no identifier for it.
	ErrSubmission = errors.New("transaction submission failed")
	// ErrReverted means the transaction was mined but failed.
	ErrReverted = errors.New("transaction reverted")
	// ErrInvalidRequest means the request is malformed.
	ErrInvalidRequest = errors.New("invalid transfer request")
)

// Request is a single value transfer.
type Request struct {
	Identity *wallet.Identity
	To       common.Address
	Amount   decimal.Decimal
	Asset    types.AssetSpec
}

// Handle identifies a submitted transaction.
type Handle struct {
	Hash  common.Hash `json:"hash"`
	Nonce uint64      `json:"nonce"`
}

// Outcome is the mined result of a transaction.
type Outcome int

const (
	// Confirmed means the receipt status is successful.
	Confirmed Outcome = iota + 1
	// Reverted means the receipt status is failed.
	Reverted
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Reverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Submitter sends transfers through a network.
type Submitter struct {
	net       network.Network
	validator *gas.Validator
}

// NewSubmitter creates a submitter.
func NewSubmitter(net network.Network, validator *gas.Validator) *Submitter {
	return &Submitter{net: net, validator: validator}
}

// Send validates, signs and submits req. Validation failures return before
// anything is sent to the network.
func (s *Submitter) Send(ctx context.Context, req Request) (*Handle, error) {
	if req.Identity == nil {
		return nil, fmt.Errorf("%w: no identity", ErrInvalidRequest)
	}
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	amount, err := types.ToSubunits(req.Amount, req.Asset.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	call := gas.Call{From: req.Identity.Address(), To: req.To, Amount: amount, Asset: req.Asset}

	funds, err := s.validator.Funds(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	if err := gas.CheckAmount(call, funds); err != nil {
		return nil, err
	}
	limit, err := s.validator.EstimateGasLimit(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	price := s.validator.FetchGasPrice(ctx)
	if err := gas.ValidateSufficiency(call, funds, limit, price); err != nil {
		return nil, err
	}

	if price == nil {
		if price, err = s.net.SuggestGasPrice(ctx); err != nil {
			return nil, err
		}
	}
	chainID, err := s.net.NetworkID(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := s.net.PendingNonce(ctx, call.From)
	if err != nil {
		return nil, err
	}

	msg, err := gas.CallMsg(call)
	if err != nil {
		return nil, err
	}
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       msg.To,
		Value:    msg.Value,
		Gas:      limit.Uint64(),
		GasPrice: price,
		Data:     msg.Data,
	})
	signed, err := req.Identity.SignTx(tx, chainID)
	if err != nil {
		return nil, err
	}

	hash, err := s.net.Submit(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if hash == (common.Hash{}) {
		return nil, fmt.Errorf("%w: no transaction hash returned", ErrSubmission)
	}

	log.Engine.Info().
		Str("tx", hash.Hex()).
		Str("asset", req.Asset.Type.String()).
		Str("amount", req.Amount.String()).
		Str("to", req.To.Hex()).
		Msg("Transfer submitted")
	return &Handle{Hash: hash, Nonce: nonce}, nil
}

// AwaitConfirmation blocks until h is mined. Transport errors are returned
// without retry.
func (s *Submitter) AwaitConfirmation(ctx context.Context, h *Handle) (Outcome, error) {
	if h == nil || h.Hash == (common.Hash{}) {
		return 0, fmt.Errorf("%w: missing transaction handle", ErrSubmission)
	}
	receipt, err := s.net.WaitForConfirmation(ctx, h.Hash)
	if err != nil {
		return 0, err
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return Confirmed, nil
	}
	return Reverted, nil
}
