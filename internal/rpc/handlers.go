package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	"github.com/Klingon-tech/klingnet-wallet/internal/gas"
	"github.com/Klingon-tech/klingnet-wallet/internal/ledger"
	"github.com/Klingon-tech/klingnet-wallet/internal/transfer"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// ── Query endpoints ─────────────────────────────────────────────────────

func (s *Server) handleWalletGetStatus(_ *Request) (interface{}, *Error) {
	res := &StatusResult{
		Loading:    s.wallet.Loading(),
		Network:    s.wallet.Network(),
		Operations: make([]engine.OperationRecord, 0, len(engine.Kinds)),
	}
	if addr, ok := s.wallet.Address(); ok {
		res.Loaded = true
		res.Address = addr.Hex()
	}
	for _, k := range engine.Kinds {
		if rec, ok := s.wallet.Operation(k); ok {
			res.Operations = append(res.Operations, rec)
		}
	}
	return res, nil
}

func (s *Server) handleWalletGetAssets(_ *Request) (interface{}, *Error) {
	return NewAssetResults(s.wallet.Snapshot()), nil
}

func (s *Server) handleWalletGetOperation(req *Request) (interface{}, *Error) {
	var params OperationParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	kind, ok := engine.ParseKind(params.Kind)
	if !ok {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown operation kind %q", params.Kind)}
	}
	rec, ok := s.wallet.Operation(kind)
	if !ok {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("no %s operation", kind)}
	}
	return rec, nil
}

// ── Lifecycle endpoints ─────────────────────────────────────────────────

func (s *Server) handleWalletInit(ctx context.Context, _ *Request) (interface{}, *Error) {
	info, err := s.wallet.InitWallet(ctx)
	if err != nil {
		return nil, walletError(err)
	}
	return NewWalletResult(info), nil
}

func (s *Server) handleWalletCreate(ctx context.Context, req *Request) (interface{}, *Error) {
	var params NetworkParam
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	info, err := s.wallet.CreateWallet(ctx, engine.Options{Testnet: params.Testnet})
	if err != nil {
		return nil, walletError(err)
	}
	return NewWalletResult(info), nil
}

func (s *Server) handleWalletRestore(ctx context.Context, req *Request) (interface{}, *Error) {
	var params RestoreParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	words := params.Words
	if len(words) == 0 {
		words = strings.Fields(params.Mnemonic)
	}
	if len(words) == 0 || params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "words (or mnemonic) and address are required"}
	}

	info, err := s.wallet.RestoreWallet(ctx, words, params.Address, engine.Options{Testnet: params.Testnet})
	if err != nil {
		return nil, walletError(err)
	}
	return NewWalletResult(info), nil
}

func (s *Server) handleWalletRemove(ctx context.Context, _ *Request) (interface{}, *Error) {
	if err := s.wallet.RemoveWallet(ctx); err != nil {
		return nil, walletError(err)
	}
	return &RemoveResult{Removed: true}, nil
}

// ── Transfer endpoints ──────────────────────────────────────────────────

func (s *Server) handleWalletSend(ctx context.Context, req *Request) (interface{}, *Error) {
	var params SendParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(params.To) {
		return nil, &Error{Code: CodeInvalidParams, Message: "invalid to address"}
	}
	amount, err := types.ParseAmount(params.Amount)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	asset := types.ParseAssetType(params.Asset)
	if asset == "" {
		asset = types.NativeAsset
	}

	res, err := s.wallet.SendAsset(ctx, common.HexToAddress(params.To), amount, asset)
	if err != nil {
		rpcErr := walletError(err)
		if res != nil && res.Hash != (common.Hash{}) && rpcErr.Data == nil {
			rpcErr.Data = map[string]string{"hash": res.Hash.Hex()}
		}
		return nil, rpcErr
	}
	return &SendResult{
		Hash:    res.Hash.Hex(),
		Asset:   res.Asset.String(),
		Amount:  res.Amount.String(),
		Outcome: res.Outcome,
	}, nil
}

func (s *Server) handleWalletRefresh(ctx context.Context, _ *Request) (interface{}, *Error) {
	assets, err := s.wallet.Refresh(ctx)
	if err != nil {
		return nil, walletError(err)
	}
	return NewAssetResults(assets), nil
}

// walletError maps engine errors onto RPC error codes.
func walletError(err error) *Error {
	var mismatch *wallet.MismatchError
	switch {
	case errors.As(err, &mismatch):
		return &Error{Code: CodeIdentityMismatch, Message: err.Error(),
			Data: MismatchData{Derived: mismatch.Derived, Expected: mismatch.Expected}}
	case errors.Is(err, engine.ErrNoWallet), errors.Is(err, wallet.ErrNoStoredKey):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, wallet.ErrInvalidMnemonic), errors.Is(err, wallet.ErrMissingMnemonic),
		errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, ledger.ErrUnknownAsset),
		errors.Is(err, transfer.ErrInvalidRequest):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, gas.ErrInsufficientFunds), errors.Is(err, gas.ErrInsufficientGas):
		return &Error{Code: CodeInsufficientFunds, Message: err.Error()}
	case errors.Is(err, transfer.ErrReverted):
		return &Error{Code: CodeTxReverted, Message: err.Error()}
	case errors.Is(err, transfer.ErrSubmission):
		return &Error{Code: CodeSubmission, Message: err.Error()}
	case errors.Is(err, wallet.ErrStorage):
		return &Error{Code: CodeStorage, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}
