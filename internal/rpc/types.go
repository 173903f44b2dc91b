package rpc

import (
	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000

	// Wallet errors.
	CodeIdentityMismatch  = -32010
	CodeInsufficientFunds = -32011
	CodeTxReverted        = -32012
	CodeSubmission        = -32013
	CodeStorage           = -32014
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// NetworkParam selects the chain profile of a lifecycle operation.
type NetworkParam struct {
	Testnet bool `json:"testnet,omitempty"`
}

// RestoreParam is used by wallet_restore. Words may be given as a list or
// as one space-separated Mnemonic string.
type RestoreParam struct {
	Words    []string `json:"words,omitempty"`
	Mnemonic string   `json:"mnemonic,omitempty"`
	Address  string   `json:"address"`
	Testnet  bool     `json:"testnet,omitempty"`
}

// SendParam is used by wallet_send.
type SendParam struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Asset  string `json:"asset"`
}

// OperationParam is used by wallet_getOperation.
type OperationParam struct {
	Kind string `json:"kind"`
}

// ── Result types ────────────────────────────────────────────────────────

// AssetResult is one ledger entry.
type AssetResult struct {
	Asset          string `json:"asset"`
	Balance        string `json:"balance"`
	DisplayBalance string `json:"displayBalance"`
	Pending        string `json:"pending"`
}

// NewAssetResults converts ledger entries for RPC responses.
func NewAssetResults(assets []types.Asset) []AssetResult {
	out := make([]AssetResult, 0, len(assets))
	for _, a := range assets {
		out = append(out, AssetResult{
			Asset:          a.Type.String(),
			Balance:        a.Balance.String(),
			DisplayBalance: a.DisplayBalance.String(),
			Pending:        a.Pending().String(),
		})
	}
	return out
}

// StatusResult is returned by wallet_getStatus.
type StatusResult struct {
	Loaded     bool                     `json:"loaded"`
	Address    string                   `json:"address,omitempty"`
	Network    string                   `json:"network,omitempty"`
	Loading    bool                     `json:"loading"`
	Operations []engine.OperationRecord `json:"operations"`
}

// WalletResult is returned by the lifecycle methods.
type WalletResult struct {
	Address  string        `json:"address"`
	Network  string        `json:"network"`
	Mnemonic string        `json:"mnemonic,omitempty"`
	Assets   []AssetResult `json:"assets"`
}

// NewWalletResult converts an engine payload.
func NewWalletResult(info *engine.WalletInfo) *WalletResult {
	return &WalletResult{
		Address:  info.Address.Hex(),
		Network:  info.Network,
		Mnemonic: info.Mnemonic,
		Assets:   NewAssetResults(info.Assets),
	}
}

// RemoveResult is returned by wallet_remove.
type RemoveResult struct {
	Removed bool `json:"removed"`
}

// SendResult is returned by wallet_send.
type SendResult struct {
	Hash    string `json:"hash"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
	Outcome string `json:"outcome"`
}

// MismatchData is attached to CodeIdentityMismatch errors.
type MismatchData struct {
	Derived  string `json:"derived"`
	Expected string `json:"expected"`
}
