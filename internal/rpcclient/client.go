// Package rpcclient provides a JSON-RPC 2.0 client for walletd.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	"github.com/Klingon-tech/klingnet-wallet/internal/rpc"
)

// Client is a JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 10*time.Minute)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
// Sends wait for the receipt, so the timeout should cover block times.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("http request: %s", strings.TrimSpace(string(data)))
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// Status calls wallet_getStatus.
func (c *Client) Status(ctx context.Context) (*rpc.StatusResult, error) {
	var res rpc.StatusResult
	if err := c.Call(ctx, "wallet_getStatus", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Assets calls wallet_getAssets.
func (c *Client) Assets(ctx context.Context) ([]rpc.AssetResult, error) {
	var res []rpc.AssetResult
	if err := c.Call(ctx, "wallet_getAssets", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Init calls wallet_init.
func (c *Client) Init(ctx context.Context) (*rpc.WalletResult, error) {
	var res rpc.WalletResult
	if err := c.Call(ctx, "wallet_init", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Create calls wallet_create.
func (c *Client) Create(ctx context.Context, testnet bool) (*rpc.WalletResult, error) {
	var res rpc.WalletResult
	if err := c.Call(ctx, "wallet_create", rpc.NetworkParam{Testnet: testnet}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Restore calls wallet_restore.
func (c *Client) Restore(ctx context.Context, words []string, address string, testnet bool) (*rpc.WalletResult, error) {
	var res rpc.WalletResult
	params := rpc.RestoreParam{Words: words, Address: address, Testnet: testnet}
	if err := c.Call(ctx, "wallet_restore", params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Remove calls wallet_remove.
func (c *Client) Remove(ctx context.Context) error {
	return c.Call(ctx, "wallet_remove", nil, nil)
}

// Send calls wallet_send.
func (c *Client) Send(ctx context.Context, to, amount, asset string) (*rpc.SendResult, error) {
	var res rpc.SendResult
	params := rpc.SendParam{To: to, Amount: amount, Asset: asset}
	if err := c.Call(ctx, "wallet_send", params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refresh calls wallet_refresh.
func (c *Client) Refresh(ctx context.Context) ([]rpc.AssetResult, error) {
	var res []rpc.AssetResult
	if err := c.Call(ctx, "wallet_refresh", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Operation calls wallet_getOperation.
func (c *Client) Operation(ctx context.Context, kind string) (*engine.OperationRecord, error) {
	var res engine.OperationRecord
	if err := c.Call(ctx, "wallet_getOperation", rpc.OperationParam{Kind: kind}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
