package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/rpc"
)

// cannedServer answers each method with a fixed result or error and
// records the params it received.
type cannedServer struct {
	results map[string]interface{}
	errors  map[string]*rpc.Error
	params  map[string]json.RawMessage
}

func newCannedServer(t *testing.T) (*cannedServer, *Client) {
	t.Helper()
	cs := &cannedServer{
		results: make(map[string]interface{}),
		errors:  make(map[string]*rpc.Error),
		params:  make(map[string]json.RawMessage),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			ID     int             `json:"id"`
		}
		json.Unmarshal(body, &req)
		cs.params[req.Method] = req.Params

		resp := rpc.Response{JSONRPC: "2.0", ID: req.ID}
		if e, ok := cs.errors[req.Method]; ok {
			resp.Error = e
		} else if res, ok := cs.results[req.Method]; ok {
			resp.Result = res
		} else {
			resp.Error = &rpc.Error{Code: rpc.CodeMethodNotFound, Message: "not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return cs, New(srv.URL)
}

func TestClient_Status(t *testing.T) {
	cs, client := newCannedServer(t)
	cs.results["wallet_getStatus"] = rpc.StatusResult{Loaded: true, Address: "0xabc", Network: "dev"}

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Loaded || status.Address != "0xabc" || status.Network != "dev" {
		t.Errorf("status = %+v", status)
	}
}

func TestClient_Send_Params(t *testing.T) {
	cs, client := newCannedServer(t)
	cs.results["wallet_send"] = rpc.SendResult{Hash: "0x01", Asset: "DAI", Amount: "2", Outcome: "confirmed"}

	res, err := client.Send(context.Background(), "0xdead", "2", "DAI")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Outcome != "confirmed" {
		t.Errorf("outcome = %q", res.Outcome)
	}

	var sent rpc.SendParam
	if err := json.Unmarshal(cs.params["wallet_send"], &sent); err != nil {
		t.Fatalf("params: %v", err)
	}
	if sent.To != "0xdead" || sent.Amount != "2" || sent.Asset != "DAI" {
		t.Errorf("params = %+v", sent)
	}
}

func TestClient_Restore_Params(t *testing.T) {
	cs, client := newCannedServer(t)
	cs.results["wallet_restore"] = rpc.WalletResult{Address: "0xabc", Network: "testnet"}

	res, err := client.Restore(context.Background(), []string{"a", "b"}, "0xabc", true)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Network != "testnet" {
		t.Errorf("network = %q", res.Network)
	}

	var sent rpc.RestoreParam
	json.Unmarshal(cs.params["wallet_restore"], &sent)
	if len(sent.Words) != 2 || !sent.Testnet || sent.Address != "0xabc" {
		t.Errorf("params = %+v", sent)
	}
}

func TestClient_RPCErrorWithData(t *testing.T) {
	cs, client := newCannedServer(t)
	cs.errors["wallet_restore"] = &rpc.Error{
		Code:    rpc.CodeIdentityMismatch,
		Message: "identity mismatch",
		Data:    rpc.MismatchData{Derived: "0x1", Expected: "0x2"},
	}

	_, err := client.Restore(context.Background(), []string{"a"}, "0x2", false)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != rpc.CodeIdentityMismatch {
		t.Errorf("code = %d", rpcErr.Code)
	}
	var data rpc.MismatchData
	if err := json.Unmarshal(rpcErr.Data, &data); err != nil || data.Derived != "0x1" {
		t.Errorf("data = %s (%v)", rpcErr.Data, err)
	}
}

func TestClient_Remove_DiscardsResult(t *testing.T) {
	cs, client := newCannedServer(t)
	cs.results["wallet_remove"] = rpc.RemoveResult{Removed: true}

	if err := client.Remove(context.Background()); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestClient_Call_MethodNotFound(t *testing.T) {
	_, client := newCannedServer(t)

	var raw json.RawMessage
	err := client.Call(context.Background(), "nonexistent_method", nil, &raw)
	if err == nil {
		t.Fatal("expected error for unknown method")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("error code = %d, want -32601", rpcErr.Code)
	}
}

func TestClient_Call_InvalidEndpoint(t *testing.T) {
	client := NewWithTimeout("http://127.0.0.1:1/", time.Second) // port 1, should refuse

	if _, err := client.Status(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestClient_Call_ContextCanceled(t *testing.T) {
	_, client := newCannedServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Status(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
