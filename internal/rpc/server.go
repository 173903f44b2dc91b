// Package rpc implements the JSON-RPC 2.0 API server.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/config"
	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Wallet is the engine surface served over RPC.
type Wallet interface {
	InitWallet(ctx context.Context) (*engine.WalletInfo, error)
	CreateWallet(ctx context.Context, opts engine.Options) (*engine.WalletInfo, error)
	RestoreWallet(ctx context.Context, words []string, expected string, opts engine.Options) (*engine.WalletInfo, error)
	RemoveWallet(ctx context.Context) error
	SendAsset(ctx context.Context, to common.Address, amount decimal.Decimal, asset types.AssetType) (*engine.SendResult, error)
	Refresh(ctx context.Context) ([]types.Asset, error)
	Snapshot() []types.Asset
	Operation(kind engine.Kind) (engine.OperationRecord, bool)
	Loading() bool
	Address() (common.Address, bool)
	Network() string
}

// Server is the JSON-RPC 2.0 HTTP server.
type Server struct {
	addr        string
	wallet      Wallet
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
}

// New creates a new RPC server. The rpcCfg parameter controls IP filtering
// and CORS. A non-nil gatherer is served on /metrics behind the same IP
// filter.
func New(addr string, w Wallet, rpcCfg config.RPCConfig, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		addr:        addr,
		wallet:      w,
		logger:      klog.WithComponent("rpc"),
		allowedNets: parseAllowedIPs(rpcCfg.AllowedIPs),
		corsOrigins: rpcCfg.CORSOrigins,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	if gatherer != nil {
		metrics := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
		mux.Handle("/metrics", s.filterIP(metrics))
	}

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Sends block until the transaction is mined.
		WriteTimeout: 10 * time.Minute,
	}

	return s
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// allowed reports whether the remote address passes the IP filter.
func (s *Server) allowed(r *http.Request) bool {
	if len(s.allowedNets) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && s.isIPAllowed(ip)
}

func (s *Server) filterIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleRequest is the main HTTP handler for JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if !s.allowed(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// CORS headers.
	s.setCORSHeaders(w, r)

	// Handle CORS preflight.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}

	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	result, rpcErr := s.dispatch(r.Context(), &req)
	if rpcErr != nil {
		writeJSON(w, Response{
			JSONRPC: "2.0",
			Error:   rpcErr,
			ID:      req.ID,
		})
		return
	}

	writeJSON(w, Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	})
}

// dispatch routes a request to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *Error) {
	switch req.Method {
	case "wallet_getStatus":
		return s.handleWalletGetStatus(req)
	case "wallet_getAssets":
		return s.handleWalletGetAssets(req)
	case "wallet_getOperation":
		return s.handleWalletGetOperation(req)
	case "wallet_init":
		return s.handleWalletInit(ctx, req)
	case "wallet_create":
		return s.handleWalletCreate(ctx, req)
	case "wallet_restore":
		return s.handleWalletRestore(ctx, req)
	case "wallet_remove":
		return s.handleWalletRemove(ctx, req)
	case "wallet_send":
		return s.handleWalletSend(ctx, req)
	case "wallet_refresh":
		return s.handleWalletRefresh(ctx, req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

// writeJSON writes a JSON-RPC response.
func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON-RPC error response.
func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	// Check if origin is allowed.
	allowed := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			allowed = true
			break
		}
	}

	if allowed {
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}

// parseParams unmarshals the request params into the given target.
func parseParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}

	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
