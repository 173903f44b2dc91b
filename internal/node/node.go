// Package node wires configuration, storage, keystore, chain clients, the
// wallet engine and the RPC server into a runnable daemon.
package node

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/config"
	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	"github.com/Klingon-tech/klingnet-wallet/internal/gas"
	"github.com/Klingon-tech/klingnet-wallet/internal/keystore"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/network"
	"github.com/Klingon-tech/klingnet-wallet/internal/rpc"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// ErrNoPassword is returned when the keystore password is empty.
var ErrNoPassword = errors.New("keystore password required")

// keystorePrefix namespaces keystore keys in the data directory database.
var keystorePrefix = []byte("ks/")

// DialFunc connects to a chain endpoint.
type DialFunc func(ctx context.Context, url string, opts network.Options) (*network.Client, error)

// Node is a fully-initialized wallet daemon.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db       storage.DB
	store    *keystore.DBStore
	engine   *engine.Engine
	registry *prometheus.Registry
	chains   *chains

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node. It opens storage and builds the
// engine and RPC server but does not start serving. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	return newNode(cfg, network.Dial, true)
}

func newNode(cfg *config.Config, dial DialFunc, initLogger bool) (*Node, error) {
	if cfg.Keystore.Password == "" {
		return nil, ErrNoPassword
	}

	// ── 1. Init logger ──────────────────────────────────────────────
	if initLogger {
		logFile := cfg.Log.File
		if logFile == "" {
			logFile = filepath.Join(cfg.LogsDir(), "walletd.log")
		}
		if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}
	logger := klog.WithComponent("node")
	logger.Info().
		Str("network", string(cfg.Network)).
		Str("datadir", cfg.DataDir).
		Msg("Starting Klingnet Wallet Daemon")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.KeystoreDir())
	if err != nil {
		return nil, err
	}
	store := keystore.NewDBStore(storage.NewPrefixDB(db, keystorePrefix), []byte(cfg.Keystore.Password), keystore.DefaultKDFParams())
	logger.Info().Str("path", cfg.KeystoreDir()).Msg("Keystore opened")

	// ── 3. Gas oracle ───────────────────────────────────────────────
	var price gas.PriceFunc
	if cfg.Gas.OracleURL != "" {
		price = gas.NewOracle(cfg.Gas.OracleURL, cfg.Gas.OracleTimeout).GasPrice
		logger.Info().Str("url", cfg.Gas.OracleURL).Msg("Gas price oracle enabled")
	}

	// ── 4. Metrics ──────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// ── 5. Engine ───────────────────────────────────────────────────
	ch := newChains(cfg, dial)
	eng := engine.New(engine.Config{
		Identities:     wallet.NewManager(store),
		Provider:       ch.provide,
		GasPrice:       price,
		Default:        engine.Options{Testnet: cfg.Network == config.Testnet},
		ConfirmTimeout: cfg.Chain.ConfirmTimeout,
		Metrics:        engine.NewMetrics(registry),
	})

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store,
		engine:   eng,
		registry: registry,
		chains:   ch,
		ctx:      ctx,
		cancel:   cancel,
	}

	// ── 6. RPC ──────────────────────────────────────────────────────
	if cfg.RPC.Enabled {
		var gatherer prometheus.Gatherer
		if cfg.RPC.Metrics {
			gatherer = registry
		}
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(addr, eng, cfg.RPC, gatherer)
	}

	return n, nil
}

// Start serves RPC and loads the stored wallet in the background.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return err
		}
		n.logger.Info().Str("addr", n.rpcServer.Addr()).Msg("RPC server listening")
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.loadStoredWallet()
	}()
	return nil
}

func (n *Node) loadStoredWallet() {
	info, err := n.engine.InitWallet(n.ctx)
	switch {
	case errors.Is(err, wallet.ErrNoStoredKey):
		n.logger.Info().Msg("No stored wallet, waiting for create or restore")
	case err != nil:
		n.logger.Warn().Err(err).Msg("Stored wallet could not be loaded")
	default:
		n.logger.Info().
			Str("address", info.Address.Hex()).
			Str("network", info.Network).
			Int("assets", len(info.Assets)).
			Msg("Wallet loaded")
	}
}

// Stop shuts everything down in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	n.engine.Close()
	n.chains.close()
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Engine returns the wallet engine.
func (n *Node) Engine() *engine.Engine {
	return n.engine
}

// chains dials and caches one client per network profile.
type chains struct {
	cfg  *config.Config
	dial DialFunc

	mu      sync.Mutex
	clients map[config.NetworkType]*network.Client
}

func newChains(cfg *config.Config, dial DialFunc) *chains {
	return &chains{cfg: cfg, dial: dial, clients: make(map[config.NetworkType]*network.Client)}
}

func (c *chains) provide(ctx context.Context, opts engine.Options) (*engine.Chain, error) {
	profile := c.cfg.Profile(opts.Testnet)

	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.clients[profile]
	if !ok {
		url := c.cfg.Chain.URL(profile)
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		var err error
		client, err = c.dial(dialCtx, url, network.Options{
			PollInterval:  c.cfg.Chain.PollInterval,
			MaxBlockRange: c.cfg.Chain.MaxBlockRange,
			WatchNative:   c.cfg.Chain.WatchNative,
		})
		if err != nil {
			return nil, err
		}
		c.clients[profile] = client
		klog.Network.Info().Str("network", string(profile)).Str("url", url).Msg("Chain client connected")
	}
	return &engine.Chain{
		Name:   string(profile),
		Net:    client,
		Assets: c.cfg.Tokens.Specs(profile),
	}, nil
}

func (c *chains) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[config.NetworkType]*network.Client)
}
