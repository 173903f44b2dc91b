package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrHelp is returned by Load when --help or --version was handled.
var ErrHelp = errors.New("help requested")

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	Testnet bool
	DataDir string
	Config  string

	// Chain
	ChainURL  string
	GasOracle string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string
	Metrics    bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetRPC     bool
	SetMetrics bool
	SetLogJSON bool
}

// ParseFlags parses command-line flags.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("walletd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet, testnet or dev)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Chain
	fs.StringVar(&f.ChainURL, "chain-url", "", "JSON-RPC endpoint of the selected network")
	fs.StringVar(&f.GasOracle, "gas-oracle", "", "Gas price oracle URL")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for RPC")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Allowed CORS origins for RPC (comma-separated)")
	fs.BoolVar(&f.Metrics, "metrics", true, "Serve Prometheus metrics on /metrics")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.Testnet {
		f.Network = string(Testnet)
	}
	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Chain
	if f.ChainURL != "" {
		setChainURL(cfg, cfg.Network, f.ChainURL)
	}
	if f.GasOracle != "" {
		cfg.Gas.OracleURL = f.GasOracle
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}
	if f.SetMetrics {
		cfg.RPC.Metrics = f.Metrics
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the daemon help text to w.
func PrintUsage(w io.Writer) {
	usage := `Klingnet Wallet Daemon - account wallet with balance reconciliation

Usage:
  walletd [options]
  walletd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default), testnet or dev
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.walletd)
  --config, -c    Config file path (default: <datadir>/walletd.conf)

Chain Options:
  --chain-url     JSON-RPC endpoint of the selected network
  --gas-oracle    Gas price oracle URL (default: network price)

RPC Options:
  --rpc           Enable RPC server (default: true)
  --rpc-addr      RPC listen address (default: 127.0.0.1)
  --rpc-port      RPC port (mainnet: 9545, testnet: 9645, dev: 9745)
  --rpc-allowed   Allowed IPs for RPC (comma-separated)
  --rpc-cors      Allowed CORS origins for RPC (comma-separated)
  --metrics       Serve Prometheus metrics on /metrics (default: true)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Environment:
  WALLETD_PASSWORD, WALLETD_NETWORK, WALLETD_DATADIR, WALLETD_CHAIN_URL,
  WALLETD_GAS_ORACLE, WALLETD_RPC_ADDR, WALLETD_RPC_PORT,
  WALLETD_RPC_ALLOWED, WALLETD_LOG_LEVEL, WALLETD_LOG_JSON

Examples:
  # Start against mainnet
  walletd

  # Start against a local dev chain
  walletd --network=dev --chain-url=http://127.0.0.1:8545
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file, then tokens.yaml
// 4. WALLETD_* environment
// 5. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help {
		PrintUsage(os.Stdout)
		return nil, flags, ErrHelp
	}
	if flags.Version {
		fmt.Println("walletd version 0.1.0")
		return nil, flags, ErrHelp
	}

	env, err := ReadEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("reading environment: %w", err)
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if env.Network != "" {
		network = NetworkType(strings.ToLower(env.Network))
	}
	if flags.Network != "" {
		network = NetworkType(strings.ToLower(flags.Network))
	}

	cfg := Default(network)
	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	tokens, err := LoadTokens(cfg.TokensFile())
	if err != nil {
		return nil, nil, fmt.Errorf("loading tokens: %w", err)
	}
	cfg.Tokens = cfg.Tokens.Merge(tokens)

	ApplyEnv(cfg, env)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.KeystoreDir(),
		cfg.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
