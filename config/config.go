// Package config handles walletd configuration.
//
// Configuration is split into two categories:
//   - Network profiles: chain endpoint and tracked tokens per network
//   - Daemon settings: RPC, keystore, gas oracle and logging
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies a network profile.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Dev     NetworkType = "dev"
)

// Networks lists the known profiles.
var Networks = []NetworkType{Mainnet, Testnet, Dev}

// Config holds daemon runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Chain endpoints and watcher
	Chain ChainConfig

	// Gas price oracle
	Gas GasConfig

	// RPC server
	RPC RPCConfig

	// Keystore
	Keystore KeystoreConfig

	// Logging
	Log LogConfig

	// Tracked tokens per network, from defaults and tokens.yaml.
	Tokens TokenRegistry
}

// ChainConfig holds chain client settings.
type ChainConfig struct {
	MainnetURL     string        `conf:"chain.mainnet"`
	TestnetURL     string        `conf:"chain.testnet"`
	DevURL         string        `conf:"chain.dev"`
	PollInterval   time.Duration `conf:"chain.poll"`
	MaxBlockRange  uint64        `conf:"chain.maxrange"`
	WatchNative    bool          `conf:"chain.watchnative"`
	ConfirmTimeout time.Duration `conf:"chain.confirmtimeout"` // 0 = wait for the request context
}

// URL returns the endpoint configured for network.
func (c ChainConfig) URL(network NetworkType) string {
	switch network {
	case Mainnet:
		return c.MainnetURL
	case Testnet:
		return c.TestnetURL
	case Dev:
		return c.DevURL
	default:
		return ""
	}
}

// GasConfig holds gas price oracle settings.
type GasConfig struct {
	OracleURL     string        `conf:"gas.oracle"` // Empty = network price only.
	OracleTimeout time.Duration `conf:"gas.timeout"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
	Metrics     bool     `conf:"rpc.metrics"`
}

// KeystoreConfig holds keystore settings. The password is never read from
// the config file.
type KeystoreConfig struct {
	Password string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// Profile returns the network used for an operation. testnet selects the
// test network; otherwise the configured network is used, or mainnet when
// the configured network is itself the test network.
func (c *Config) Profile(testnet bool) NetworkType {
	if testnet {
		return Testnet
	}
	if c.Network == Testnet {
		return Mainnet
	}
	return c.Network
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.walletd
//	macOS:   ~/Library/Application Support/Walletd
//	Windows: %APPDATA%\Walletd
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletd"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Walletd")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Walletd")
		}
		return filepath.Join(home, "AppData", "Roaming", "Walletd")
	default:
		return filepath.Join(home, ".walletd")
	}
}

// KeystoreDir returns the keystore database directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.DataDir, "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "walletd.conf")
}

// TokensFile returns the token registry override path.
func (c *Config) TokensFile() string {
	return filepath.Join(c.DataDir, "tokens.yaml")
}
