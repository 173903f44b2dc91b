package config

import (
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of environment overrides, e.g. WALLETD_NETWORK.
const EnvPrefix = "walletd"

// Env holds environment overrides. They apply after the config file and
// before command-line flags.
type Env struct {
	Network    string   `envconfig:"NETWORK"`
	DataDir    string   `envconfig:"DATADIR"`
	ChainURL   string   `envconfig:"CHAIN_URL"` // Endpoint of the configured network.
	GasOracle  string   `envconfig:"GAS_ORACLE"`
	RPCAddr    string   `envconfig:"RPC_ADDR"`
	RPCPort    int      `envconfig:"RPC_PORT"`
	RPCAllowed []string `envconfig:"RPC_ALLOWED"`
	LogLevel   string   `envconfig:"LOG_LEVEL"`
	LogJSON    *bool    `envconfig:"LOG_JSON"`
	Password   string   `envconfig:"PASSWORD"`
}

// ReadEnv reads WALLETD_* variables.
func ReadEnv() (*Env, error) {
	var e Env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ApplyEnv applies environment overrides to a Config struct.
func ApplyEnv(cfg *Config, e *Env) {
	if e == nil {
		return
	}
	if e.Network != "" {
		cfg.Network = NetworkType(e.Network)
	}
	if e.DataDir != "" {
		cfg.DataDir = e.DataDir
	}
	if e.ChainURL != "" {
		setChainURL(cfg, cfg.Network, e.ChainURL)
	}
	if e.GasOracle != "" {
		cfg.Gas.OracleURL = e.GasOracle
	}
	if e.RPCAddr != "" {
		cfg.RPC.Addr = e.RPCAddr
	}
	if e.RPCPort != 0 {
		cfg.RPC.Port = e.RPCPort
	}
	if len(e.RPCAllowed) > 0 {
		cfg.RPC.AllowedIPs = e.RPCAllowed
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
	if e.LogJSON != nil {
		cfg.Log.JSON = *e.LogJSON
	}
	if e.Password != "" {
		cfg.Keystore.Password = e.Password
	}
}

func setChainURL(cfg *Config, network NetworkType, url string) {
	switch network {
	case Mainnet:
		cfg.Chain.MainnetURL = url
	case Testnet:
		cfg.Chain.TestnetURL = url
	case Dev:
		cfg.Chain.DevURL = url
	}
}
