package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if !knownNetwork(cfg.Network) {
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Testnet, Dev)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is empty")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.Chain.PollInterval <= 0 {
		return fmt.Errorf("chain.poll must be positive")
	}
	if cfg.Chain.MaxBlockRange == 0 {
		return fmt.Errorf("chain.maxrange must be positive")
	}
	if cfg.Chain.ConfirmTimeout < 0 {
		return fmt.Errorf("chain.confirmtimeout must not be negative")
	}

	// Both profiles reachable from an operation need an endpoint.
	for _, n := range []NetworkType{cfg.Profile(false), cfg.Profile(true)} {
		if err := validateURL(cfg.Chain.URL(n), "chain."+string(n)); err != nil {
			return err
		}
	}
	if cfg.Gas.OracleURL != "" {
		if err := validateURL(cfg.Gas.OracleURL, "gas.oracle"); err != nil {
			return err
		}
		if cfg.Gas.OracleTimeout <= 0 {
			return fmt.Errorf("gas.timeout must be positive")
		}
	}
	return validateTokens(cfg.Tokens)
}

func knownNetwork(n NetworkType) bool {
	for _, k := range Networks {
		if n == k {
			return true
		}
	}
	return false
}

func validateURL(raw, field string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s: invalid URL %q", field, raw)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return nil
	default:
		return fmt.Errorf("%s: unsupported scheme %q", field, u.Scheme)
	}
}
