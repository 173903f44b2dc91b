package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads daemon configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a daemon config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Chain
	case "chain.mainnet":
		cfg.Chain.MainnetURL = value
	case "chain.testnet":
		cfg.Chain.TestnetURL = value
	case "chain.dev":
		cfg.Chain.DevURL = value
	case "chain.poll":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Chain.PollInterval = d
	case "chain.maxrange":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Chain.MaxBlockRange = n
	case "chain.watchnative":
		cfg.Chain.WatchNative = parseBool(value)
	case "chain.confirmtimeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Chain.ConfirmTimeout = d

	// Gas oracle
	case "gas.oracle":
		cfg.Gas.OracleURL = value
	case "gas.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Gas.OracleTimeout = d

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)
	case "rpc.metrics":
		cfg.RPC.Metrics = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default daemon configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# Klingnet Wallet Daemon Configuration
#
# The keystore password is never stored here. Set WALLETD_PASSWORD or
# enter it when walletd starts.

# Network: mainnet, testnet or dev
network = ` + string(network) + `

# Data directory (default: ~/.walletd)
# datadir = ~/.walletd

# ============================================================================
# Chain
# ============================================================================

# JSON-RPC endpoints per network
# chain.mainnet = https://cloudflare-eth.com
# chain.testnet = https://ethereum-sepolia-rpc.publicnode.com
# chain.dev = http://127.0.0.1:8545

# Transfer watcher poll interval and max block span per log query
chain.poll = 4s
chain.maxrange = 2000

# Watch incoming native transfers by scanning blocks
chain.watchnative = true

# Give up waiting for a send receipt after this long (0 = no limit)
# chain.confirmtimeout = 10m

# ============================================================================
# Gas price oracle
# ============================================================================

# Endpoint returning {"average": <gwei>}; empty uses the network price
# gas.oracle = https://example.com/gasprice
gas.timeout = 5s

# ============================================================================
# RPC Server
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(defaultRPCPort(network)) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = http://localhost:3000

# Serve Prometheus metrics on /metrics
rpc.metrics = true

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
