package config

import "time"

// Default returns the default daemon configuration for the given network.
func Default(network NetworkType) *Config {
	if network == "" {
		network = Mainnet
	}
	return &Config{
		Network: network,
		DataDir: DefaultDataDir(),
		Chain: ChainConfig{
			MainnetURL:    "https://cloudflare-eth.com",
			TestnetURL:    "https://ethereum-sepolia-rpc.publicnode.com",
			DevURL:        "http://127.0.0.1:8545",
			PollInterval:  4 * time.Second,
			MaxBlockRange: 2000,
			WatchNative:   true,
		},
		Gas: GasConfig{
			OracleTimeout: 5 * time.Second,
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       defaultRPCPort(network),
			AllowedIPs: []string{"127.0.0.1"},
			Metrics:    true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
		Tokens: DefaultTokens(),
	}
}

func defaultRPCPort(network NetworkType) int {
	switch network {
	case Testnet:
		return 9645
	case Dev:
		return 9745
	default:
		return 9545
	}
}
