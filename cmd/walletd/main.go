// Klingnet wallet daemon.
//
// Usage:
//
//	walletd [--network=testnet --rpc-port=...] Run daemon
//	walletd --help                              Show help
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/klingnet-wallet/config"
	"github.com/Klingon-tech/klingnet-wallet/internal/node"
	"golang.org/x/term"
)

func main() {
	cfg, _, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Keystore.Password == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			fmt.Fprintln(os.Stderr, "Error: keystore password required (set WALLETD_PASSWORD)")
			os.Exit(1)
		}
		fmt.Fprint(os.Stderr, "Keystore password: ")
		pw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.Keystore.Password = string(pw)
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}
