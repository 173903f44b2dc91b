// wallet-cli is a command-line client for a running walletd.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/rpc"
	"github.com/Klingon-tech/klingnet-wallet/internal/rpcclient"
	"golang.org/x/term"
)

const defaultRPC = "http://127.0.0.1:9545"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := defaultRPC
	if env := os.Getenv("WALLETD_RPC"); env != "" {
		rpcURL = env
	}

	// Scan for --rpc before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(rpcURL)
	ctx := context.Background()
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(ctx, client)
	case "assets":
		cmdAssets(ctx, client)
	case "init":
		cmdInit(ctx, client)
	case "create":
		cmdCreate(ctx, client, cmdArgs)
	case "restore":
		cmdRestore(ctx, client, cmdArgs)
	case "remove":
		cmdRemove(ctx, client, cmdArgs)
	case "send":
		cmdSend(ctx, client, cmdArgs)
	case "refresh":
		cmdRefresh(ctx, client)
	case "operation", "op":
		cmdOperation(ctx, client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: wallet-cli [--rpc <url>] <command> [flags]

Global flags:
  --rpc <url>      walletd RPC endpoint (default: %s, env WALLETD_RPC)

Commands:
  status                          Show wallet and operation status
  assets                          Show asset balances
  init                            Load the stored wallet
  create [--testnet]              Generate a new wallet
  restore --address <addr> [--mnemonic "..."] [--testnet]
                                  Restore a wallet from its recovery phrase
  remove --yes                    Delete the stored wallet
  send --to <addr> --amount <n> [--asset <SYM>]
                                  Send an asset and wait for confirmation
  refresh                         Re-read balances from the chain
  operation <kind>                Show the last init|create|restore|remove|send
`, defaultRPC)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(ctx context.Context, client *rpcclient.Client) {
	st, err := client.Status(ctx)
	if err != nil {
		fail("wallet_getStatus", err)
	}

	if !st.Loaded {
		fmt.Println("Wallet:  none loaded")
	} else {
		fmt.Printf("Address: %s\n", st.Address)
		fmt.Printf("Network: %s\n", st.Network)
	}
	fmt.Printf("Loading: %t\n", st.Loading)
	for _, op := range st.Operations {
		if op.State == "" || op.State == "idle" {
			continue
		}
		line := fmt.Sprintf("  %-8s %-10s %s", op.Kind, op.State, op.StartedAt.Format(time.RFC3339))
		if op.Err != "" {
			line += "  " + op.Err
		}
		fmt.Println(line)
	}
}

// ── assets ──────────────────────────────────────────────────────────────

func cmdAssets(ctx context.Context, client *rpcclient.Client) {
	assets, err := client.Assets(ctx)
	if err != nil {
		fail("wallet_getAssets", err)
	}
	printAssets(assets)
}

func cmdRefresh(ctx context.Context, client *rpcclient.Client) {
	assets, err := client.Refresh(ctx)
	if err != nil {
		fail("wallet_refresh", err)
	}
	printAssets(assets)
}

func printAssets(assets []rpc.AssetResult) {
	if len(assets) == 0 {
		fmt.Println("No assets.")
		return
	}
	fmt.Printf("%-8s %24s %24s\n", "ASSET", "BALANCE", "AVAILABLE")
	for _, a := range assets {
		fmt.Printf("%-8s %24s %24s\n", a.Asset, a.Balance, a.DisplayBalance)
	}
}

// ── wallet lifecycle ────────────────────────────────────────────────────

func cmdInit(ctx context.Context, client *rpcclient.Client) {
	res, err := client.Init(ctx)
	if err != nil {
		fail("wallet_init", err)
	}
	printWallet(res)
}

func cmdCreate(ctx context.Context, client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	testnet := fs.Bool("testnet", false, "Use the testnet profile")
	fs.Parse(args)

	res, err := client.Create(ctx, *testnet)
	if err != nil {
		fail("wallet_create", err)
	}
	printWallet(res)
	if res.Mnemonic != "" {
		fmt.Println()
		fmt.Println("Recovery phrase (write it down, it is shown once):")
		fmt.Printf("  %s\n", res.Mnemonic)
	}
}

func cmdRestore(ctx context.Context, client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	address := fs.String("address", "", "Expected wallet address")
	mnemonic := fs.String("mnemonic", "", "Recovery phrase (prompted when omitted)")
	testnet := fs.Bool("testnet", false, "Use the testnet profile")
	fs.Parse(args)

	if *address == "" {
		fatal("--address is required")
	}
	phrase := *mnemonic
	if phrase == "" {
		b, err := readSecret("Recovery phrase: ")
		if err != nil {
			fatal("read phrase: %v", err)
		}
		phrase = string(b)
	}

	res, err := client.Restore(ctx, strings.Fields(phrase), *address, *testnet)
	if err != nil {
		var rerr *rpcclient.RPCError
		if errors.As(err, &rerr) && rerr.Code == rpc.CodeIdentityMismatch {
			var data rpc.MismatchData
			if json.Unmarshal(rerr.Data, &data) == nil {
				fatal("phrase derives %s, expected %s", data.Derived, data.Expected)
			}
		}
		fail("wallet_restore", err)
	}
	printWallet(res)
}

func cmdRemove(ctx context.Context, client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Confirm deletion of the stored wallet")
	fs.Parse(args)

	if !*yes {
		fatal("remove deletes the stored key; pass --yes to confirm")
	}
	if err := client.Remove(ctx); err != nil {
		fail("wallet_remove", err)
	}
	fmt.Println("Wallet removed.")
}

func printWallet(res *rpc.WalletResult) {
	fmt.Printf("Address: %s\n", res.Address)
	fmt.Printf("Network: %s\n", res.Network)
	printAssets(res.Assets)
}

// ── send ────────────────────────────────────────────────────────────────

func cmdSend(ctx context.Context, client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "Recipient address")
	amount := fs.String("amount", "", "Amount in whole units (e.g. 0.5)")
	asset := fs.String("asset", "", "Asset symbol (default: native)")
	fs.Parse(args)

	if *to == "" || *amount == "" {
		fatal("Usage: wallet-cli send --to <addr> --amount <n> [--asset <SYM>]")
	}

	fmt.Println("Submitting, waiting for confirmation...")
	res, err := client.Send(ctx, *to, *amount, *asset)
	if err != nil {
		var rerr *rpcclient.RPCError
		if errors.As(err, &rerr) && len(rerr.Data) > 0 {
			fmt.Fprintf(os.Stderr, "Data: %s\n", rerr.Data)
		}
		fail("wallet_send", err)
	}
	fmt.Printf("Hash:    %s\n", res.Hash)
	fmt.Printf("Sent:    %s %s\n", res.Amount, res.Asset)
	fmt.Printf("Outcome: %s\n", res.Outcome)
}

// ── operation ───────────────────────────────────────────────────────────

func cmdOperation(ctx context.Context, client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: wallet-cli operation <init|create|restore|remove|send>")
	}
	rec, err := client.Operation(ctx, args[0])
	if err != nil {
		fail("wallet_getOperation", err)
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fatal("encode: %v", err)
	}
	fmt.Println(string(out))
}

// ── helpers ─────────────────────────────────────────────────────────────

func readSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return secret, nil
}

func fail(method string, err error) {
	fatal("%s: %v", method, err)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
