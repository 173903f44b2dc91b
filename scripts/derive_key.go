// derive_key.go prints the pubkey and address for a hex-encoded private key
// file, or for a recovery phrase file when --mnemonic is given.
// Usage: go run scripts/derive_key.go [--mnemonic] <file>
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/Klingon-tech/klingnet-wallet/pkg/crypto"
)

func main() {
	args := os.Args[1:]
	mnemonic := len(args) > 0 && args[0] == "--mnemonic"
	if mnemonic {
		args = args[1:]
	}
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: derive_key [--mnemonic] <file>")
		os.Exit(1)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	text := strings.TrimSpace(string(data))

	if mnemonic {
		id, err := wallet.IdentityFromMnemonic(strings.Join(strings.Fields(text), " "))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("address=%s\n", id.Address().Hex())
		return
	}

	keyBytes, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(key.PublicKey()))
	fmt.Printf("address=%s\n", key.Address().Hex())
}
