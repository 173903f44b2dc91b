// Package wallet is the identity manager: it derives, restores, loads and
// removes the wallet's single signing identity.
package wallet

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits is the entropy size for 12-word mnemonics.
const MnemonicEntropyBits = 128

// GenerateMnemonic creates a new 12-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks word count, word list membership and checksum.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// JoinWords turns an ordered word list into a canonical lower-case phrase.
// It rejects empty lists, blank words and phrases that fail BIP-39
// validation.
func JoinWords(words []string) (string, error) {
	if len(words) == 0 {
		return "", fmt.Errorf("%w: no words", ErrInvalidMnemonic)
	}
	clean := make([]string, len(words))
	for i, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || strings.ContainsAny(w, " \t\n") {
			return "", fmt.Errorf("%w: word %d is malformed", ErrInvalidMnemonic, i+1)
		}
		clean[i] = w
	}
	phrase := strings.Join(clean, " ")
	if !ValidateMnemonic(phrase) {
		return "", fmt.Errorf("%w: checksum or word list mismatch", ErrInvalidMnemonic)
	}
	return phrase, nil
}
