package wallet

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestSeedFromMnemonic_Vector(t *testing.T) {
	// BIP-39 reference vector with passphrase "TREZOR".
	seed, err := SeedFromMnemonic(abandonPhrase, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	want := "c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04"
	if got := hex.EncodeToString(seed); got != want {
		t.Errorf("seed = %s, want %s", got, want)
	}
}

func TestSeedFromMnemonic_Invalid(t *testing.T) {
	_, err := SeedFromMnemonic("not a mnemonic", "")
	if !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("SeedFromMnemonic() error = %v, want ErrInvalidMnemonic", err)
	}
}
