package wallet

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/Klingon-tech/klingnet-wallet/internal/keystore"
	"github.com/Klingon-tech/klingnet-wallet/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Identity is an address plus the key that signs for it. The key never
// leaves this package except through the storage collaborator.
type Identity struct {
	key      *crypto.PrivateKey
	address  common.Address
	mnemonic string
}

// IdentityFromMnemonic derives the identity at m/44'/60'/0'/0/0.
func IdentityFromMnemonic(phrase string) (*Identity, error) {
	seed, err := SeedFromMnemonic(phrase, "")
	if err != nil {
		return nil, err
	}
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	account, err := master.DeriveAccount(0)
	if err != nil {
		return nil, err
	}
	key, err := account.Signer()
	if err != nil {
		return nil, err
	}
	return &Identity{key: key, address: key.Address()}, nil
}

// IdentityFromPrivateKey builds an identity from a hex private key, with or
// without a 0x prefix.
func IdentityFromPrivateKey(hexKey string) (*Identity, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	key, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		return nil, err
	}
	return &Identity{key: key, address: key.Address()}, nil
}

// Address returns the identity's address.
func (id *Identity) Address() common.Address {
	return id.address
}

// Mnemonic returns the recovery phrase of a freshly generated identity so it
// can be shown once for backup. It is empty for restored or loaded ones.
func (id *Identity) Mnemonic() string {
	return id.mnemonic
}

// SignTx signs tx for chainID with the latest signer.
func (id *Identity) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	priv, err := id.key.ToECDSA()
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), priv)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// SignHash signs a 32-byte hash.
func (id *Identity) SignHash(hash []byte) ([]byte, error) {
	return id.key.SignHash(hash)
}

// secrets returns the lower-cased values persisted for this identity.
func (id *Identity) secrets(phrase string) keystore.Secrets {
	return keystore.Secrets{
		PublicKey:  strings.ToLower(id.address.Hex()),
		PrivateKey: "0x" + hex.EncodeToString(id.key.Serialize()),
		Mnemonic:   strings.ToLower(phrase),
	}
}
