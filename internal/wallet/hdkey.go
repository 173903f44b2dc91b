package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-wallet/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 path components: m/44'/60'/account'/change/index.
const (
	PurposeBIP44     = bip32.FirstHardenedChild + 44
	CoinTypeEthereum = bip32.FirstHardenedChild + 60
	ChangeExternal   = 0
)

// HDKey represents a hierarchical deterministic key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add bip32.FirstHardenedChild to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DeriveAccount derives the external key at m/44'/60'/0'/0/index.
func (k *HDKey) DeriveAccount(index uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP44,
		CoinTypeEthereum,
		bip32.FirstHardenedChild,
		ChangeExternal,
		index,
	)
}

// PrivateKeyBytes returns the raw 32-byte private key, or nil for a
// public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 stores private keys as 33 bytes with a leading 0x00.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// Signer returns the secp256k1 key held by this HD key.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	return crypto.PrivateKeyFromBytes(priv)
}

// Address returns the Ethereum address of this key.
func (k *HDKey) Address() (common.Address, error) {
	signer, err := k.Signer()
	if err != nil {
		return common.Address{}, err
	}
	return signer.Address(), nil
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}
