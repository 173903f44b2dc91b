// Package crypto wraps secp256k1 keys for Ethereum-style addresses and
// recoverable signatures.
package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decredecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureSize is the length of a recoverable [R || S || V] signature.
const SignatureSize = 65

// Signer signs 32-byte hashes with a recoverable signature.
type Signer interface {
	SignHash(hash []byte) ([]byte, error)
	Address() common.Address
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("private key is zero")
	}
	return &PrivateKey{key: key}, nil
}

// PublicKey returns the 65-byte uncompressed public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeUncompressed()
}

// Address returns the Ethereum address of the key.
func (pk *PrivateKey) Address() common.Address {
	return PubkeyToAddress(pk.PublicKey())
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// ToECDSA converts the key for use with go-ethereum transaction signers.
func (pk *PrivateKey) ToECDSA() (*ecdsa.PrivateKey, error) {
	return ethcrypto.ToECDSA(pk.key.Serialize())
}

// SignHash produces a 65-byte [R || S || V] signature with V in {0, 1}.
func (pk *PrivateKey) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	// SignCompact returns [V || R || S] with V = 27 + recovery id.
	compact := decredecdsa.SignCompact(pk.key, hash, false)
	sig := make([]byte, SignatureSize)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// PubkeyToAddress derives an Ethereum address from a 65-byte uncompressed
// public key: the last 20 bytes of Keccak-256 over the X || Y coordinates.
func PubkeyToAddress(pub []byte) common.Address {
	if len(pub) != 65 {
		return common.Address{}
	}
	return common.BytesToAddress(ethcrypto.Keccak256(pub[1:])[12:])
}

// RecoverAddress returns the address that produced sig over hash.
func RecoverAddress(hash, sig []byte) (common.Address, error) {
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
