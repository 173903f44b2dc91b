package keystore

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// SaltSize is the Argon2id salt length.
const SaltSize = 32

// Sealed format: salt(32) | memory(4) | iterations(4) | parallelism(1) | nonce(24) | ciphertext
const sealHeaderSize = SaltSize + 4 + 4 + 1

// KDFParams holds Argon2id parameters.
type KDFParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultKDFParams returns the parameters used for on-disk secrets.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func stretch(password, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

// Seal encrypts plaintext under password with Argon2id + XChaCha20-Poly1305.
// The KDF parameters travel with the ciphertext so they can be raised later
// without breaking existing entries.
func Seal(plaintext, password []byte, p KDFParams) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := stretch(password, salt, p)
	defer wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, sealHeaderSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, p.Memory)
	out = binary.LittleEndian.AppendUint32(out, p.Iterations)
	out = append(out, p.Parallelism)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a value produced by Seal.
func Open(sealed, password []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	if min := sealHeaderSize + nonceSize + chacha20poly1305.Overhead; len(sealed) < min {
		return nil, fmt.Errorf("sealed value too short: %d bytes, need at least %d", len(sealed), min)
	}

	p := KDFParams{
		Memory:      binary.LittleEndian.Uint32(sealed[SaltSize:]),
		Iterations:  binary.LittleEndian.Uint32(sealed[SaltSize+4:]),
		Parallelism: sealed[SaltSize+8],
	}
	key := stretch(password, sealed[:SaltSize], p)
	defer wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := sealed[sealHeaderSize : sealHeaderSize+nonceSize]
	plaintext, err := aead.Open(nil, nonce, sealed[sealHeaderSize+nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
