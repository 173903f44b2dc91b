// Package keystore persists the wallet's identity secrets.
package keystore

import "errors"

// ErrNotFound is returned when a requested value has never been stored.
var ErrNotFound = errors.New("keystore: not found")

// Secrets are the three values persisted for an identity. The store treats
// them as opaque strings; normalization is the caller's job.
type Secrets struct {
	PublicKey  string
	PrivateKey string
	Mnemonic   string
}

// Store is the secure storage collaborator used by the identity manager.
type Store interface {
	// GetPublicKey returns the stored public identifier (the address).
	GetPublicKey() (string, error)
	// GetPrivateKey returns the stored private key.
	GetPrivateKey() (string, error)
	// SetWallet replaces all stored values.
	SetWallet(s Secrets) error
	// RemoveWallet deletes all stored values.
	RemoveWallet() error
}
