package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage wraps any failure of the storage collaborator.
	ErrStorage = errors.New("wallet storage failed")
	// ErrIdentityMismatch is matched by *MismatchError.
	ErrIdentityMismatch = errors.New("restored identity does not match expected address")
	// ErrNoStoredKey is returned when no private key has been persisted.
	ErrNoStoredKey = errors.New("no stored private key")
	// ErrMissingMnemonic is returned when a mnemonic load has no words.
	ErrMissingMnemonic = errors.New("mnemonic required")
	// ErrInvalidMnemonic is returned for malformed or non-BIP-39 phrases.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)

// MismatchError reports a restored address that differs from the expected one.
type MismatchError struct {
	Derived  string
	Expected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: derived %s, expected %s", ErrIdentityMismatch, e.Derived, e.Expected)
}

// Is lets errors.Is(err, ErrIdentityMismatch) match.
func (e *MismatchError) Is(target error) bool {
	return target == ErrIdentityMismatch
}
