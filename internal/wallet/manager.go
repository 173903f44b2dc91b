package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingnet-wallet/internal/keystore"
	"github.com/Klingon-tech/klingnet-wallet/internal/log"
)

// LoadKind selects where Load reads the identity from.
type LoadKind int

const (
	// FromPrivateKey reads the stored private key. Nothing is written.
	FromPrivateKey LoadKind = iota
	// FromMnemonic derives from caller-supplied words and persists the result.
	FromMnemonic
)

func (k LoadKind) String() string {
	switch k {
	case FromPrivateKey:
		return "private-key"
	case FromMnemonic:
		return "mnemonic"
	default:
		return fmt.Sprintf("LoadKind(%d)", int(k))
	}
}

// Manager derives identities and persists them through a keystore.Store.
type Manager struct {
	store keystore.Store
}

// NewManager creates a manager over store.
func NewManager(store keystore.Store) *Manager {
	return &Manager{store: store}
}

// Generate creates a fresh 12-word identity and persists it. Nothing is
// returned if persistence fails.
func (m *Manager) Generate(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	phrase, err := GenerateMnemonic()
	if err != nil {
		return nil, err
	}
	id, err := IdentityFromMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	if err := m.persist(id, phrase); err != nil {
		return nil, err
	}
	id.mnemonic = phrase

	log.Wallet.Info().Str("address", id.Address().Hex()).Msg("Generated new identity")
	return id, nil
}

// Restore derives an identity from words and checks it against expected,
// ignoring case. On mismatch the stored wallet is removed once and a
// *MismatchError is returned.
func (m *Manager) Restore(ctx context.Context, words []string, expected string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	phrase, err := JoinWords(words)
	if err != nil {
		return nil, err
	}
	id, err := IdentityFromMnemonic(phrase)
	if err != nil {
		return nil, err
	}

	derived := id.Address().Hex()
	expected = strings.TrimSpace(expected)
	if !strings.EqualFold(derived, expected) {
		mismatch := &MismatchError{Derived: derived, Expected: expected}
		log.Wallet.Warn().
			Str("derived", derived).
			Str("expected", expected).
			Msg("Restored identity does not match, purging stored wallet")
		if err := m.store.RemoveWallet(); err != nil {
			return nil, errors.Join(mismatch, fmt.Errorf("%w: %v", ErrStorage, err))
		}
		return nil, mismatch
	}

	if err := m.persist(id, phrase); err != nil {
		return nil, err
	}
	log.Wallet.Info().Str("address", derived).Msg("Restored identity")
	return id, nil
}

// Load reads or derives the identity according to kind.
func (m *Manager) Load(ctx context.Context, kind LoadKind, words []string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch kind {
	case FromPrivateKey:
		return m.loadPrivateKey()
	case FromMnemonic:
		if len(words) == 0 {
			return nil, ErrMissingMnemonic
		}
		phrase, err := JoinWords(words)
		if err != nil {
			return nil, err
		}
		id, err := IdentityFromMnemonic(phrase)
		if err != nil {
			return nil, err
		}
		if err := m.persist(id, phrase); err != nil {
			return nil, err
		}
		return id, nil
	default:
		return nil, fmt.Errorf("unknown load kind %s", kind)
	}
}

func (m *Manager) loadPrivateKey() (*Identity, error) {
	priv, err := m.store.GetPrivateKey()
	if errors.Is(err, keystore.ErrNotFound) || (err == nil && priv == "") {
		return nil, ErrNoStoredKey
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read private key: %v", ErrStorage, err)
	}
	id, err := IdentityFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: stored private key unusable: %v", ErrStorage, err)
	}
	log.Wallet.Debug().Str("address", id.Address().Hex()).Msg("Loaded identity from stored key")
	return id, nil
}

// Remove deletes all stored identity values.
func (m *Manager) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.store.RemoveWallet(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	log.Wallet.Info().Msg("Removed identity")
	return nil
}

func (m *Manager) persist(id *Identity, phrase string) error {
	if err := m.store.SetWallet(id.secrets(phrase)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
