package keystore

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
)

// Storage keys. The public key is kept in the clear so status queries do not
// need the password.
var (
	keyPublic   = []byte("wallet/pub")
	keyPrivate  = []byte("wallet/priv")
	keyMnemonic = []byte("wallet/mnemonic")
)

// DBStore keeps secrets in a storage.DB, encrypting the private key and
// mnemonic with a password.
type DBStore struct {
	db       storage.DB
	password []byte
	params   KDFParams
}

// NewDBStore creates a store backed by db. The password is copied.
func NewDBStore(db storage.DB, password []byte, params KDFParams) *DBStore {
	pw := make([]byte, len(password))
	copy(pw, password)
	return &DBStore{db: db, password: pw, params: params}
}

// GetPublicKey returns the stored public identifier.
func (s *DBStore) GetPublicKey() (string, error) {
	v, err := s.db.Get(keyPublic)
	if err != nil {
		return "", translate(err)
	}
	return string(v), nil
}

// GetPrivateKey decrypts and returns the stored private key.
func (s *DBStore) GetPrivateKey() (string, error) {
	return s.getSealed(keyPrivate)
}

// GetMnemonic decrypts and returns the stored recovery phrase.
func (s *DBStore) GetMnemonic() (string, error) {
	return s.getSealed(keyMnemonic)
}

func (s *DBStore) getSealed(key []byte) (string, error) {
	sealed, err := s.db.Get(key)
	if err != nil {
		return "", translate(err)
	}
	plain, err := Open(sealed, s.password)
	if err != nil {
		return "", fmt.Errorf("open %s (wrong password?): %w", key, err)
	}
	defer wipe(plain)
	return string(plain), nil
}

// SetWallet replaces all stored values in one batch.
func (s *DBStore) SetWallet(sec Secrets) error {
	priv, err := Seal([]byte(sec.PrivateKey), s.password, s.params)
	if err != nil {
		return fmt.Errorf("seal private key: %w", err)
	}
	mnemonic, err := Seal([]byte(sec.Mnemonic), s.password, s.params)
	if err != nil {
		return fmt.Errorf("seal mnemonic: %w", err)
	}

	b := storage.NewBatch(s.db)
	b.Put(keyPublic, []byte(sec.PublicKey))
	b.Put(keyPrivate, priv)
	b.Put(keyMnemonic, mnemonic)
	if err := b.Commit(); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	log.Storage.Debug().Str("address", sec.PublicKey).Msg("Wallet secrets stored")
	return nil
}

// RemoveWallet deletes all stored values in one batch.
func (s *DBStore) RemoveWallet() error {
	b := storage.NewBatch(s.db)
	b.Delete(keyPublic)
	b.Delete(keyPrivate)
	b.Delete(keyMnemonic)
	if err := b.Commit(); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	log.Storage.Debug().Msg("Wallet secrets removed")
	return nil
}

func translate(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
