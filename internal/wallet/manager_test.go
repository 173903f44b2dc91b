package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-wallet/internal/keystore"
	"github.com/Klingon-tech/klingnet-wallet/internal/log"
)

const abandonAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

func init() {
	log.Init("error", false, "")
}

// fakeStore records calls and can be told to fail.
type fakeStore struct {
	secrets   *keystore.Secrets
	setErr    error
	removeErr error
	getErr    error

	setCalls    int
	removeCalls int
}

func (f *fakeStore) GetPublicKey() (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	if f.secrets == nil {
		return "", keystore.ErrNotFound
	}
	return f.secrets.PublicKey, nil
}

func (f *fakeStore) GetPrivateKey() (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	if f.secrets == nil {
		return "", keystore.ErrNotFound
	}
	return f.secrets.PrivateKey, nil
}

func (f *fakeStore) SetWallet(s keystore.Secrets) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.secrets = &s
	return nil
}

func (f *fakeStore) RemoveWallet() error {
	f.removeCalls++
	if f.removeErr != nil {
		return f.removeErr
	}
	f.secrets = nil
	return nil
}

func TestGenerate(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)

	id, err := m.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(strings.Fields(id.Mnemonic())) != 12 {
		t.Errorf("Mnemonic() = %q, want 12 words", id.Mnemonic())
	}
	if store.secrets == nil {
		t.Fatal("Generate() did not persist")
	}
	if store.secrets.PublicKey != strings.ToLower(id.Address().Hex()) {
		t.Errorf("stored public key = %q, want lower-cased %s", store.secrets.PublicKey, id.Address().Hex())
	}
	if store.secrets.PrivateKey != strings.ToLower(store.secrets.PrivateKey) {
		t.Error("stored private key is not lower-cased")
	}

	again, err := IdentityFromMnemonic(store.secrets.Mnemonic)
	if err != nil {
		t.Fatalf("IdentityFromMnemonic() error: %v", err)
	}
	if again.Address() != id.Address() {
		t.Error("stored mnemonic does not derive the generated address")
	}
}

func TestGenerate_StorageFailure(t *testing.T) {
	store := &fakeStore{setErr: errors.New("disk full")}
	id, err := NewManager(store).Generate(context.Background())
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("Generate() error = %v, want ErrStorage", err)
	}
	if id != nil {
		t.Error("Generate() returned an identity despite storage failure")
	}
}

func TestRestore_CaseInsensitive(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)

	id, err := m.Restore(context.Background(), strings.Fields(abandonPhrase), strings.ToLower(abandonAddress))
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if id.Address().Hex() != abandonAddress {
		t.Errorf("Address() = %s, want %s", id.Address().Hex(), abandonAddress)
	}
	if id.Mnemonic() != "" {
		t.Error("restored identity should not expose its mnemonic")
	}
	if store.setCalls != 1 || store.removeCalls != 0 {
		t.Errorf("setCalls = %d removeCalls = %d, want 1 and 0", store.setCalls, store.removeCalls)
	}
}

func TestRestore_Mismatch(t *testing.T) {
	store := &fakeStore{secrets: &keystore.Secrets{PublicKey: "0xold"}}
	m := NewManager(store)

	expected := "0x0000000000000000000000000000000000000001"
	_, err := m.Restore(context.Background(), strings.Fields(abandonPhrase), expected)

	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("Restore() error = %v, want ErrIdentityMismatch", err)
	}
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Restore() error %T is not *MismatchError", err)
	}
	if mismatch.Derived != abandonAddress || mismatch.Expected != expected {
		t.Errorf("MismatchError = %+v", mismatch)
	}
	if store.removeCalls != 1 {
		t.Errorf("removeCalls = %d, want 1", store.removeCalls)
	}
	if store.setCalls != 0 {
		t.Errorf("setCalls = %d, want 0", store.setCalls)
	}
}

func TestRestore_MismatchRemoveFails(t *testing.T) {
	store := &fakeStore{removeErr: errors.New("locked")}
	_, err := NewManager(store).Restore(context.Background(), strings.Fields(abandonPhrase), "0xdead")

	if !errors.Is(err, ErrIdentityMismatch) || !errors.Is(err, ErrStorage) {
		t.Fatalf("Restore() error = %v, want both ErrIdentityMismatch and ErrStorage", err)
	}
	if store.removeCalls != 1 {
		t.Errorf("removeCalls = %d, want 1", store.removeCalls)
	}
}

func TestRestore_InvalidWords(t *testing.T) {
	store := &fakeStore{}
	_, err := NewManager(store).Restore(context.Background(), []string{"abandon", ""}, abandonAddress)
	if !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("Restore() error = %v, want ErrInvalidMnemonic", err)
	}
	if store.setCalls+store.removeCalls != 0 {
		t.Error("invalid words must not touch storage")
	}
}

func TestLoad_FromPrivateKey(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)
	if _, err := m.Restore(context.Background(), strings.Fields(abandonPhrase), abandonAddress); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	id, err := m.Load(context.Background(), FromPrivateKey, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if id.Address().Hex() != abandonAddress {
		t.Errorf("Address() = %s, want %s", id.Address().Hex(), abandonAddress)
	}
	if store.setCalls != 1 {
		t.Errorf("Load(FromPrivateKey) wrote to storage: setCalls = %d", store.setCalls)
	}
}

func TestLoad_NoStoredKey(t *testing.T) {
	_, err := NewManager(&fakeStore{}).Load(context.Background(), FromPrivateKey, nil)
	if !errors.Is(err, ErrNoStoredKey) {
		t.Fatalf("Load() error = %v, want ErrNoStoredKey", err)
	}
}

func TestLoad_StorageReadFailure(t *testing.T) {
	_, err := NewManager(&fakeStore{getErr: errors.New("io")}).Load(context.Background(), FromPrivateKey, nil)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("Load() error = %v, want ErrStorage", err)
	}
}

func TestLoad_FromMnemonic(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)

	if _, err := m.Load(context.Background(), FromMnemonic, nil); !errors.Is(err, ErrMissingMnemonic) {
		t.Fatalf("Load() without words error = %v, want ErrMissingMnemonic", err)
	}

	id, err := m.Load(context.Background(), FromMnemonic, strings.Fields(abandonPhrase))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if id.Address().Hex() != abandonAddress {
		t.Errorf("Address() = %s, want %s", id.Address().Hex(), abandonAddress)
	}
	if store.setCalls != 1 {
		t.Errorf("setCalls = %d, want 1", store.setCalls)
	}
}

func TestRemove(t *testing.T) {
	store := &fakeStore{secrets: &keystore.Secrets{PublicKey: "0xabc"}}
	if err := NewManager(store).Remove(context.Background()); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if store.secrets != nil {
		t.Error("secrets still present after Remove()")
	}

	failing := &fakeStore{removeErr: errors.New("denied")}
	if err := NewManager(failing).Remove(context.Background()); !errors.Is(err, ErrStorage) {
		t.Fatalf("Remove() error = %v, want ErrStorage", err)
	}
}

func TestIdentityFromPrivateKey(t *testing.T) {
	id, err := IdentityFromPrivateKey("0x0000000000000000000000000000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("IdentityFromPrivateKey() error: %v", err)
	}
	if got := id.Address().Hex(); got != "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf" {
		t.Errorf("Address() = %s", got)
	}
	if _, err := IdentityFromPrivateKey("zz"); err == nil {
		t.Error("IdentityFromPrivateKey(zz) should fail")
	}
}
