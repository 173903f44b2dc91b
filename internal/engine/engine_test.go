package engine

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/gas"
	"github.com/Klingon-tech/klingnet-wallet/internal/keystore"
	"github.com/Klingon-tech/klingnet-wallet/internal/ledger"
	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/network"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/internal/transfer"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init("error", false, "")
}

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testAddress  = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

var (
	oneEther  = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	recipient = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	daiSpec   = types.AssetSpec{Type: "DAI", Contract: common.HexToAddress("0xad6d458402f60fd3bd25163575031acdce07538d")}
)

func ether(n int64) *big.Int { return new(big.Int).Mul(oneEther, big.NewInt(n)) }

// chainNet is an in-memory network.Network.
type chainNet struct {
	mu       sync.Mutex
	native   *big.Int
	token    *big.Int
	status   uint64
	release  chan struct{}
	waiting  chan struct{}
	nextSub  network.Subscription
	subs     map[network.Subscription]network.TransferFunc
	unsubbed []network.Subscription
}

func newChainNet() *chainNet {
	return &chainNet{
		native: ether(10),
		token:  ether(10),
		status: ethtypes.ReceiptStatusSuccessful,
		subs:   make(map[network.Subscription]network.TransferFunc),
	}
}

func (n *chainNet) Balance(context.Context, common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return new(big.Int).Set(n.native), nil
}
func (n *chainNet) NetworkID(context.Context) (*big.Int, error) { return big.NewInt(1337), nil }
// EstimateGas rejects overdrafts like a node: a value above the balance
// fails and a token transfer above the balance reverts.
func (n *chainNet) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if msg.Value != nil && msg.Value.Cmp(n.native) > 0 {
		return 0, errors.New("insufficient funds for transfer")
	}
	if len(msg.Data) >= 32 && new(big.Int).SetBytes(msg.Data[len(msg.Data)-32:]).Cmp(n.token) > 0 {
		return 0, errors.New("execution reverted")
	}
	return 21000, nil
}

// hold makes the next confirmation wait until the returned release is
// closed. waiting is closed once the send is parked.
func (n *chainNet) hold(status uint64) (waiting, release chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
	n.release = make(chan struct{})
	n.waiting = make(chan struct{})
	return n.waiting, n.release
}
func (n *chainNet) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (n *chainNet) PendingNonce(context.Context, common.Address) (uint64, error) { return 0, nil }
func (n *chainNet) Submit(_ context.Context, tx *ethtypes.Transaction) (common.Hash, error) {
	return tx.Hash(), nil
}

func (n *chainNet) WaitForConfirmation(ctx context.Context, _ common.Hash) (*ethtypes.Receipt, error) {
	n.mu.Lock()
	release, waiting, status := n.release, n.waiting, n.status
	n.mu.Unlock()
	if release != nil {
		close(waiting)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &ethtypes.Receipt{Status: status}, nil
}

func (n *chainNet) SubscribeTransfers(_ common.Address, _ []types.AssetSpec, fn network.TransferFunc) (network.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextSub++
	n.subs[n.nextSub] = fn
	return n.nextSub, nil
}

func (n *chainNet) Unsubscribe(sub network.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, sub)
	n.unsubbed = append(n.unsubbed, sub)
	return nil
}

func (n *chainNet) TokenDecimals(context.Context, common.Address) (uint8, error) { return 18, nil }
func (n *chainNet) TokenBalance(context.Context, common.Address, common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return new(big.Int).Set(n.token), nil
}

func (n *chainNet) active() []network.TransferFunc {
	n.mu.Lock()
	defer n.mu.Unlock()
	var fns []network.TransferFunc
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	return fns
}

// failingRemove makes RemoveWallet fail while keeping reads working.
type failingRemove struct {
	keystore.Store
	calls int
}

func (f *failingRemove) RemoveWallet() error {
	f.calls++
	return errors.New("disk full")
}

type harness struct {
	engine *Engine
	net    *chainNet
	store  *keystore.DBStore
	reg    *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := keystore.NewDBStore(storage.NewMemory(), []byte("pw"), keystore.KDFParams{Memory: 1024, Iterations: 1, Parallelism: 1})
	return newHarnessWithStore(t, store, store)
}

func newHarnessWithStore(t *testing.T, db *keystore.DBStore, store keystore.Store) *harness {
	t.Helper()
	net := newChainNet()
	reg := prometheus.NewRegistry()
	e := New(Config{
		Identities: wallet.NewManager(store),
		Provider: func(context.Context, Options) (*Chain, error) {
			return &Chain{Name: "dev", Net: net, Assets: []types.AssetSpec{types.NativeSpec(), daiSpec}}, nil
		},
		Metrics: NewMetrics(reg),
	})
	t.Cleanup(e.Close)
	return &harness{engine: e, net: net, store: db, reg: reg}
}

func balances(e *Engine) map[types.AssetType][2]string {
	out := make(map[types.AssetType][2]string)
	for _, a := range e.Snapshot() {
		out[a.Type] = [2]string{a.Balance.String(), a.DisplayBalance.String()}
	}
	return out
}

func TestInitWallet_NoStoredKey(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.InitWallet(context.Background())
	require.ErrorIs(t, err, wallet.ErrNoStoredKey)

	rec, ok := h.engine.Operation(KindInit)
	require.True(t, ok)
	assert.Equal(t, StateFailed, rec.State)
	assert.NotEmpty(t, rec.Err)
	assert.Empty(t, h.engine.Snapshot())
	assert.False(t, h.engine.Loading())
}

func TestCreateThenInit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)
	assert.Len(t, strings.Fields(info.Mnemonic), 12)
	assert.Equal(t, "dev", info.Network)
	assert.Equal(t, map[types.AssetType][2]string{
		types.NativeAsset: {"10", "10"},
		"DAI":             {"10", "10"},
	}, balances(h.engine))

	rec, _ := h.engine.Operation(KindCreate)
	assert.Equal(t, StateSucceeded, rec.State)
	stored, ok := rec.Payload.(*WalletInfo)
	require.True(t, ok)
	assert.Empty(t, stored.Mnemonic)

	again, err := h.engine.InitWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, info.Address, again.Address)
	assert.Empty(t, again.Mnemonic)
	assert.Len(t, h.net.active(), 1)
}

func TestRestoreWallet(t *testing.T) {
	h := newHarness(t)

	info, err := h.engine.RestoreWallet(context.Background(), strings.Fields(testMnemonic), strings.ToLower(testAddress), Options{})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), info.Address)

	addr, ok := h.engine.Address()
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(testAddress), addr)
}

func TestRestoreWallet_MismatchPurgesStoreKeepsLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)
	before := balances(h.engine)

	_, err = h.engine.RestoreWallet(ctx, strings.Fields(testMnemonic), recipient.Hex(), Options{})
	require.ErrorIs(t, err, wallet.ErrIdentityMismatch)

	_, err = h.store.GetPrivateKey()
	assert.ErrorIs(t, err, keystore.ErrNotFound)
	assert.Equal(t, before, balances(h.engine))
	addr, _ := h.engine.Address()
	assert.Equal(t, created.Address, addr)
}

func TestSendAsset_ConfirmedAndReverted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)

	res, err := h.engine.SendAsset(ctx, recipient, decimal.NewFromInt(1), types.NativeAsset)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", res.Outcome)
	assert.Equal(t, [2]string{"9", "9"}, balances(h.engine)[types.NativeAsset])

	h.net.mu.Lock()
	h.net.status = ethtypes.ReceiptStatusFailed
	h.net.mu.Unlock()

	res, err = h.engine.SendAsset(ctx, recipient, decimal.NewFromInt(2), "DAI")
	require.ErrorIs(t, err, transfer.ErrReverted)
	assert.NotEqual(t, common.Hash{}, res.Hash)
	assert.Equal(t, [2]string{"10", "10"}, balances(h.engine)["DAI"])

	rec, _ := h.engine.Operation(KindSend)
	assert.Equal(t, StateFailed, rec.State)
}

func TestSendAsset_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.SendAsset(ctx, recipient, decimal.NewFromInt(1), types.NativeAsset)
	require.ErrorIs(t, err, ErrNoWallet)

	_, err = h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)

	_, err = h.engine.SendAsset(ctx, recipient, decimal.Zero, types.NativeAsset)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.engine.SendAsset(ctx, recipient, decimal.NewFromInt(1), "USDC")
	require.ErrorIs(t, err, ledger.ErrUnknownAsset)

	assert.Equal(t, [2]string{"10", "10"}, balances(h.engine)[types.NativeAsset])
}

func TestSendAsset_InsufficientFundsLeavesBalances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)

	for _, asset := range []types.AssetType{types.NativeAsset, "DAI"} {
		_, err = h.engine.SendAsset(ctx, recipient, decimal.NewFromInt(11), asset)
		require.ErrorIs(t, err, gas.ErrInsufficientFunds, asset)
		assert.Equal(t, [2]string{"10", "10"}, balances(h.engine)[asset])
	}
}

func TestSendAsset_SettledAfterWalletReplaced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)

	waiting, release := h.net.hold(ethtypes.ReceiptStatusFailed)
	done := make(chan error, 1)
	go func() {
		_, err := h.engine.SendAsset(ctx, recipient, decimal.NewFromInt(3), types.NativeAsset)
		done <- err
	}()
	<-waiting
	assert.Equal(t, [2]string{"10", "7"}, balances(h.engine)[types.NativeAsset])

	require.NoError(t, h.engine.RemoveWallet(ctx))
	_, err = h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)
	before := balances(h.engine)
	assert.Equal(t, [2]string{"10", "10"}, before[types.NativeAsset])

	close(release)
	require.ErrorIs(t, <-done, transfer.ErrReverted)
	assert.Equal(t, before, balances(h.engine))

	_, err = h.engine.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, balances(h.engine))
}

func TestCreateSendRevertedRemove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)

	h.net.mu.Lock()
	h.net.status = ethtypes.ReceiptStatusFailed
	h.net.mu.Unlock()
	_, err = h.engine.SendAsset(ctx, recipient, decimal.NewFromInt(1), types.NativeAsset)
	require.ErrorIs(t, err, transfer.ErrReverted)

	require.NoError(t, h.engine.RemoveWallet(ctx))
	assert.Empty(t, h.engine.Snapshot())

	_, err = h.store.GetPublicKey()
	assert.ErrorIs(t, err, keystore.ErrNotFound)
	_, err = h.store.GetPrivateKey()
	assert.ErrorIs(t, err, keystore.ErrNotFound)
}

func TestRefresh_KeepsPendingDebit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)

	waiting, release := h.net.hold(ethtypes.ReceiptStatusSuccessful)

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.SendAsset(ctx, recipient, decimal.NewFromInt(1), types.NativeAsset)
		done <- err
	}()
	<-waiting
	assert.Equal(t, [2]string{"10", "9"}, balances(h.engine)[types.NativeAsset])

	h.net.mu.Lock()
	h.net.native = ether(20)
	h.net.mu.Unlock()
	_, err = h.engine.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, [2]string{"20", "19"}, balances(h.engine)[types.NativeAsset])

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, [2]string{"19", "19"}, balances(h.engine)[types.NativeAsset])
}

func TestIncomingTransferCreditsOnce(t *testing.T) {
	h := newHarness(t)
	info, err := h.engine.CreateWallet(context.Background(), Options{})
	require.NoError(t, err)

	fns := h.net.active()
	require.Len(t, fns, 1)
	tr := network.Transfer{
		TxHash:   common.HexToHash("0x01"),
		Asset:    "DAI",
		Contract: daiSpec.Contract,
		To:       info.Address,
		Amount:   ether(5),
	}
	fns[0](tr)
	fns[0](tr)

	assert.Equal(t, [2]string{"15", "15"}, balances(h.engine)["DAI"])
	assert.Equal(t, 1.0, testutil.ToFloat64(h.engine.metrics.notifications.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.engine.metrics.notifications.WithLabelValues("rejected")))
}

func TestActivateReplacesSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)
	_, err = h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)

	assert.Len(t, h.net.active(), 1)
	assert.Equal(t, []network.Subscription{1}, h.net.unsubbed)
}

func TestRemoveWallet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)

	require.NoError(t, h.engine.RemoveWallet(ctx))
	assert.Empty(t, h.engine.Snapshot())
	assert.Empty(t, h.net.active())
	_, ok := h.engine.Address()
	assert.False(t, ok)

	_, err = h.engine.InitWallet(ctx)
	require.ErrorIs(t, err, wallet.ErrNoStoredKey)
}

func TestRemoveWallet_StorageFailureKeepsWallet(t *testing.T) {
	db := keystore.NewDBStore(storage.NewMemory(), []byte("pw"), keystore.KDFParams{Memory: 1024, Iterations: 1, Parallelism: 1})
	store := &failingRemove{Store: db}
	h := newHarnessWithStore(t, db, store)
	ctx := context.Background()

	created, err := h.engine.CreateWallet(ctx, Options{})
	require.NoError(t, err)
	before := balances(h.engine)

	err = h.engine.RemoveWallet(ctx)
	require.ErrorIs(t, err, wallet.ErrStorage)
	assert.Equal(t, 1, store.calls)
	pub, err := h.store.GetPublicKey()
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(created.Address.Hex(), pub), "stored %s, created %s", pub, created.Address.Hex())
	addr, ok := h.engine.Address()
	require.True(t, ok)
	assert.Equal(t, created.Address, addr)
	assert.Equal(t, before, balances(h.engine))
	assert.Len(t, h.net.active(), 1)

	rec, _ := h.engine.Operation(KindRemove)
	assert.Equal(t, StateFailed, rec.State)
}

func TestLoadingOnlyDuringLifecycle(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	entered := make(chan struct{})
	net := h.net
	h.engine.cfg.Provider = func(context.Context, Options) (*Chain, error) {
		close(entered)
		<-gate
		return &Chain{Name: "dev", Net: net, Assets: []types.AssetSpec{types.NativeSpec()}}, nil
	}

	assert.False(t, h.engine.Loading())
	done := make(chan error, 1)
	go func() {
		_, err := h.engine.CreateWallet(context.Background(), Options{})
		done <- err
	}()

	<-entered
	assert.True(t, h.engine.Loading())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.engine.metrics.loading))

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, h.engine.Loading())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.engine.metrics.loading))
}

func TestEvents(t *testing.T) {
	h := newHarness(t)
	events, cancel := h.engine.Subscribe(64)
	defer cancel()

	_, err := h.engine.CreateWallet(context.Background(), Options{})
	require.NoError(t, err)

	var phases []Phase
	var loaded int
	timeout := time.After(time.Second)
	for len(phases) < 2 {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *OperationEvent:
				assert.Equal(t, KindCreate, ev.Kind)
				phases = append(phases, ev.Phase)
			case *LedgerEvent:
				if ev.Change.Transition == ledger.WalletLoaded {
					loaded++
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []Phase{PhaseStart, PhaseSuccess}, phases)
	assert.Positive(t, loaded)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.engine.metrics.operations.WithLabelValues("create", "success")))
}

func TestSlowSubscriberCountsDrops(t *testing.T) {
	h := newHarness(t)
	_, cancel := h.engine.Subscribe(1)
	defer cancel()

	_, err := h.engine.CreateWallet(context.Background(), Options{})
	require.NoError(t, err)

	// The unread buffer holds one event; the rest of create's events drop.
	assert.Positive(t, testutil.ToFloat64(h.engine.metrics.dropped))
}
