package node

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/config"
	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/network"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	klog.Init("error", false, "")
	cfg := config.Default(config.Dev)
	cfg.DataDir = t.TempDir()
	cfg.RPC.Port = 0
	cfg.Keystore.Password = "pw"
	return cfg
}

// recordDial returns clients with no backend and records dialed URLs.
func recordDial(urls *[]string) DialFunc {
	return func(_ context.Context, url string, opts network.Options) (*network.Client, error) {
		*urls = append(*urls, url)
		return network.NewClient(nil, opts), nil
	}
}

func TestNew_RequiresPassword(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keystore.Password = ""
	if _, err := newNode(cfg, recordDial(new([]string)), false); !errors.Is(err, ErrNoPassword) {
		t.Fatalf("err = %v, want ErrNoPassword", err)
	}
}

func TestNode_StartStop_NoStoredWallet(t *testing.T) {
	cfg := testConfig(t)
	var urls []string
	n, err := newNode(cfg, recordDial(&urls), false)
	if err != nil {
		t.Fatalf("newNode: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The startup load fails on the missing key before any dial.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if rec, _ := n.Engine().Operation(engine.KindInit); rec.State == engine.StateFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("init operation did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(urls) != 0 {
		t.Errorf("dialed %v without a wallet", urls)
	}

	resp, err := http.Get("http://" + n.RPCAddr() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}

	n.Stop()
}

func TestNode_RPCDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false
	n, err := newNode(cfg, recordDial(new([]string)), false)
	if err != nil {
		t.Fatalf("newNode: %v", err)
	}
	if n.RPCAddr() != "" {
		t.Errorf("RPCAddr = %q, want empty", n.RPCAddr())
	}
	n.Stop()
}

func TestChains_ProfileSelectionAndCache(t *testing.T) {
	cfg := testConfig(t)
	var urls []string
	c := newChains(cfg, recordDial(&urls))
	defer c.close()

	dev, err := c.provide(context.Background(), engine.Options{})
	if err != nil {
		t.Fatalf("provide: %v", err)
	}
	if dev.Name != "dev" {
		t.Errorf("name = %s", dev.Name)
	}
	if len(dev.Assets) != 2 || !dev.Assets[0].IsNative() {
		t.Errorf("assets = %+v", dev.Assets)
	}

	again, _ := c.provide(context.Background(), engine.Options{})
	if again.Net != dev.Net {
		t.Error("client not cached per profile")
	}

	test, err := c.provide(context.Background(), engine.Options{Testnet: true})
	if err != nil {
		t.Fatalf("provide testnet: %v", err)
	}
	if test.Name != "testnet" {
		t.Errorf("name = %s", test.Name)
	}

	want := []string{cfg.Chain.DevURL, cfg.Chain.TestnetURL}
	if len(urls) != 2 || urls[0] != want[0] || urls[1] != want[1] {
		t.Errorf("dialed %v, want %v", urls, want)
	}
}

func TestChains_DialError(t *testing.T) {
	cfg := testConfig(t)
	boom := errors.New("refused")
	c := newChains(cfg, func(context.Context, string, network.Options) (*network.Client, error) {
		return nil, boom
	})
	if _, err := c.provide(context.Background(), engine.Options{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(c.clients) != 0 {
		t.Error("failed dial was cached")
	}
}
