package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/levyledger/levyd/internal/codec/addresscodec"
	"github.com/levyledger/levyd/internal/config"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/types"
)

func acct(n byte) types.AccountID {
	var id types.AccountID
	id[types.AccountIDSize-1] = n
	return id
}

var (
	testOwner    = acct(1)
	testTreasury = acct(2)
)

// testConfig returns a runnable configuration with every server disabled.
// Tests flip on the surfaces they need.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Node:  config.NodeConfig{Name: "node-test", DataDir: t.TempDir()},
		Log:   config.LogConfig{Level: "error", Format: "console", Output: "stderr"},
		State: config.StateConfig{Backend: "memory"},
		Genesis: config.GenesisConfig{
			NativeAsset:    "LVY",
			SecondaryAsset: "USDX",
			InitialSupply:  1_000_000,
			Owner:          addresscodec.EncodeAccountID(testOwner),
			Treasury:       addresscodec.EncodeAccountID(testTreasury),
			Rates:          map[string]uint32{"transfer": 1000},
		},
	}
}

func TestNewBootstrapsGenesis(t *testing.T) {
	n, err := New(testConfig(t), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Provider().Close() })

	store, err := n.Provider().Ledger()
	require.NoError(t, err)

	require.Equal(t, uint64(1_000_000), store.BalanceOf("LVY", testOwner).Uint64())
	require.Equal(t, testOwner, store.Params().Owner)
	require.True(t, store.IsExempt(testOwner))
	require.True(t, store.IsExempt(testTreasury))
	require.Equal(t, uint32(1000), store.Category(types.CategoryTransfer).RateBps)
}

func TestNewFailsWithoutGenesisOnFreshStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Genesis = config.GenesisConfig{}

	_, err := New(cfg, "test")
	require.ErrorIs(t, err, ledger.ErrNoGenesis)
}

func TestNewRejectsBadGenesisAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.Genesis.Owner = "not-an-address"

	_, err := New(cfg, "test")
	require.Error(t, err)
	require.Contains(t, err.Error(), "owner")
}

func TestEngineWiringDeliversTaxToTreasury(t *testing.T) {
	n, err := New(testConfig(t), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Provider().Close() })

	p := n.Provider()
	engine, err := p.Engine()
	require.NoError(t, err)
	store, err := p.Ledger()
	require.NoError(t, err)
	bus, err := p.Bus()
	require.NoError(t, err)

	sub := bus.Subscribe(8, events.StreamSettlements)
	defer sub.Close()

	// The owner is exempt, so seed a taxable account first.
	sender, receiver := acct(10), acct(11)
	rec, err := engine.ApplyTransfer(context.Background(), testOwner, testOwner, sender, 10_000)
	require.NoError(t, err)
	require.True(t, rec.Result.IsSuccess())
	require.False(t, rec.Taxed)

	rec, err = engine.ApplyTransfer(context.Background(), sender, sender, receiver, 1000)
	require.NoError(t, err)
	require.True(t, rec.Taxed)
	require.Equal(t, uint64(100), rec.Tax.Uint64())

	require.Equal(t, uint64(900), store.BalanceOf("LVY", receiver).Uint64())
	require.Equal(t, uint64(100), store.TreasuryBalance().Uint64())

	// Both settlements reach the bus the servers fan out from.
	for i := 0; i < 2; i++ {
		select {
		case <-sub.C():
		case <-time.After(2 * time.Second):
			t.Fatal("settlement event not published")
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stream = config.StreamConfig{Enabled: true, Listen: "127.0.0.1:0"}

	n, err := New(cfg, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	require.Eventually(t, func() bool {
		srv, err := n.Provider().StreamServer()
		return err == nil && srv != nil && srv.Addr() != ""
	}, 5*time.Second, 10*time.Millisecond, "stream server never started listening")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop after context cancel")
	}
}

func TestStartTwiceFails(t *testing.T) {
	n, err := New(testConfig(t), "test")
	require.NoError(t, err)

	require.NoError(t, n.Start())
	require.Error(t, n.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Stop(ctx))
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	n, err := New(testConfig(t), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Provider().Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, n.Stop(ctx))
}

func TestStartRejectsBrokenAdapterConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Exchange = config.ExchangeConfig{
		Adapter:   "fixedrate",
		FixedRate: config.FixedRateConfig{RateNum: 0, RateDen: 1},
	}

	n, err := New(cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Provider().Close() })

	require.Error(t, n.Start())
}

func TestStartRejectsUnknownAdapter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Exchange.Adapter = "teleporter"

	n, err := New(cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Provider().Close() })

	err = n.Start()
	require.Error(t, err)
	require.Contains(t, err.Error(), "teleporter")
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	cfg.State = config.StateConfig{Backend: "pebble"}

	n, err := New(cfg, "test")
	require.NoError(t, err)

	engine, err := n.Provider().Engine()
	require.NoError(t, err)
	rec, err := engine.ApplyTransfer(context.Background(), testOwner, testOwner, acct(10), 5000)
	require.NoError(t, err)
	require.True(t, rec.Result.IsSuccess())
	require.NoError(t, n.Provider().Close())

	// Same data dir, fresh process: the ledger loads instead of
	// bootstrapping a second genesis.
	n2, err := New(cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = n2.Provider().Close() })

	store, err := n2.Provider().Ledger()
	require.NoError(t, err)
	require.Equal(t, uint64(5000), store.BalanceOf("LVY", acct(10)).Uint64())
	require.Equal(t, uint64(995_000), store.BalanceOf("LVY", testOwner).Uint64())
	require.Equal(t, uint64(1), store.Params().Seq)
}
