// Package testing provides the in-memory test environment for levyd.
//
// Env wires a memory-backed ledger, the levy engine, the treasury engine
// and a fixed-rate exchange adapter into one node that lives inside a
// single test. Accounts derive deterministically from their names, the
// clock is manual and distribution cycle IDs count up from one, so every
// run of a test reproduces exactly.
//
// # Basic Usage
//
//	func TestTaxedTransfer(t *testing.T) {
//	    env := testing.NewEnv(t)
//
//	    alice := env.Account("alice")
//	    bob := env.Account("bob")
//	    env.Fund(alice, bob)
//
//	    rcpt := env.Transfer(alice, bob, 10_000)
//	    testing.RequireSettled(t, rcpt)
//	    testing.RequireBalance(t, env, bob, testing.DefaultFunding+rcpt.Net)
//	}
//
// # Environment
//
// NewEnv builds the node with the LVY/USDX asset pair, the default tax
// rates and a 1:1 adapter. Options reshape the genesis and the adapter:
//
//	env := testing.NewEnv(t,
//	    testing.WithRates(map[types.Category]uint32{types.CategorySell: 1000}),
//	    testing.WithThreshold(50_000),
//	    testing.WithExchangeRate(9, 10),
//	)
//
// The owner and treasury identities derive from the names "owner" and
// "treasury"; the owner holds the genesis supply, so Fund moves value out
// of it untaxed.
//
// # Accounts
//
// Account keypairs come from the SHA-512 digest of the account name.
// Using the same name always produces the same account, making tests
// reproducible:
//
//	alice := env.Account("alice")     // registered with the environment
//	loner := testing.NewAccount("x")  // standalone identity
//
// # Administration
//
// The environment signs administrative calls as the owner and fails the
// test if they do not succeed:
//
//	env.SetRate(types.CategoryTransfer, 500)
//	env.MarkMarket(dex)
//	env.ConfigurePlan(types.CategorySell,
//	    testing.PlanEntry{Payee: fund, Percent: 60},
//	    testing.PlanEntry{Payee: desk, Asset: testing.SecondaryAsset, Percent: 40},
//	)
//
// # Assertions
//
// Helper functions for the usual checks:
//
//	testing.RequireBalance(t, env, alice, 990_000)
//	testing.RequireAccrued(t, env, types.CategorySell, 1_000)
//	testing.RequireSettled(t, rcpt)
//	testing.RequireRejected(t, rcpt, levy.Denied)
//
// # Clock Control
//
// The environment's ManualClock feeds both engines and the adapter:
//
//	env.Advance(10 * time.Second)
//	env.Clock.Set(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
//	env.Now()
package testing
