package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/levyledger/levyd/internal/core/levy"
	levydTesting "github.com/levyledger/levyd/internal/testing"
)

// TestFreezeBlocksEveryone checks the global freeze and that it wins over
// the other admission checks.
func TestFreezeBlocksEveryone(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")
	bob := env.Account("bob")
	env.Fund(alice, bob)
	env.Freeze(true)

	levydTesting.RequireRejected(t, env.Transfer(alice, bob, 1_000), levy.Frozen)

	// Freeze is reported even when the transfer would have failed anyway
	broke := env.Account("broke")
	levydTesting.RequireRejected(t, env.Transfer(broke, bob, 1_000), levy.Frozen)

	env.Freeze(false)
	levydTesting.RequireSettled(t, env.Transfer(alice, bob, 1_000))
}

// TestFreezeSparesExemptParties checks that a transfer touching an exempt
// account still settles under freeze.
func TestFreezeSparesExemptParties(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")
	env.Fund(alice)
	env.Freeze(true)

	// The owner is exempt, so funding keeps working
	bob := env.Account("bob")
	env.Fund(bob)

	// An exempt receiver unblocks a regular sender
	rcpt := env.Transfer(alice, env.Owner, 1_000)
	levydTesting.RequireSettled(t, rcpt)
	assert.False(t, rcpt.Taxed)
}

// TestInsufficientBalance checks the balance guard, including the exact
// boundary.
func TestInsufficientBalance(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")
	bob := env.Account("bob")
	env.FundAmount(alice, 1_000)

	levydTesting.RequireRejected(t, env.Transfer(alice, bob, 1_001), levy.InsufficientBalance)
	levydTesting.RequireBalance(t, env, alice, 1_000)
	levydTesting.RequireBalance(t, env, bob, 0)

	// Spending the whole balance is fine
	levydTesting.RequireSettled(t, env.Transfer(alice, bob, 1_000))
	levydTesting.RequireBalance(t, env, alice, 0)
}

// TestZeroAmountRejected checks that zero-value transfers never settle.
func TestZeroAmountRejected(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")
	bob := env.Account("bob")
	env.Fund(alice)

	levydTesting.RequireRejected(t, env.Transfer(alice, bob, 0), levy.ZeroAmount)

	// Exemption does not change it
	env.Exempt(alice)
	levydTesting.RequireRejected(t, env.Transfer(alice, bob, 0), levy.ZeroAmount)
}

// TestDeniedPartiesBlockTaxedTransfers checks the deny registry against
// receivers and invokers.
func TestDeniedPartiesBlockTaxedTransfers(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")
	bob := env.Account("bob")
	mallory := env.Account("mallory")
	env.Fund(alice, bob, mallory)
	env.Deny(mallory)

	// Denied receiver
	levydTesting.RequireRejected(t, env.Transfer(alice, mallory, 1_000), levy.Denied)
	levydTesting.RequireBalance(t, env, mallory, levydTesting.DefaultFunding)

	// Denied invoker acting for someone else
	levydTesting.RequireRejected(t, env.TransferBy(mallory, alice, bob, 1_000), levy.Denied)

	// Sending on its own behalf makes the denied account the invoker
	levydTesting.RequireRejected(t, env.Transfer(mallory, bob, 1_000), levy.Denied)

	// Denial controls invocation and receipt, not the sender side: a
	// clean invoker can still move the denied account's funds
	levydTesting.RequireSettled(t, env.TransferBy(env.Owner, mallory, bob, 1_000))
}

// TestDeniedReceiverExemptFlow checks that an untaxed transfer ignores
// the deny registry.
func TestDeniedReceiverExemptFlow(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")
	mallory := env.Account("mallory")
	env.Fund(alice)
	env.Deny(mallory)
	env.Exempt(alice)

	// Alice's exemption makes the transfer untaxed, so the deny check
	// never runs
	rcpt := env.Transfer(alice, mallory, 1_000)
	levydTesting.RequireSettled(t, rcpt)
	assert.False(t, rcpt.Taxed)
	levydTesting.RequireBalance(t, env, mallory, 1_000)
}
