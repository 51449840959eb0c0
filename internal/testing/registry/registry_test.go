package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/core/levy"
	levydTesting "github.com/levyledger/levyd/internal/testing"
	"github.com/levyledger/levyd/internal/types"
)

// TestExemptDeniedConflict checks that an account can never be in both
// registries at once.
func TestExemptDeniedConflict(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")
	mallory := env.Account("mallory")
	env.Exempt(alice)
	env.Deny(mallory)

	res, err := env.Engine.SetDenied(env.Owner.ID, alice.ID, true)
	require.NoError(t, err)
	assert.Equal(t, levy.RegistryConflict, res)
	assert.False(t, env.Store.IsDenied(alice.ID))

	res, err = env.Engine.SetExempt(env.Owner.ID, mallory.ID, true)
	require.NoError(t, err)
	assert.Equal(t, levy.RegistryConflict, res)
	assert.False(t, env.Store.IsExempt(mallory.ID))

	// Removing the first membership clears the way
	res, err = env.Engine.SetDenied(env.Owner.ID, mallory.ID, false)
	require.NoError(t, err)
	assert.Equal(t, levy.Success, res)
	env.Exempt(mallory)
	assert.True(t, env.Store.IsExempt(mallory.ID))
}

// TestReceiverMarkOverridesSenderMark checks classification precedence:
// the receiver-side mark wins when both sides are marked.
func TestReceiverMarkOverridesSenderMark(t *testing.T) {
	env := levydTesting.NewEnv(t)
	dexA := env.Account("dex-a")
	dexB := env.Account("dex-b")
	env.Fund(dexA, dexB)
	env.MarkMarket(dexA)
	env.MarkMarket(dexB)

	// dexA's sender mark says buy, dexB's receiver mark says sell
	rcpt := env.Transfer(dexA, dexB, 1_000)
	levydTesting.RequireSettled(t, rcpt)
	assert.Equal(t, types.CategorySell, rcpt.Category)
}

// TestClearClassRestoresDefault checks that clearing a mark returns the
// account to plain transfer classification.
func TestClearClassRestoresDefault(t *testing.T) {
	env := levydTesting.NewEnv(t)
	market := env.Account("market")
	carol := env.Account("carol")
	env.Fund(market, carol)
	env.MarkMarket(market)

	rcpt := env.Transfer(carol, market, 1_000)
	assert.Equal(t, types.CategorySell, rcpt.Category)

	res, err := env.Engine.ClearClass(env.Owner.ID, ledger.SideReceiver, market.ID)
	require.NoError(t, err)
	require.Equal(t, levy.Success, res)

	rcpt = env.Transfer(carol, market, 1_000)
	assert.Equal(t, types.CategoryTransfer, rcpt.Category)

	// The sender-side mark is untouched
	rcpt = env.Transfer(market, carol, 1_000)
	assert.Equal(t, types.CategoryBuy, rcpt.Category)
}

// TestAdminRequiresOwner checks that administrative calls from anyone but
// the owner change nothing.
func TestAdminRequiresOwner(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")

	res, err := env.Engine.SetRate(alice.ID, types.CategoryTransfer, 500)
	require.NoError(t, err)
	assert.Equal(t, levy.NotAuthorized, res)
	assert.Equal(t, uint32(200), env.Store.Category(types.CategoryTransfer).RateBps)

	res, err = env.Engine.SetFrozen(alice.ID, true)
	require.NoError(t, err)
	assert.Equal(t, levy.NotAuthorized, res)
	assert.False(t, env.Store.Params().Frozen)

	res, err = env.Treasury.SetThreshold(alice.ID, 1_000)
	require.NoError(t, err)
	assert.Equal(t, levy.NotAuthorized, res)
}

// TestRateCapEnforced checks the hard ceiling on category rates.
func TestRateCapEnforced(t *testing.T) {
	env := levydTesting.NewEnv(t)

	res, err := env.Engine.SetRate(env.Owner.ID, types.CategorySell, ledger.MaxRateBps+1)
	require.NoError(t, err)
	assert.Equal(t, levy.RateAboveCap, res)
	assert.Equal(t, uint32(300), env.Store.Category(types.CategorySell).RateBps)

	env.SetRate(types.CategorySell, ledger.MaxRateBps)
	assert.Equal(t, ledger.MaxRateBps, env.Store.Category(types.CategorySell).RateBps)
}

// TestOwnershipHandover checks that TransferOwnership moves the
// administrative role atomically.
func TestOwnershipHandover(t *testing.T) {
	env := levydTesting.NewEnv(t)
	successor := env.Account("successor")

	res, err := env.Engine.TransferOwnership(env.Owner.ID, successor.ID)
	require.NoError(t, err)
	require.Equal(t, levy.Success, res)

	// The old owner is out
	res, err = env.Engine.SetRate(env.Owner.ID, types.CategoryTransfer, 500)
	require.NoError(t, err)
	assert.Equal(t, levy.NotAuthorized, res)

	// The successor is in
	res, err = env.Engine.SetRate(successor.ID, types.CategoryTransfer, 500)
	require.NoError(t, err)
	assert.Equal(t, levy.Success, res)
	assert.Equal(t, uint32(500), env.Store.Category(types.CategoryTransfer).RateBps)
}

// TestUnknownCategoryRejected checks that rate and classification calls
// validate the category.
func TestUnknownCategoryRejected(t *testing.T) {
	env := levydTesting.NewEnv(t)
	alice := env.Account("alice")
	bogus := types.Category(77)

	res, err := env.Engine.SetRate(env.Owner.ID, bogus, 100)
	require.NoError(t, err)
	assert.Equal(t, levy.UnknownCategory, res)

	res, err = env.Engine.SetClass(env.Owner.ID, ledger.SideSender, alice.ID, bogus)
	require.NoError(t, err)
	assert.Equal(t, levy.UnknownCategory, res)
}
