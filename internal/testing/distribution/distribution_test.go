package distribution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/levy"
	levydTesting "github.com/levyledger/levyd/internal/testing"
	"github.com/levyledger/levyd/internal/types"
)

// accrue collects exactly amt of transfer-category tax in the treasury.
func accrue(t *testing.T, env *levydTesting.Env, amt amount.Amount) {
	t.Helper()
	alice := env.Account("alice")
	bob := env.Account("bob")
	if env.Balance(alice) == 0 {
		env.Fund(alice, bob)
	}
	env.SetRate(types.CategoryTransfer, 1000)
	levydTesting.RequireSettled(t, env.Transfer(alice, bob, amt*10))
	levydTesting.RequireAccrued(t, env, types.CategoryTransfer, amt)
}

// TestEvenNativeSplit checks a 50/50 native-asset plan: an accrual of 200
// pays each payee 100 without touching the adapter.
func TestEvenNativeSplit(t *testing.T) {
	env := levydTesting.NewEnv(t)
	accrue(t, env, 200)

	fund := env.Account("fund")
	desk := env.Account("desk")
	env.ConfigurePlan(types.CategoryTransfer,
		levydTesting.PlanEntry{Payee: fund, Percent: 50},
		levydTesting.PlanEntry{Payee: desk, Percent: 50},
	)

	amt, res := env.Distribute(types.CategoryTransfer)
	assert.Equal(t, levy.Success, res)
	assert.Equal(t, amount.Amount(200), amt)

	levydTesting.RequireBalance(t, env, fund, 100)
	levydTesting.RequireBalance(t, env, desk, 100)
	levydTesting.RequireAccrued(t, env, types.CategoryTransfer, 0)
	levydTesting.RequireTreasuryBalance(t, env, 0)

	// The cumulative payout ledger tracks it
	assert.Equal(t, amount.Amount(100), env.Store.Distributed(false, fund.ID))
	assert.Equal(t, amount.Amount(100), env.Store.Distributed(false, desk.ID))
}

// TestConvertedPayout checks a single 100% secondary-asset entry: an
// accrual of 100 converted at 9/10 delivers 90 in the secondary asset.
func TestConvertedPayout(t *testing.T) {
	env := levydTesting.NewEnv(t, levydTesting.WithExchangeRate(9, 10))
	accrue(t, env, 100)

	fund := env.Account("fund")
	env.ConfigurePlan(types.CategoryTransfer,
		levydTesting.PlanEntry{Payee: fund, Asset: levydTesting.SecondaryAsset, Percent: 100},
	)

	amt, res := env.Distribute(types.CategoryTransfer)
	assert.Equal(t, levy.Success, res)
	assert.Equal(t, amount.Amount(100), amt)

	levydTesting.RequireSecondaryBalance(t, env, fund, 90)
	levydTesting.RequireBalance(t, env, fund, 0)
	levydTesting.RequireTreasuryBalance(t, env, 0)
	assert.Equal(t, amount.Amount(90), env.Store.Distributed(true, fund.ID))

	// The earmark left the native supply when it was handed to the adapter
	assert.Equal(t, levydTesting.DefaultSupply-100, env.Store.Supply(levydTesting.NativeAsset))
	assert.Equal(t, amount.Amount(90), env.Store.Supply(levydTesting.SecondaryAsset))
}

// TestMixedPlan checks a plan splitting between native payouts and
// conversion.
func TestMixedPlan(t *testing.T) {
	env := levydTesting.NewEnv(t)
	accrue(t, env, 1_000)

	fund := env.Account("fund")
	desk := env.Account("desk")
	env.ConfigurePlan(types.CategoryTransfer,
		levydTesting.PlanEntry{Payee: fund, Percent: 60},
		levydTesting.PlanEntry{Payee: desk, Asset: levydTesting.SecondaryAsset, Percent: 40},
	)

	amt, res := env.Distribute(types.CategoryTransfer)
	assert.Equal(t, levy.Success, res)
	assert.Equal(t, amount.Amount(1_000), amt)

	levydTesting.RequireBalance(t, env, fund, 600)
	levydTesting.RequireSecondaryBalance(t, env, desk, 400) // 1:1 default rate
	levydTesting.RequireTreasuryBalance(t, env, 0)
}

// TestEmptyAccrualIsNoop checks that distributing an empty category
// succeeds without moving anything.
func TestEmptyAccrualIsNoop(t *testing.T) {
	env := levydTesting.NewEnv(t)
	fund := env.Account("fund")
	env.ConfigurePlan(types.CategoryTransfer, levydTesting.PlanEntry{Payee: fund, Percent: 100})

	amt, res := env.Distribute(types.CategoryTransfer)
	assert.Equal(t, levy.Success, res)
	assert.Zero(t, amt)
	levydTesting.RequireBalance(t, env, fund, 0)
}

// TestPlanMismatchKeepsPriorPlan checks that a malformed plan update is
// rejected wholesale and the previous plan keeps paying.
func TestPlanMismatchKeepsPriorPlan(t *testing.T) {
	env := levydTesting.NewEnv(t)
	fund := env.Account("fund")
	desk := env.Account("desk")
	extra := env.Account("extra")
	env.ConfigurePlan(types.CategoryTransfer, levydTesting.PlanEntry{Payee: fund, Percent: 100})

	// count says two entries, but three payees arrive
	res, err := env.Treasury.ConfigurePlan(env.Owner.ID, types.CategoryTransfer, 2,
		[]types.AccountID{fund.ID, desk.ID, extra.ID},
		[]types.Asset{levydTesting.NativeAsset, levydTesting.NativeAsset, levydTesting.NativeAsset},
		[]uint32{50, 30, 20},
	)
	assert.NoError(t, err)
	assert.Equal(t, levy.ConfigurationMismatch, res)

	// Percentages that do not sum to 100 are rejected the same way
	res, err = env.Treasury.ConfigurePlan(env.Owner.ID, types.CategoryTransfer, 2,
		[]types.AccountID{fund.ID, desk.ID},
		[]types.Asset{levydTesting.NativeAsset, levydTesting.NativeAsset},
		[]uint32{50, 40},
	)
	assert.NoError(t, err)
	assert.Equal(t, levy.ConfigurationMismatch, res)

	accrue(t, env, 100)
	amt, dres := env.Distribute(types.CategoryTransfer)
	assert.Equal(t, levy.Success, dres)
	assert.Equal(t, amount.Amount(100), amt)
	levydTesting.RequireBalance(t, env, fund, 100)
	levydTesting.RequireBalance(t, env, desk, 0)
}

// TestUnplannedCategoryDrainsToTreasury checks that a category with no
// plan still drains its accrual; the funds simply stay with the treasury.
func TestUnplannedCategoryDrainsToTreasury(t *testing.T) {
	env := levydTesting.NewEnv(t)
	accrue(t, env, 100)

	amt, res := env.Distribute(types.CategoryTransfer)
	assert.Equal(t, levy.Success, res)
	assert.Equal(t, amount.Amount(100), amt)

	levydTesting.RequireAccrued(t, env, types.CategoryTransfer, 0)
	levydTesting.RequireTreasuryBalance(t, env, 100)
}

// TestConversionFailureConsumesEarmark checks that a failed conversion
// ends the cycle: the native payouts stand, the earmark is gone and the
// accrual is not restored.
func TestConversionFailureConsumesEarmark(t *testing.T) {
	env := levydTesting.NewEnv(t, levydTesting.WithLiquidity(10))
	accrue(t, env, 1_000)

	fund := env.Account("fund")
	desk := env.Account("desk")
	env.ConfigurePlan(types.CategoryTransfer,
		levydTesting.PlanEntry{Payee: fund, Percent: 50},
		levydTesting.PlanEntry{Payee: desk, Asset: levydTesting.SecondaryAsset, Percent: 50},
	)

	// The adapter's 10 units of liquidity cannot cover a 500 conversion
	amt, res := env.Distribute(types.CategoryTransfer)
	assert.Equal(t, levy.ConversionFailed, res)
	assert.Equal(t, amount.Amount(1_000), amt)

	levydTesting.RequireBalance(t, env, fund, 500)
	levydTesting.RequireSecondaryBalance(t, env, desk, 0)
	levydTesting.RequireAccrued(t, env, types.CategoryTransfer, 0)
	levydTesting.RequireTreasuryBalance(t, env, 0)
}

// TestSlippageReducesProceeds checks that adapter slippage comes out of
// the converted payout.
func TestSlippageReducesProceeds(t *testing.T) {
	env := levydTesting.NewEnv(t, levydTesting.WithSlippage(500)) // 5%
	accrue(t, env, 1_000)

	fund := env.Account("fund")
	env.ConfigurePlan(types.CategoryTransfer,
		levydTesting.PlanEntry{Payee: fund, Asset: levydTesting.SecondaryAsset, Percent: 100},
	)

	_, res := env.Distribute(types.CategoryTransfer)
	assert.Equal(t, levy.Success, res)
	levydTesting.RequireSecondaryBalance(t, env, fund, 950)
}
