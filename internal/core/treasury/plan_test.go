package treasury

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/types"
)

func TestConfigurePlanReplacesWholesale(t *testing.T) {
	s := newTestStore(t)
	e := New(s, nil)

	configurePlan(t, e, types.CategorySell,
		[]types.AccountID{payee1}, []types.Asset{native}, []uint32{100})

	configurePlan(t, e, types.CategorySell,
		[]types.AccountID{payee2, payee3},
		[]types.Asset{native, secondary},
		[]uint32{40, 60})

	plan, ok := s.Plan(types.CategorySell)
	require.True(t, ok)
	require.Len(t, plan.Entries, 2)
	assert.Equal(t, payee2, plan.Entries[0].Payee)
	assert.Equal(t, uint32(60), plan.Entries[1].Percent)
}

func TestConfigurePlanCountMismatchKeepsPriorPlan(t *testing.T) {
	s := newTestStore(t)
	e := New(s, nil)

	configurePlan(t, e, types.CategoryTransfer,
		[]types.AccountID{payee1}, []types.Asset{native}, []uint32{100})

	// count says two entries but three payees arrive
	res, err := e.ConfigurePlan(owner, types.CategoryTransfer, 2,
		[]types.AccountID{payee1, payee2, payee3},
		[]types.Asset{native, native, native},
		[]uint32{40, 30, 30})
	require.NoError(t, err)
	assert.Equal(t, levy.ConfigurationMismatch, res)

	plan, ok := s.Plan(types.CategoryTransfer)
	require.True(t, ok)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, payee1, plan.Entries[0].Payee)
	assert.Equal(t, uint32(100), plan.Entries[0].Percent)
}

func TestConfigurePlanValidation(t *testing.T) {
	e := New(newTestStore(t), nil)

	tests := []struct {
		name     string
		cat      types.Category
		count    int
		payees   []types.AccountID
		assets   []types.Asset
		percents []uint32
		want     levy.Result
	}{
		{
			name: "unknown category", cat: types.Category(9), count: 1,
			payees: []types.AccountID{payee1}, assets: []types.Asset{native}, percents: []uint32{100},
			want: levy.UnknownCategory,
		},
		{
			name: "assets shorter than count", cat: types.CategoryBuy, count: 2,
			payees: []types.AccountID{payee1, payee2}, assets: []types.Asset{native}, percents: []uint32{50, 50},
			want: levy.ConfigurationMismatch,
		},
		{
			name: "percentages above hundred", cat: types.CategoryBuy, count: 2,
			payees: []types.AccountID{payee1, payee2}, assets: []types.Asset{native, native}, percents: []uint32{60, 50},
			want: levy.ConfigurationMismatch,
		},
		{
			name: "percentages below hundred", cat: types.CategoryBuy, count: 1,
			payees: []types.AccountID{payee1}, assets: []types.Asset{native}, percents: []uint32{99},
			want: levy.ConfigurationMismatch,
		},
		{
			name: "zero payee", cat: types.CategoryBuy, count: 1,
			payees: []types.AccountID{types.ZeroAccount}, assets: []types.Asset{native}, percents: []uint32{100},
			want: levy.InvalidParameter,
		},
		{
			name: "empty asset", cat: types.CategoryBuy, count: 1,
			payees: []types.AccountID{payee1}, assets: []types.Asset{""}, percents: []uint32{100},
			want: levy.InvalidParameter,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.ConfigurePlan(owner, tc.cat, tc.count, tc.payees, tc.assets, tc.percents)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res)
		})
	}
}

func TestConfigurePlanRequiresOwner(t *testing.T) {
	e := New(newTestStore(t), nil)
	res, err := e.ConfigurePlan(payee1, types.CategoryBuy, 1,
		[]types.AccountID{payee1}, []types.Asset{native}, []uint32{100})
	require.NoError(t, err)
	assert.Equal(t, levy.NotAuthorized, res)
}

func TestSetThreshold(t *testing.T) {
	s := newTestStore(t)
	e := New(s, nil)

	res, err := e.SetThreshold(payee1, 500)
	require.NoError(t, err)
	assert.Equal(t, levy.NotAuthorized, res)

	res, err = e.SetThreshold(owner, 500)
	require.NoError(t, err)
	require.Equal(t, levy.Success, res)
	assert.Equal(t, uint64(500), uint64(s.Params().Threshold))

	res, err = e.SetThreshold(owner, 0)
	require.NoError(t, err)
	require.Equal(t, levy.Success, res)
	assert.Zero(t, s.Params().Threshold)
}

func TestSetSecondaryAsset(t *testing.T) {
	s := newTestStore(t)
	e := New(s, nil)

	res, err := e.SetSecondaryAsset(owner, native)
	require.NoError(t, err)
	assert.Equal(t, levy.InvalidParameter, res)

	res, err = e.SetSecondaryAsset(owner, "")
	require.NoError(t, err)
	assert.Equal(t, levy.InvalidParameter, res)

	res, err = e.SetSecondaryAsset(owner, "EURX")
	require.NoError(t, err)
	require.Equal(t, levy.Success, res)
	assert.Equal(t, types.Asset("EURX"), s.Params().SecondaryAsset)
}
