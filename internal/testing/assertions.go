package testing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/types"
)

// RequireBalance asserts that an account holds exactly the expected
// native-asset balance.
func RequireBalance(t *testing.T, env *Env, acc *Account, expected amount.Amount) {
	t.Helper()
	actual := env.Balance(acc)
	require.Equal(t, expected, actual,
		"Account %s balance mismatch: expected %d, got %d", acc.Name, expected, actual)
}

// RequireSecondaryBalance asserts an account's secondary-asset balance.
func RequireSecondaryBalance(t *testing.T, env *Env, acc *Account, expected amount.Amount) {
	t.Helper()
	actual := env.SecondaryBalance(acc)
	require.Equal(t, expected, actual,
		"Account %s secondary balance mismatch: expected %d, got %d", acc.Name, expected, actual)
}

// RequireTreasuryBalance asserts the treasury's native-asset balance.
func RequireTreasuryBalance(t *testing.T, env *Env, expected amount.Amount) {
	t.Helper()
	actual := env.TreasuryBalance()
	require.Equal(t, expected, actual,
		"Treasury balance mismatch: expected %d, got %d", expected, actual)
}

// RequireAccrued asserts the undistributed tax accrued for a category.
func RequireAccrued(t *testing.T, env *Env, cat types.Category, expected amount.Amount) {
	t.Helper()
	actual := env.Accrued(cat)
	require.Equal(t, expected, actual,
		"Category %s accrual mismatch: expected %d, got %d", cat, expected, actual)
}

// RequireSettled asserts that a transfer settled successfully and was
// assigned a sequence number.
func RequireSettled(t *testing.T, rcpt levy.Receipt) {
	t.Helper()
	require.Equal(t, levy.Success, rcpt.Result,
		"Transfer did not settle: %s", rcpt.Result)
	require.NotZero(t, rcpt.Seq, "Settled transfer carries no sequence number")
}

// RequireRejected asserts that a transfer was rejected with the given
// result and left no settlement behind.
func RequireRejected(t *testing.T, rcpt levy.Receipt, want levy.Result) {
	t.Helper()
	require.Equal(t, want, rcpt.Result,
		"Transfer result mismatch: expected %s, got %s", want, rcpt.Result)
	require.Zero(t, rcpt.Seq, "Rejected transfer must not carry a sequence number")
}

// AssertBalanceChange runs fn and asserts the net change it causes to
// acc's native balance.
func AssertBalanceChange(t *testing.T, env *Env, acc *Account, change int64, fn func()) {
	t.Helper()
	before := env.Balance(acc)
	fn()
	after := env.Balance(acc)
	actual := int64(after) - int64(before)
	require.Equal(t, change, actual,
		"Account %s balance change mismatch: expected %+d, got %+d", acc.Name, change, actual)
}
