package levy

import "fmt"

// Result is the outcome code of a ledger operation.
//
// Codes are organized in bands:
//
//	0        success
//	100-199  transfer rejections; the ledger was not touched
//	200-299  configuration and authorization failures; state unchanged
//	300-399  treasury outcomes
//	900+     internal faults
type Result int

const (
	// Success: the operation was applied in full.
	Success Result = 0

	// Transfer rejections (100-199). The first failing guard check wins and
	// nothing is settled.

	// Frozen: transfers are paused and no party is exempt.
	Frozen Result = 100
	// InsufficientBalance: the sender's balance does not cover the amount.
	InsufficientBalance Result = 101
	// ZeroAmount: zero-value transfers are refused.
	ZeroAmount Result = 102
	// ExceedsMaxTransfer: a taxed transfer above the per-transfer ceiling.
	ExceedsMaxTransfer Result = 103
	// ExceedsMaxWallet: the receiver would end above the wallet ceiling.
	ExceedsMaxWallet Result = 104
	// Denied: the invoker or receiver is barred from taxed transfers.
	Denied Result = 105

	// Configuration and authorization failures (200-299).

	// ConfigurationMismatch: payout plan lists disagree in length or the
	// percentages do not sum to exactly 100.
	ConfigurationMismatch Result = 200
	// RateAboveCap: a category rate above the hard basis-point cap.
	RateAboveCap Result = 201
	// RegistryConflict: the exemption and deny sets must stay disjoint.
	RegistryConflict Result = 202
	// UnknownCategory: the named category does not exist.
	UnknownCategory Result = 203
	// InvalidParameter: a malformed argument (zero account, bad asset).
	InvalidParameter Result = 204
	// NotAuthorized: the invoker is not the administrative owner.
	NotAuthorized Result = 210

	// Treasury outcomes (300-399).

	// ReentrantDistribution: a distribution was requested while one is
	// already in flight for the category.
	ReentrantDistribution Result = 300
	// ConversionFailed: the exchange adapter failed or returned zero; the
	// earmarked native amount is consumed. Same-asset payouts made earlier
	// in the cycle stand.
	ConversionFailed Result = 301

	// InternalFailure: an invariant break or storage fault.
	InternalFailure Result = 900
)

// String returns the stable code name used on the wire and in logs.
func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case Frozen:
		return "FrozenRejected"
	case InsufficientBalance:
		return "InsufficientBalance"
	case ZeroAmount:
		return "ZeroAmount"
	case ExceedsMaxTransfer:
		return "ExceedsMaxTransfer"
	case ExceedsMaxWallet:
		return "ExceedsMaxWallet"
	case Denied:
		return "Denied"
	case ConfigurationMismatch:
		return "ConfigurationMismatch"
	case RateAboveCap:
		return "RateAboveCap"
	case RegistryConflict:
		return "RegistryConflict"
	case UnknownCategory:
		return "UnknownCategory"
	case InvalidParameter:
		return "InvalidParameter"
	case NotAuthorized:
		return "NotAuthorized"
	case ReentrantDistribution:
		return "ReentrantDistribution"
	case ConversionFailed:
		return "ConversionFailed"
	case InternalFailure:
		return "InternalFailure"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// Message returns a human-readable description of the result.
func (r Result) Message() string {
	switch r {
	case Success:
		return "The operation was applied."
	case Frozen:
		return "Transfers are frozen and no involved party is exempt."
	case InsufficientBalance:
		return "Sender balance does not cover the transfer amount."
	case ZeroAmount:
		return "Transfer amount must be positive."
	case ExceedsMaxTransfer:
		return "Transfer amount exceeds the per-transfer ceiling."
	case ExceedsMaxWallet:
		return "Receiver balance would exceed the wallet ceiling."
	case Denied:
		return "A party to the transfer is on the deny list."
	case ConfigurationMismatch:
		return "Payout plan lists disagree or percentages do not sum to 100."
	case RateAboveCap:
		return "Tax rate exceeds the hard cap."
	case RegistryConflict:
		return "Exemption and deny sets must be disjoint."
	case UnknownCategory:
		return "No such category."
	case InvalidParameter:
		return "Malformed argument."
	case NotAuthorized:
		return "Operation restricted to the administrative owner."
	case ReentrantDistribution:
		return "A distribution for this category is already in progress."
	case ConversionFailed:
		return "Exchange conversion failed; earmarked amount consumed."
	case InternalFailure:
		return "Internal fault."
	default:
		return r.String()
	}
}

// IsSuccess returns true if the result indicates full success.
func (r Result) IsSuccess() bool {
	return r == Success
}

// IsRejection returns true for guard rejections, which never touch state.
func (r Result) IsRejection() bool {
	return r >= 100 && r < 200
}

// IsConfigFailure returns true for configuration or authorization failures.
func (r Result) IsConfigFailure() bool {
	return r >= 200 && r < 300
}

// ResultError wraps a Result as a Go error for transport boundaries.
type ResultError struct {
	Code Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Code.Message())
}

// Err returns nil for Success and a *ResultError otherwise.
func (r Result) Err() error {
	if r == Success {
		return nil
	}
	return &ResultError{Code: r}
}
