package treasury

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/types"
)

// admin runs fn inside an owner-checked transaction and publishes the
// mutation on success.
func (e *Engine) admin(invoker types.AccountID, op, detail string, fn func(tx *ledger.Tx) levy.Result) (levy.Result, error) {
	tx := e.store.Begin()
	if tx.Params().Owner != invoker {
		tx.Discard()
		return levy.NotAuthorized, nil
	}
	if res := fn(tx); res != levy.Success {
		tx.Discard()
		return res, nil
	}
	if err := tx.Commit(); err != nil {
		return levy.InternalFailure, fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("treasury configuration applied",
		zap.String("op", op),
		zap.Stringer("actor", invoker),
		zap.String("detail", detail))
	e.bus.Publish(events.Admin{Time: e.now(), Op: op, Actor: invoker, Detail: detail})
	return levy.Success, nil
}

// ConfigurePlan replaces the payout plan for cat wholesale. The three
// parallel slices must all have exactly count entries and the percentages
// must sum to exactly 100; otherwise the previous plan stays in force.
func (e *Engine) ConfigurePlan(invoker types.AccountID, cat types.Category, count int, payees []types.AccountID, assets []types.Asset, percents []uint32) (levy.Result, error) {
	detail := fmt.Sprintf("%s entries=%d", cat, count)
	return e.admin(invoker, "configure_plan", detail, func(tx *ledger.Tx) levy.Result {
		if !cat.Valid() {
			return levy.UnknownCategory
		}
		if len(payees) != count || len(assets) != count || len(percents) != count {
			return levy.ConfigurationMismatch
		}
		var sum uint32
		for _, pct := range percents {
			sum += pct
		}
		if sum != amount.PercentDenominator {
			return levy.ConfigurationMismatch
		}

		plan := ledger.PayoutPlan{Entries: make([]ledger.PlanEntry, count)}
		for i := 0; i < count; i++ {
			if payees[i].IsZero() {
				return levy.InvalidParameter
			}
			if err := assets[i].Validate(); err != nil {
				return levy.InvalidParameter
			}
			plan.Entries[i] = ledger.PlanEntry{
				Payee:   payees[i],
				Asset:   assets[i],
				Percent: percents[i],
			}
		}
		tx.SetPlan(cat, plan)
		return levy.Success
	})
}

// SetThreshold sets the treasury balance at which a sale triggers a
// distribution. Zero disables triggering.
func (e *Engine) SetThreshold(invoker types.AccountID, threshold amount.Amount) (levy.Result, error) {
	return e.admin(invoker, "set_threshold", threshold.String(), func(tx *ledger.Tx) levy.Result {
		tx.SetThreshold(threshold)
		return levy.Success
	})
}

// SetSecondaryAsset changes the conversion target for future cycles.
func (e *Engine) SetSecondaryAsset(invoker types.AccountID, asset types.Asset) (levy.Result, error) {
	return e.admin(invoker, "set_secondary_asset", string(asset), func(tx *ledger.Tx) levy.Result {
		if err := asset.Validate(); err != nil {
			return levy.InvalidParameter
		}
		if asset == tx.Params().NativeAsset {
			return levy.InvalidParameter
		}
		tx.SetSecondaryAsset(asset)
		return levy.Success
	})
}
