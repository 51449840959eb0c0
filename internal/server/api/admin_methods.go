package api

import (
	"encoding/json"
	"fmt"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/types"
)

type submitParams struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Amount   uint64 `json:"amount"`

	// Invoker defaults to the sender; third-party invocation names it
	// explicitly so classification runs against the right account.
	Invoker string `json:"invoker,omitempty"`
}

type receiptView struct {
	Seq      uint64 `json:"seq"`
	Result   string `json:"result"`
	Category string `json:"category,omitempty"`
	Taxed    bool   `json:"taxed"`
	Amount   uint64 `json:"amount"`
	Tax      uint64 `json:"tax"`
	Net      uint64 `json:"net"`
}

func (s *Services) submit(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p submitParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	sender, rpcErr := accountParam("sender", p.Sender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receiver, rpcErr := accountParam("receiver", p.Receiver)
	if rpcErr != nil {
		return nil, rpcErr
	}
	invoker := sender
	if p.Invoker != "" {
		if invoker, rpcErr = accountParam("invoker", p.Invoker); rpcErr != nil {
			return nil, rpcErr
		}
	}

	rcpt, err := s.Engine.ApplyTransfer(ctx.Context, invoker, sender, receiver, amount.New(p.Amount))
	if err != nil {
		return nil, errInternal(err.Error())
	}
	if !rcpt.Result.IsSuccess() {
		return nil, resultError(rcpt.Result)
	}
	out := receiptView{
		Seq:    rcpt.Seq,
		Result: rcpt.Result.String(),
		Taxed:  rcpt.Taxed,
		Amount: rcpt.Amount.Uint64(),
		Tax:    rcpt.Tax.Uint64(),
		Net:    rcpt.Net.Uint64(),
	}
	if rcpt.Taxed {
		out.Category = rcpt.Category.String()
	}
	return out, nil
}

type distributeParams struct {
	Category string `json:"category"`
}

type distributeResult struct {
	Category    string `json:"category"`
	Distributed uint64 `json:"distributed"`
	Result      string `json:"result"`
}

func (s *Services) distribute(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p distributeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	cat, rpcErr := categoryParam(p.Category)
	if rpcErr != nil {
		return nil, rpcErr
	}
	drained, res, err := s.Treasury.Distribute(ctx.Context, cat)
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return distributeResult{
		Category:    cat.String(),
		Distributed: drained.Uint64(),
		Result:      res.String(),
	}, nil
}

type setRateParams struct {
	Category string `json:"category"`
	RateBps  uint32 `json:"rate_bps"`
}

func (s *Services) setRate(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p setRateParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	cat, rpcErr := categoryParam(p.Category)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.Engine.SetRate(ctx.Admin, cat, p.RateBps)
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"category": cat.String(), "rate_bps": p.RateBps}, nil
}

type setFrozenParams struct {
	Frozen bool `json:"frozen"`
}

func (s *Services) setFrozen(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p setFrozenParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.Engine.SetFrozen(ctx.Admin, p.Frozen)
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"frozen": p.Frozen}, nil
}

type setLimitsParams struct {
	MaxTransfer uint64 `json:"max_transfer"`
	MaxWallet   uint64 `json:"max_wallet"`
}

func (s *Services) setLimits(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p setLimitsParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	limits := ledger.Limits{
		MaxTransfer: amount.New(p.MaxTransfer),
		MaxWallet:   amount.New(p.MaxWallet),
	}
	res, err := s.Engine.SetLimits(ctx.Admin, limits)
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return limitsView{MaxTransfer: p.MaxTransfer, MaxWallet: p.MaxWallet}, nil
}

type setRegistryParams struct {
	Set     string `json:"set"`
	Account string `json:"account"`
	Present bool   `json:"present"`
}

func (s *Services) setRegistry(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p setRegistryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := accountParam("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var (
		res levy.Result
		err error
	)
	switch p.Set {
	case "exempt":
		res, err = s.Engine.SetExempt(ctx.Admin, account, p.Present)
	case "denied":
		res, err = s.Engine.SetDenied(ctx.Admin, account, p.Present)
	default:
		return nil, errInvalidParams(fmt.Sprintf("unknown set %q", p.Set))
	}
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"set": p.Set, "account": account.String(), "present": p.Present}, nil
}

func sideParam(value string) (ledger.ClassSide, *Error) {
	switch value {
	case "sender":
		return ledger.SideSender, nil
	case "receiver":
		return ledger.SideReceiver, nil
	default:
		return 0, errInvalidParams(fmt.Sprintf("unknown side %q", value))
	}
}

type setClassParams struct {
	Side     string `json:"side"`
	Account  string `json:"account"`
	Category string `json:"category"`
}

func (s *Services) setClass(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p setClassParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	side, rpcErr := sideParam(p.Side)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := accountParam("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cat, rpcErr := categoryParam(p.Category)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.Engine.SetClass(ctx.Admin, side, account, cat)
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"side": p.Side, "account": account.String(), "category": cat.String()}, nil
}

type clearClassParams struct {
	Side    string `json:"side"`
	Account string `json:"account"`
}

func (s *Services) clearClass(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p clearClassParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	side, rpcErr := sideParam(p.Side)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := accountParam("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.Engine.ClearClass(ctx.Admin, side, account)
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"side": p.Side, "account": account.String()}, nil
}

type transferOwnershipParams struct {
	NewOwner string `json:"new_owner"`
}

func (s *Services) transferOwnership(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p transferOwnershipParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	newOwner, rpcErr := accountParam("new_owner", p.NewOwner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.Engine.TransferOwnership(ctx.Admin, newOwner)
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"owner": addressOf(newOwner)}, nil
}

type configurePlanParams struct {
	Category string   `json:"category"`
	Count    int      `json:"count"`
	Payees   []string `json:"payees"`
	Assets   []string `json:"assets"`
	Percents []uint32 `json:"percents"`
}

func (s *Services) configurePlan(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p configurePlanParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	cat, rpcErr := categoryParam(p.Category)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payees := make([]types.AccountID, 0, len(p.Payees))
	for i, raw := range p.Payees {
		payee, rpcErr := accountParam(fmt.Sprintf("payees[%d]", i), raw)
		if rpcErr != nil {
			return nil, rpcErr
		}
		payees = append(payees, payee)
	}
	assets := make([]types.Asset, 0, len(p.Assets))
	for _, raw := range p.Assets {
		assets = append(assets, types.Asset(raw))
	}
	res, err := s.Treasury.ConfigurePlan(ctx.Admin, cat, p.Count, payees, assets, p.Percents)
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"category": cat.String(), "count": p.Count}, nil
}

type setThresholdParams struct {
	Threshold uint64 `json:"threshold"`
}

func (s *Services) setThreshold(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p setThresholdParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.Treasury.SetThreshold(ctx.Admin, amount.New(p.Threshold))
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"threshold": p.Threshold}, nil
}

type setSecondaryAssetParams struct {
	Asset string `json:"asset"`
}

func (s *Services) setSecondaryAsset(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	var p setSecondaryAssetParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.Treasury.SetSecondaryAsset(ctx.Admin, types.Asset(p.Asset))
	if rpcErr := resultOrError(res, err); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"secondary_asset": p.Asset}, nil
}
