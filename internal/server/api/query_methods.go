package api

import (
	"encoding/json"
	"time"

	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/types"
)

func (s *Services) ping(_ *Context, _ json.RawMessage) (interface{}, *Error) {
	return struct{}{}, nil
}

type limitsView struct {
	MaxTransfer uint64 `json:"max_transfer"`
	MaxWallet   uint64 `json:"max_wallet"`
}

type categoryView struct {
	RateBps uint32 `json:"rate_bps"`
	Accrued uint64 `json:"accrued"`
}

type serverInfo struct {
	NodeName     string `json:"node_name"`
	BuildVersion string `json:"build_version"`
	Uptime       int64  `json:"uptime"`
	Time         string `json:"time"`

	NativeAsset     types.Asset             `json:"native_asset"`
	SecondaryAsset  types.Asset             `json:"secondary_asset,omitempty"`
	Owner           addressView             `json:"owner"`
	Treasury        addressView             `json:"treasury"`
	TreasuryBalance uint64                  `json:"treasury_balance"`
	Frozen          bool                    `json:"frozen"`
	Limits          limitsView              `json:"limits"`
	Threshold       uint64                  `json:"threshold"`
	Seq             uint64                  `json:"seq"`
	Adapter         string                  `json:"adapter,omitempty"`
	Rates           map[string]categoryView `json:"rates"`
}

func (s *Services) serverInfo(_ *Context, _ json.RawMessage) (interface{}, *Error) {
	store := s.Engine.Store()
	snap := store.Snapshot()

	info := serverInfo{
		NodeName:        s.NodeName,
		BuildVersion:    s.Version,
		Uptime:          int64(time.Since(s.Started).Seconds()),
		Time:            time.Now().UTC().Format(time.RFC3339),
		NativeAsset:     snap.NativeAsset,
		SecondaryAsset:  snap.SecondaryAsset,
		Owner:           addressOf(snap.Owner),
		Treasury:        addressOf(snap.Treasury),
		TreasuryBalance: snap.TreasuryBalance.Uint64(),
		Frozen:          snap.Frozen,
		Limits: limitsView{
			MaxTransfer: snap.Limits.MaxTransfer.Uint64(),
			MaxWallet:   snap.Limits.MaxWallet.Uint64(),
		},
		Threshold: snap.Threshold.Uint64(),
		Seq:       snap.Seq,
		Adapter:   s.Treasury.Status().Adapter,
		Rates:     make(map[string]categoryView, types.CategoryCount),
	}
	for _, cat := range types.Categories() {
		state := store.Category(cat)
		info.Rates[cat.String()] = categoryView{
			RateBps: state.RateBps,
			Accrued: state.Accrued.Uint64(),
		}
	}
	return map[string]interface{}{"info": info}, nil
}

type balanceParams struct {
	Account string `json:"account"`
	Asset   string `json:"asset,omitempty"`
}

type balanceResult struct {
	addressView
	Asset   types.Asset `json:"asset"`
	Balance uint64      `json:"balance"`
}

func (s *Services) balance(_ *Context, params json.RawMessage) (interface{}, *Error) {
	var p balanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := accountParam("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	store := s.Engine.Store()
	asset := store.NativeAsset()
	if p.Asset != "" {
		asset = types.Asset(p.Asset)
		if err := asset.Validate(); err != nil {
			return nil, errInvalidParams(err.Error())
		}
	}
	return balanceResult{
		addressView: addressOf(account),
		Asset:       asset,
		Balance:     store.BalanceOf(asset, account).Uint64(),
	}, nil
}

type supplyParams struct {
	Asset string `json:"asset,omitempty"`
}

type supplyResult struct {
	Asset  types.Asset `json:"asset"`
	Supply uint64      `json:"supply"`
}

func (s *Services) supply(_ *Context, params json.RawMessage) (interface{}, *Error) {
	var p supplyParams
	if len(params) > 0 {
		if rpcErr := decodeParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
	}
	store := s.Engine.Store()
	asset := store.NativeAsset()
	if p.Asset != "" {
		asset = types.Asset(p.Asset)
		if err := asset.Validate(); err != nil {
			return nil, errInvalidParams(err.Error())
		}
	}
	return supplyResult{Asset: asset, Supply: store.Supply(asset).Uint64()}, nil
}

func (s *Services) rates(_ *Context, _ json.RawMessage) (interface{}, *Error) {
	store := s.Engine.Store()
	out := make(map[string]categoryView, types.CategoryCount)
	for _, cat := range types.Categories() {
		state := store.Category(cat)
		out[cat.String()] = categoryView{
			RateBps: state.RateBps,
			Accrued: state.Accrued.Uint64(),
		}
	}
	return out, nil
}

type planParams struct {
	Category string `json:"category"`
}

type planEntryView struct {
	Payee   addressView `json:"payee"`
	Asset   types.Asset `json:"asset"`
	Percent uint32      `json:"percent"`
}

type planResult struct {
	Category   string          `json:"category"`
	Configured bool            `json:"configured"`
	Entries    []planEntryView `json:"entries,omitempty"`
}

func (s *Services) plan(_ *Context, params json.RawMessage) (interface{}, *Error) {
	var p planParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	cat, rpcErr := categoryParam(p.Category)
	if rpcErr != nil {
		return nil, rpcErr
	}
	plan, ok := s.Engine.Store().Plan(cat)
	out := planResult{Category: cat.String(), Configured: ok}
	for _, e := range plan.Entries {
		out.Entries = append(out.Entries, planEntryView{
			Payee:   addressOf(e.Payee),
			Asset:   e.Asset,
			Percent: e.Percent,
		})
	}
	return out, nil
}

type accountFlagsParams struct {
	Account string `json:"account"`
}

type accountFlagsResult struct {
	addressView
	Exempt        bool   `json:"exempt"`
	Denied        bool   `json:"denied"`
	SenderClass   string `json:"sender_class,omitempty"`
	ReceiverClass string `json:"receiver_class,omitempty"`
}

func (s *Services) accountFlags(_ *Context, params json.RawMessage) (interface{}, *Error) {
	var p accountFlagsParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := accountParam("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	store := s.Engine.Store()
	out := accountFlagsResult{
		addressView: addressOf(account),
		Exempt:      store.IsExempt(account),
		Denied:      store.IsDenied(account),
	}
	if cat, ok := store.Class(ledger.SideSender, account); ok {
		out.SenderClass = cat.String()
	}
	if cat, ok := store.Class(ledger.SideReceiver, account); ok {
		out.ReceiverClass = cat.String()
	}
	return out, nil
}

type distributedParams struct {
	Account string `json:"account"`
}

type distributedResult struct {
	addressView
	Native    uint64 `json:"native"`
	Secondary uint64 `json:"secondary"`
}

func (s *Services) distributed(_ *Context, params json.RawMessage) (interface{}, *Error) {
	var p distributedParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := accountParam("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	store := s.Engine.Store()
	return distributedResult{
		addressView: addressOf(account),
		Native:      store.Distributed(false, account).Uint64(),
		Secondary:   store.Distributed(true, account).Uint64(),
	}, nil
}

type treasuryStatusResult struct {
	Balance          uint64            `json:"balance"`
	SecondaryBalance uint64            `json:"secondary_balance"`
	SecondaryAsset   types.Asset       `json:"secondary_asset,omitempty"`
	Threshold        uint64            `json:"threshold"`
	Adapter          string            `json:"adapter,omitempty"`
	Phases           map[string]string `json:"phases"`
	Accrued          map[string]uint64 `json:"accrued"`
}

func (s *Services) treasuryStatus(_ *Context, _ json.RawMessage) (interface{}, *Error) {
	st := s.Treasury.Status()
	out := treasuryStatusResult{
		Balance:          st.Balance.Uint64(),
		SecondaryBalance: st.SecondaryBalance.Uint64(),
		SecondaryAsset:   st.SecondaryAsset,
		Threshold:        st.Threshold.Uint64(),
		Adapter:          st.Adapter,
		Phases:           make(map[string]string, len(st.Phases)),
		Accrued:          make(map[string]uint64, len(st.Accrued)),
	}
	for cat, phase := range st.Phases {
		out.Phases[cat.String()] = phase.String()
	}
	for cat, acc := range st.Accrued {
		out.Accrued[cat.String()] = acc.Uint64()
	}
	return out, nil
}
