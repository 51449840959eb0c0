package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/core/treasury"
	"github.com/levyledger/levyd/internal/types"
)

// BalanceRequest asks for one account's balance. Accounts travel as the
// raw 20-byte ID; Asset defaults to the native asset when empty.
type BalanceRequest struct {
	Account []byte `codec:"account"`
	Asset   string `codec:"asset,omitempty"`
}

type BalanceResponse struct {
	Asset   string `codec:"asset"`
	Balance uint64 `codec:"balance"`
}

// AccruedRequest asks for one category's rate and accrued tax pool.
type AccruedRequest struct {
	Category string `codec:"category"`
}

type AccruedResponse struct {
	Category string `codec:"category"`
	RateBps  uint32 `codec:"rate_bps"`
	Accrued  uint64 `codec:"accrued"`
}

type PlanRequest struct {
	Category string `codec:"category"`
}

type PlanEntry struct {
	Payee   []byte `codec:"payee"`
	Asset   string `codec:"asset"`
	Percent uint32 `codec:"percent"`
}

type PlanResponse struct {
	Category   string      `codec:"category"`
	Configured bool        `codec:"configured"`
	Entries    []PlanEntry `codec:"entries,omitempty"`
}

type LimitsRequest struct{}

type LimitsResponse struct {
	MaxTransfer uint64 `codec:"max_transfer"`
	MaxWallet   uint64 `codec:"max_wallet"`
	Frozen      bool   `codec:"frozen"`
}

type DistributedRequest struct {
	Account []byte `codec:"account"`
}

type DistributedResponse struct {
	Native    uint64 `codec:"native"`
	Secondary uint64 `codec:"secondary"`
}

type TreasuryStatusRequest struct{}

type TreasuryStatusResponse struct {
	Balance          uint64            `codec:"balance"`
	SecondaryBalance uint64            `codec:"secondary_balance"`
	SecondaryAsset   string            `codec:"secondary_asset,omitempty"`
	Threshold        uint64            `codec:"threshold"`
	Phases           map[string]string `codec:"phases"`
	Accrued          map[string]uint64 `codec:"accrued"`
}

// QueryServer is the levyd.v1.Query service contract.
type QueryServer interface {
	Balance(ctx context.Context, req *BalanceRequest) (*BalanceResponse, error)
	Accrued(ctx context.Context, req *AccruedRequest) (*AccruedResponse, error)
	Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error)
	Limits(ctx context.Context, req *LimitsRequest) (*LimitsResponse, error)
	Distributed(ctx context.Context, req *DistributedRequest) (*DistributedResponse, error)
	TreasuryStatus(ctx context.Context, req *TreasuryStatusRequest) (*TreasuryStatusResponse, error)
}

// queryService answers Query calls straight off the ledger store.
type queryService struct {
	store    *ledger.Store
	treasury *treasury.Engine
}

// NewQueryService builds the QueryServer the node registers.
func NewQueryService(store *ledger.Store, treas *treasury.Engine) QueryServer {
	return &queryService{store: store, treasury: treas}
}

func accountFromBytes(raw []byte) (types.AccountID, error) {
	id, err := types.AccountIDFromBytes(raw)
	if err != nil {
		return types.ZeroAccount, status.Error(codes.InvalidArgument, err.Error())
	}
	return id, nil
}

func categoryFromString(raw string) (types.Category, error) {
	cat, err := types.ParseCategory(raw)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, err.Error())
	}
	return cat, nil
}

func (q *queryService) Balance(_ context.Context, req *BalanceRequest) (*BalanceResponse, error) {
	account, err := accountFromBytes(req.Account)
	if err != nil {
		return nil, err
	}
	asset := q.store.NativeAsset()
	if req.Asset != "" {
		asset = types.Asset(req.Asset)
		if err := asset.Validate(); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return &BalanceResponse{
		Asset:   string(asset),
		Balance: q.store.BalanceOf(asset, account).Uint64(),
	}, nil
}

func (q *queryService) Accrued(_ context.Context, req *AccruedRequest) (*AccruedResponse, error) {
	cat, err := categoryFromString(req.Category)
	if err != nil {
		return nil, err
	}
	state := q.store.Category(cat)
	return &AccruedResponse{
		Category: cat.String(),
		RateBps:  state.RateBps,
		Accrued:  state.Accrued.Uint64(),
	}, nil
}

func (q *queryService) Plan(_ context.Context, req *PlanRequest) (*PlanResponse, error) {
	cat, err := categoryFromString(req.Category)
	if err != nil {
		return nil, err
	}
	plan, ok := q.store.Plan(cat)
	resp := &PlanResponse{Category: cat.String(), Configured: ok}
	for _, e := range plan.Entries {
		resp.Entries = append(resp.Entries, PlanEntry{
			Payee:   e.Payee.Bytes(),
			Asset:   string(e.Asset),
			Percent: e.Percent,
		})
	}
	return resp, nil
}

func (q *queryService) Limits(_ context.Context, _ *LimitsRequest) (*LimitsResponse, error) {
	snap := q.store.Snapshot()
	return &LimitsResponse{
		MaxTransfer: snap.Limits.MaxTransfer.Uint64(),
		MaxWallet:   snap.Limits.MaxWallet.Uint64(),
		Frozen:      snap.Frozen,
	}, nil
}

func (q *queryService) Distributed(_ context.Context, req *DistributedRequest) (*DistributedResponse, error) {
	account, err := accountFromBytes(req.Account)
	if err != nil {
		return nil, err
	}
	return &DistributedResponse{
		Native:    q.store.Distributed(false, account).Uint64(),
		Secondary: q.store.Distributed(true, account).Uint64(),
	}, nil
}

func (q *queryService) TreasuryStatus(_ context.Context, _ *TreasuryStatusRequest) (*TreasuryStatusResponse, error) {
	st := q.treasury.Status()
	resp := &TreasuryStatusResponse{
		Balance:          st.Balance.Uint64(),
		SecondaryBalance: st.SecondaryBalance.Uint64(),
		SecondaryAsset:   string(st.SecondaryAsset),
		Threshold:        st.Threshold.Uint64(),
		Phases:           make(map[string]string, len(st.Phases)),
		Accrued:          make(map[string]uint64, len(st.Accrued)),
	}
	for cat, phase := range st.Phases {
		resp.Phases[cat.String()] = phase.String()
	}
	for cat, acc := range st.Accrued {
		resp.Accrued[cat.String()] = acc.Uint64()
	}
	return resp, nil
}
