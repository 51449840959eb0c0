package api

import (
	"encoding/json"
	"errors"

	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/storage/history"
	"github.com/levyledger/levyd/internal/types"
)

func (s *Services) requireHistory() *Error {
	if s.History == nil {
		return &Error{Code: CodeInvalidRequest, Message: "history store disabled"}
	}
	return nil
}

func historyError(err error) *Error {
	if errors.Is(err, history.ErrNotFound) {
		return &Error{Code: CodeInvalidParams, Message: "not found"}
	}
	return errInternal(err.Error())
}

type settlementParams struct {
	Seq uint64 `json:"seq"`
}

func (s *Services) settlement(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if rpcErr := s.requireHistory(); rpcErr != nil {
		return nil, rpcErr
	}
	var p settlementParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Seq == 0 {
		return nil, errInvalidParams("missing seq")
	}
	ev, err := s.History.Settlement(ctx.Context, p.Seq)
	if err != nil {
		return nil, historyError(err)
	}
	return ev, nil
}

type recentSettlementsParams struct {
	Limit int `json:"limit,omitempty"`
}

type settlementsResult struct {
	Settlements []events.Settlement `json:"settlements"`
}

func (s *Services) recentSettlements(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if rpcErr := s.requireHistory(); rpcErr != nil {
		return nil, rpcErr
	}
	var p recentSettlementsParams
	if len(params) > 0 {
		if rpcErr := decodeParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
	}
	evs, err := s.History.Recent(ctx.Context, p.Limit)
	if err != nil {
		return nil, historyError(err)
	}
	return settlementsResult{Settlements: evs}, nil
}

type accountSettlementsParams struct {
	Account string `json:"account"`
	Limit   int    `json:"limit,omitempty"`
}

func (s *Services) accountSettlements(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if rpcErr := s.requireHistory(); rpcErr != nil {
		return nil, rpcErr
	}
	var p accountSettlementsParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := accountParam("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	evs, err := s.History.AccountSettlements(ctx.Context, account, p.Limit)
	if err != nil {
		return nil, historyError(err)
	}
	return settlementsResult{Settlements: evs}, nil
}

type distributionsParams struct {
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type distributionsResult struct {
	Distributions []events.Distribution `json:"distributions"`
}

func (s *Services) distributions(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if rpcErr := s.requireHistory(); rpcErr != nil {
		return nil, rpcErr
	}
	var p distributionsParams
	if len(params) > 0 {
		if rpcErr := decodeParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if p.Category != "" {
		if _, err := types.ParseCategory(p.Category); err != nil {
			return nil, errInvalidParams(err.Error())
		}
	}
	evs, err := s.History.Distributions(ctx.Context, p.Category, p.Limit)
	if err != nil {
		return nil, historyError(err)
	}
	return distributionsResult{Distributions: evs}, nil
}

type distributionParams struct {
	ID string `json:"id"`
}

func (s *Services) distribution(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if rpcErr := s.requireHistory(); rpcErr != nil {
		return nil, rpcErr
	}
	var p distributionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.ID == "" {
		return nil, errInvalidParams("missing id")
	}
	ev, err := s.History.Distribution(ctx.Context, p.ID)
	if err != nil {
		return nil, historyError(err)
	}
	return ev, nil
}
