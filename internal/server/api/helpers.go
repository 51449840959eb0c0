package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/levyledger/levyd/internal/codec/addresscodec"
	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/types"
)

// ParseAccount accepts an account in either of the two renderings levyd
// uses: the base58check address or the 40-character hex ID.
func ParseAccount(s string) (types.AccountID, error) {
	id, err := addresscodec.ParseAccountID(s)
	if err != nil {
		return types.ZeroAccount, fmt.Errorf("not a valid address or account ID: %q", s)
	}
	return id, nil
}

// decodeParams unmarshals params strictly: unknown fields are rejected so a
// mistyped parameter name fails loudly instead of silently defaulting.
func decodeParams(params json.RawMessage, dst interface{}) *Error {
	if len(params) == 0 {
		return errInvalidParams("missing params")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errInvalidParams(err.Error())
	}
	return nil
}

func accountParam(field, value string) (types.AccountID, *Error) {
	if value == "" {
		return types.ZeroAccount, errInvalidParams(fmt.Sprintf("missing %s", field))
	}
	id, err := ParseAccount(value)
	if err != nil {
		return types.ZeroAccount, errInvalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	return id, nil
}

func categoryParam(value string) (types.Category, *Error) {
	cat, err := types.ParseCategory(value)
	if err != nil {
		return 0, errInvalidParams(err.Error())
	}
	return cat, nil
}

// resultError maps a non-success engine outcome onto a JSON-RPC error whose
// code is the numeric result and whose message is the result name.
func resultError(res levy.Result) *Error {
	return &Error{
		Code:    int(res),
		Message: res.String(),
		Data:    res.Message(),
	}
}

// resultOrError folds the (Result, error) pair every mutating operation
// returns. Storage faults surface as internal errors, rejections as result
// errors, and success as nil.
func resultOrError(res levy.Result, err error) *Error {
	if err != nil && res == levy.InternalFailure {
		return errInternal(err.Error())
	}
	if !res.IsSuccess() {
		return resultError(res)
	}
	return nil
}

// addressOf renders an account in both forms for response payloads.
type addressView struct {
	Address string `json:"address"`
	Account string `json:"account"`
}

func addressOf(id types.AccountID) addressView {
	return addressView{
		Address: addresscodec.EncodeAccountID(id),
		Account: id.String(),
	}
}
