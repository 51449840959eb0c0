// Package api serves the JSON-RPC 2.0 surface: queries, transfer
// submission, distribution triggers, and the owner's admin operations.
package api

import (
	"context"
	"encoding/json"

	"github.com/levyledger/levyd/internal/types"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JsonRpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JsonRpc string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. Application failures carry the
// ledger result code as Code and the code name as Message.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 protocol error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

func errParse(detail string) *Error {
	return &Error{Code: CodeParseError, Message: "parse error", Data: detail}
}

func errInvalidRequest(detail string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: "invalid request", Data: detail}
}

func errMethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "method not found", Data: method}
}

func errInvalidParams(detail string) *Error {
	return &Error{Code: CodeInvalidParams, Message: "invalid params", Data: detail}
}

func errInternal(detail string) *Error {
	return &Error{Code: CodeInternalError, Message: "internal error", Data: detail}
}

// Context carries request-scoped information into handlers.
type Context struct {
	Context context.Context

	// Admin is the account the endpoint acts as on admin methods; it is
	// the decoded api.admin_addr. IsAdmin is false when none is configured,
	// which locks every admin method out.
	Admin   types.AccountID
	IsAdmin bool

	ClientIP string
}

// HandlerFunc executes one method.
type HandlerFunc func(ctx *Context, params json.RawMessage) (interface{}, *Error)

type method struct {
	handler HandlerFunc
	admin   bool
}

// Registry maps method names to handlers.
type Registry struct {
	methods map[string]method
}

func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]method)}
}

// Register adds a publicly callable method.
func (r *Registry) Register(name string, h HandlerFunc) {
	r.methods[name] = method{handler: h}
}

// RegisterAdmin adds a method restricted to the admin address.
func (r *Registry) RegisterAdmin(name string, h HandlerFunc) {
	r.methods[name] = method{handler: h, admin: true}
}

func (r *Registry) get(name string) (method, bool) {
	m, ok := r.methods[name]
	return m, ok
}

// List returns the registered method names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}
