package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/config"
	"github.com/levyledger/levyd/internal/types"
)

// Server handles HTTP JSON-RPC requests. It implements http.Handler so
// tests and the node can mount it wherever they need.
type Server struct {
	cfg      config.APIConfig
	registry *Registry
	log      *zap.Logger
	server   *http.Server

	admin    types.AccountID
	adminSet bool
}

func NewServer(cfg config.APIConfig, reg *Registry, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: reg,
		log:      log,
	}
	if cfg.AdminAddr != "" {
		admin, err := ParseAccount(cfg.AdminAddr)
		if err != nil {
			log.Warn("invalid api.admin_addr, admin methods locked out",
				zap.String("admin_addr", cfg.AdminAddr), zap.Error(err))
		} else {
			s.admin = admin
			s.adminSet = true
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/", s)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"levyd"}`))
	})
	s.server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("rpc endpoint listening", zap.String("addr", s.cfg.Listen))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGet serves parameterless queries like ?method=server_info.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("method")
	if name == "" {
		name = "server_info"
	}
	ctx := s.requestContext(r)
	result, rpcErr := s.execute(ctx, name, nil)
	writeResponse(w, Response{JsonRpc: "2.0", Result: result, Error: rpcErr})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		writeResponse(w, Response{JsonRpc: "2.0", Error: errInvalidRequest("request body too large or unreadable")})
		return
	}
	defer r.Body.Close()

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, Response{JsonRpc: "2.0", Error: errParse(err.Error())})
		return
	}
	if req.Method == "" {
		writeResponse(w, Response{JsonRpc: "2.0", ID: req.ID, Error: errInvalidRequest("missing method")})
		return
	}

	ctx := s.requestContext(r)
	result, rpcErr := s.execute(ctx, req.Method, req.Params)
	writeResponse(w, Response{JsonRpc: "2.0", ID: req.ID, Result: result, Error: rpcErr})
}

func (s *Server) execute(ctx *Context, name string, params json.RawMessage) (result interface{}, rpcErr *Error) {
	m, ok := s.registry.get(name)
	if !ok {
		return nil, errMethodNotFound(name)
	}
	if m.admin && !ctx.IsAdmin {
		return nil, &Error{Code: CodeInvalidRequest, Message: "admin interface disabled", Data: name}
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("rpc handler panic", zap.String("method", name), zap.Any("panic", rec))
			result, rpcErr = nil, errInternal("handler panic")
		}
	}()
	return m.handler(ctx, params)
}

func (s *Server) requestContext(r *http.Request) *Context {
	return &Context{
		Context:  r.Context(),
		Admin:    s.admin,
		IsAdmin:  s.adminSet,
		ClientIP: clientIP(r),
	}
}

func writeResponse(w http.ResponseWriter, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, `{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error"}}`, http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
