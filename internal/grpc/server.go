package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Server wraps the gRPC server with the node's run/stop lifecycle.
type Server struct {
	mu sync.RWMutex

	grpcServer *grpc.Server
	config     *ServerConfig
	log        *zap.Logger
	listener   net.Listener
	running    bool
}

// NewServer creates a gRPC server and registers the Query service on it.
func NewServer(cfg *ServerConfig, query QueryServer, log *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.UnaryInterceptor(loggingInterceptor(log)),
	}
	grpcServer := grpc.NewServer(opts...)
	RegisterQueryServer(grpcServer, query)

	return &Server{
		grpcServer: grpcServer,
		config:     cfg,
		log:        log,
	}, nil
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("grpc endpoint listening", zap.String("addr", listener.Addr().String()))
		if err := s.grpcServer.Serve(listener); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.setStopped()
		return err
	case <-ctx.Done():
	}

	s.grpcServer.GracefulStop()
	s.setStopped()
	return nil
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns true while the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the bound listen address, empty before Run.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// loggingInterceptor reports every call and its outcome at debug level.
func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("grpc call",
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return resp, err
	}
}
