// Package grpc serves the read-only levyd.v1.Query service. The service is
// registered through a hand-built ServiceDesc and speaks the same canonical
// CBOR encoding the state store uses, so there are no generated stubs.
package grpc

import (
	"fmt"
	"net"

	"github.com/levyledger/levyd/internal/config"
)

// ServerConfig holds configuration for the gRPC server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., "127.0.0.1:7032").
	Address string

	// MaxRecvMsgSize is the maximum message size in bytes the server can
	// receive. Default is 4MB if not set.
	MaxRecvMsgSize int

	// MaxSendMsgSize is the maximum message size in bytes the server can
	// send. Default is 4MB if not set.
	MaxSendMsgSize int
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:        "127.0.0.1:7032",
		MaxRecvMsgSize: 4 * 1024 * 1024,
		MaxSendMsgSize: 4 * 1024 * 1024,
	}
}

// FromConfig builds a ServerConfig from the node's grpc config section,
// filling defaults for unset sizes.
func FromConfig(cfg config.GRPCConfig) *ServerConfig {
	sc := DefaultServerConfig()
	if cfg.Listen != "" {
		sc.Address = cfg.Listen
	}
	if cfg.MaxRecvBytes > 0 {
		sc.MaxRecvMsgSize = cfg.MaxRecvBytes
		sc.MaxSendMsgSize = cfg.MaxRecvBytes
	}
	return sc
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}

	host, port, err := net.SplitHostPort(c.Address)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	if c.MaxRecvMsgSize <= 0 {
		return fmt.Errorf("max_recv_msg_size must be positive")
	}
	if c.MaxSendMsgSize <= 0 {
		return fmt.Errorf("max_send_msg_size must be positive")
	}
	return nil
}
