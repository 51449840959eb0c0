// Package stream serves the websocket event feeds: clients subscribe to
// the settlements, distributions and admin streams and receive every event
// the engines publish while they are connected.
package stream

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/config"
	"github.com/levyledger/levyd/internal/events"
)

const (
	defaultSendBuffer  = 256
	defaultPingSeconds = 30

	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// readLimit bounds inbound command frames; commands are tiny.
	readLimit = 64 << 10
)

// Server accepts websocket connections and fans bus events out to them.
type Server struct {
	cfg    config.StreamConfig
	bus    *events.Bus
	log    *zap.Logger
	server *http.Server
	addr   atomic.Value

	mu    sync.RWMutex
	conns map[string]*connection
}

type connection struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu   sync.RWMutex
	subs map[events.Stream]struct{}
}

func NewServer(cfg config.StreamConfig, bus *events.Bus, log *zap.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		bus:   bus,
		log:   log,
		conns: make(map[string]*connection),
	}
	s.server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Addr reports the bound listen address once Run has opened it; empty
// before that. Useful with a ":0" listen config.
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

// ConnCount returns the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Run serves until ctx is cancelled. The bus subscription lives for the
// duration of the run; events published while no client is subscribed are
// simply discarded.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	s.addr.Store(ln.Addr().String())

	sub := s.bus.Subscribe(4 * events.DefaultBuffer)
	defer sub.Close()
	go s.dispatch(sub)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("stream endpoint listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
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
	err = s.server.Shutdown(shutdownCtx)

	// Shutdown does not touch hijacked connections; drop them ourselves.
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		s.drop(c)
	}
	return err
}

// ServeHTTP upgrades the request and starts the connection pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	buffer := s.cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		id:     uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, buffer),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[events.Stream]struct{}),
	}

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.log.Debug("stream client connected",
		zap.String("conn", c.id), zap.String("remote", ws.RemoteAddr().String()))

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) pingInterval() time.Duration {
	secs := s.cfg.PingSeconds
	if secs <= 0 {
		secs = defaultPingSeconds
	}
	return time.Duration(secs) * time.Second
}

// readPump reads client commands until the connection dies.
func (s *Server) readPump(c *connection) {
	defer s.drop(c)

	pongWait := s.pingInterval() + writeWait
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Debug("websocket read failed", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		s.handleCommand(c, message)
	}
}

// writePump is the sole writer on the socket: it drains the send queue and
// keeps the connection alive with pings.
func (s *Server) writePump(c *connection) {
	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				s.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drop(c)
				return
			}
		}
	}
}

func (s *Server) drop(c *connection) {
	c.once.Do(func() {
		c.cancel()
		_ = c.ws.Close()
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		s.log.Debug("stream client disconnected", zap.String("conn", c.id))
	})
}

// dispatch forwards bus events to every subscribed connection. A client
// whose send queue is full misses the event rather than stalling the rest.
func (s *Server) dispatch(sub *events.Subscription) {
	for ev := range sub.C() {
		data, err := json.Marshal(eventEnvelope{Type: typeName(ev.Stream()), Event: ev})
		if err != nil {
			s.log.Error("marshal stream event", zap.Error(err))
			continue
		}
		stream := ev.Stream()

		s.mu.RLock()
		for _, c := range s.conns {
			c.mu.RLock()
			_, subscribed := c.subs[stream]
			c.mu.RUnlock()
			if !subscribed {
				continue
			}
			select {
			case c.send <- data:
			default:
				s.log.Debug("slow stream client missed event", zap.String("conn", c.id))
			}
		}
		s.mu.RUnlock()
	}
}
