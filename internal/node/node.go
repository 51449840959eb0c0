// Package node assembles a levyd process: it builds the service graph for a
// configuration, launches every enabled network surface, and tears the
// whole thing down again in dependency order.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/levyledger/levyd/internal/config"
	"github.com/levyledger/levyd/internal/di"
)

// DefaultStopTimeout bounds Run's shutdown once its context is canceled.
const DefaultStopTimeout = 10 * time.Second

// Node is a fully wired levyd process. Build one with New, then either
// drive Start and Stop yourself or let Run handle the lifecycle.
type Node struct {
	cfg      *config.Config
	provider *di.Provider
	log      *zap.Logger
	version  string

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
	unwatch []func()
}

// New registers the service graph for cfg and opens the ledger eagerly, so
// a bad genesis or an unreadable state directory fails here instead of on
// the first request.
func New(cfg *config.Config, version string) (*Node, error) {
	container := di.New()
	provider := di.NewProvider(container, cfg, version)
	if err := provider.RegisterAll(); err != nil {
		return nil, err
	}

	log, err := provider.Logger()
	if err != nil {
		return nil, err
	}
	if _, err := provider.Ledger(); err != nil {
		_ = provider.Close()
		return nil, err
	}

	return &Node{
		cfg:      cfg,
		provider: provider,
		log:      log.Named("node"),
		version:  version,
	}, nil
}

// Provider exposes the service graph, mainly for tests and tooling.
func (n *Node) Provider() *di.Provider { return n.provider }

// Start builds the engines, wires the event watchers, and launches every
// enabled server in its own goroutine. It returns once everything is
// listening; failures after that surface through Stop or Run.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return errors.New("node already started")
	}

	// The engine chain pulls in the treasury and the exchange adapter, so
	// building it validates the whole core graph up front.
	if _, err := n.provider.Engine(); err != nil {
		return err
	}

	bus, err := n.provider.Bus()
	if err != nil {
		return err
	}
	log, err := n.provider.Logger()
	if err != nil {
		return err
	}

	hist, err := n.provider.History()
	if err != nil {
		return err
	}
	if hist != nil {
		n.unwatch = append(n.unwatch, hist.Watch(bus, log.Named("history")))
	}

	if n.cfg.Metrics.Enabled {
		m, err := n.provider.Metrics()
		if err != nil {
			return err
		}
		store, err := n.provider.Ledger()
		if err != nil {
			return err
		}
		m.WatchStore(store)
		n.unwatch = append(n.unwatch, m.Watch(bus))
	}

	type surface struct {
		name string
		run  func(context.Context) error
	}
	var surfaces []surface

	if srv, err := n.provider.APIServer(); err != nil {
		return err
	} else if srv != nil {
		surfaces = append(surfaces, surface{"api", srv.Run})
	}
	if srv, err := n.provider.StreamServer(); err != nil {
		return err
	} else if srv != nil {
		surfaces = append(surfaces, surface{"stream", srv.Run})
	}
	if srv, err := n.provider.GRPCServer(); err != nil {
		return err
	} else if srv != nil {
		surfaces = append(surfaces, surface{"grpc", srv.Run})
	}
	if srv, err := n.provider.MetricsServer(); err != nil {
		return err
	} else if srv != nil {
		surfaces = append(surfaces, surface{"metrics", srv.Run})
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	names := make([]string, 0, len(surfaces))
	for _, s := range surfaces {
		s := s
		names = append(names, s.name)
		g.Go(func() error {
			if err := s.run(gctx); err != nil {
				return fmt.Errorf("%s server: %w", s.name, err)
			}
			return nil
		})
	}

	if len(surfaces) == 0 {
		n.log.Warn("no server surfaces enabled, node will exit immediately")
	}
	n.log.Info("node started",
		zap.String("version", n.version),
		zap.Strings("servers", names),
	)

	n.cancel = cancel
	n.done = make(chan struct{})
	n.started = true
	go func() {
		err := g.Wait()
		n.mu.Lock()
		n.runErr = err
		n.mu.Unlock()
		close(n.done)
	}()
	return nil
}

// Stop fans the cancellation out to every server, waits for them within
// ctx, detaches the event watchers, and closes the stores. It is a no-op
// on a node that never started.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.started || n.stopped {
		n.mu.Unlock()
		return nil
	}
	n.stopped = true
	cancel := n.cancel
	done := n.done
	unwatch := n.unwatch
	n.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("node shutdown timed out: %w", ctx.Err())
	}

	for _, stop := range unwatch {
		stop()
	}
	err := n.provider.Close()
	n.log.Info("node stopped")
	return err
}

// Run starts the node and blocks until ctx is canceled or a server fails,
// then stops everything within DefaultStopTimeout. The error is the server
// failure when there was one, otherwise whatever shutdown reported.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(); err != nil {
		_ = n.provider.Close()
		return err
	}

	select {
	case <-ctx.Done():
	case <-n.done:
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), DefaultStopTimeout)
	defer cancelStop()
	stopErr := n.Stop(stopCtx)

	n.mu.Lock()
	runErr := n.runErr
	n.mu.Unlock()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return stopErr
}
