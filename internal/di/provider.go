package di

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/codec/addresscodec"
	"github.com/levyledger/levyd/internal/config"
	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/exchange"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/core/treasury"
	"github.com/levyledger/levyd/internal/events"
	grpcserver "github.com/levyledger/levyd/internal/grpc"
	"github.com/levyledger/levyd/internal/logging"
	"github.com/levyledger/levyd/internal/metrics"
	"github.com/levyledger/levyd/internal/server/api"
	"github.com/levyledger/levyd/internal/server/stream"
	"github.com/levyledger/levyd/internal/storage/history"
	"github.com/levyledger/levyd/internal/storage/statestore"
	"github.com/levyledger/levyd/internal/types"
)

// Provider configures and registers services in the container.
type Provider struct {
	container *Container
	config    *config.Config
	version   string
	started   time.Time

	logClose func()
}

// NewProvider creates a new service provider. version is the build version
// reported by server_info.
func NewProvider(container *Container, cfg *config.Config, version string) *Provider {
	return &Provider{
		container: container,
		config:    cfg,
		version:   version,
		started:   time.Now(),
	}
}

// RegisterAll registers all services.
func (p *Provider) RegisterAll() error {
	p.container.Register(ServiceConfig, p.config)

	p.registerFoundationBuilders()
	p.registerStorageBuilders()
	p.registerCoreBuilders()
	p.registerServerBuilders()

	return nil
}

// registerFoundationBuilders registers the logger, event bus and metrics
// registry every other service hangs off.
func (p *Provider) registerFoundationBuilders() {
	p.container.RegisterBuilder(ServiceLogger, func(c *Container) (interface{}, error) {
		log, cleanup, err := logging.New(p.config.Log)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		p.logClose = cleanup
		return log, nil
	})

	p.container.RegisterBuilder(ServiceBus, func(c *Container) (interface{}, error) {
		return events.NewBus(), nil
	})

	p.container.RegisterBuilder(ServiceMetrics, func(c *Container) (interface{}, error) {
		return metrics.New(), nil
	})
}

// registerStorageBuilders registers the state store and the optional
// settlement history database.
func (p *Provider) registerStorageBuilders() {
	p.container.RegisterBuilder(ServiceStateStore, func(c *Container) (interface{}, error) {
		compressor := p.config.State.Compressor
		if compressor == "" {
			compressor = "lz4"
		}
		db, err := statestore.Open(&statestore.Config{
			Backend:         p.config.State.Backend,
			Path:            p.config.StatePath(),
			Compressor:      compressor,
			CompressionMin:  p.config.State.CompressionMin,
			CreateIfMissing: true,
		})
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
		return db, nil
	})

	p.container.RegisterBuilder(ServiceHistory, func(c *Container) (interface{}, error) {
		if !p.config.History.Enabled {
			return nil, nil
		}
		st, err := history.Open(context.Background(), history.Config{
			Driver:    p.config.History.Driver,
			DSN:       p.config.HistoryDSN(),
			CacheSize: p.config.History.CacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		return st, nil
	})
}

// registerCoreBuilders registers the ledger store, the exchange adapter and
// the two engines. The levy engine depends on the treasury engine so sales
// can trigger a distribution, and the treasury depends on the adapter, so
// resolution runs ledger, adapter, treasury, levy.
func (p *Provider) registerCoreBuilders() {
	p.container.RegisterBuilder(ServiceLedger, func(c *Container) (interface{}, error) {
		db, err := p.StateStore()
		if err != nil {
			return nil, err
		}
		gen, err := genesisFromConfig(p.config.Genesis)
		if err != nil {
			return nil, fmt.Errorf("genesis config: %w", err)
		}
		store, err := ledger.Open(db, gen)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		if log, logErr := p.Logger(); logErr == nil {
			params := store.Params()
			log.Info("ledger opened",
				zap.String("native_asset", string(params.NativeAsset)),
				zap.String("owner", addresscodec.EncodeAccountID(params.Owner)),
				zap.String("treasury", addresscodec.EncodeAccountID(params.Treasury)),
				zap.Uint64("seq", params.Seq),
			)
		}
		return store, nil
	})

	p.container.RegisterBuilder(ServiceAdapter, func(c *Container) (interface{}, error) {
		switch p.config.Exchange.Adapter {
		case "", "none":
			return nil, nil
		case "fixedrate":
			store, err := p.Ledger()
			if err != nil {
				return nil, err
			}
			params := store.Params()
			if params.SecondaryAsset == "" {
				return nil, fmt.Errorf("exchange adapter %q needs a secondary asset in genesis", p.config.Exchange.Adapter)
			}
			fr, err := exchange.NewFixedRate(exchange.FixedRateConfig{
				FromAsset:   params.NativeAsset,
				ToAsset:     params.SecondaryAsset,
				RateNum:     p.config.Exchange.FixedRate.RateNum,
				RateDen:     p.config.Exchange.FixedRate.RateDen,
				SlippageBps: p.config.Exchange.FixedRate.SlippageBps,
				Liquidity:   amount.New(p.config.Exchange.FixedRate.Liquidity),
			}, nil)
			if err != nil {
				return nil, fmt.Errorf("build fixedrate adapter: %w", err)
			}
			return fr, nil
		default:
			return nil, fmt.Errorf("unknown exchange adapter %q", p.config.Exchange.Adapter)
		}
	})

	p.container.RegisterBuilder(ServiceTreasury, func(c *Container) (interface{}, error) {
		store, err := p.Ledger()
		if err != nil {
			return nil, err
		}
		adapter, err := p.Adapter()
		if err != nil {
			return nil, err
		}
		bus, err := p.Bus()
		if err != nil {
			return nil, err
		}
		log, err := p.Logger()
		if err != nil {
			return nil, err
		}
		return treasury.New(store, adapter,
			treasury.WithBus(bus),
			treasury.WithLogger(log.Named("treasury")),
		), nil
	})

	p.container.RegisterBuilder(ServiceEngine, func(c *Container) (interface{}, error) {
		store, err := p.Ledger()
		if err != nil {
			return nil, err
		}
		tre, err := p.Treasury()
		if err != nil {
			return nil, err
		}
		bus, err := p.Bus()
		if err != nil {
			return nil, err
		}
		log, err := p.Logger()
		if err != nil {
			return nil, err
		}
		return levy.New(store,
			levy.WithDistributor(tre),
			levy.WithBus(bus),
			levy.WithLogger(log.Named("levy")),
		), nil
	})
}

// registerServerBuilders registers the four network surfaces. Each builder
// returns nil when its section is disabled in the configuration.
func (p *Provider) registerServerBuilders() {
	p.container.RegisterBuilder(ServiceAPIServer, func(c *Container) (interface{}, error) {
		if !p.config.API.Enabled {
			return nil, nil
		}
		engine, err := p.Engine()
		if err != nil {
			return nil, err
		}
		tre, err := p.Treasury()
		if err != nil {
			return nil, err
		}
		hist, err := p.History()
		if err != nil {
			return nil, err
		}
		log, err := p.Logger()
		if err != nil {
			return nil, err
		}
		services := &api.Services{
			Engine:   engine,
			Treasury: tre,
			History:  hist,
			Log:      log.Named("api"),
			NodeName: p.config.Node.Name,
			Version:  p.version,
			Started:  p.started,
		}
		registry := api.NewRegistry()
		services.Register(registry)
		return api.NewServer(p.config.API, registry, log.Named("api")), nil
	})

	p.container.RegisterBuilder(ServiceStreamServer, func(c *Container) (interface{}, error) {
		if !p.config.Stream.Enabled {
			return nil, nil
		}
		bus, err := p.Bus()
		if err != nil {
			return nil, err
		}
		log, err := p.Logger()
		if err != nil {
			return nil, err
		}
		return stream.NewServer(p.config.Stream, bus, log.Named("stream")), nil
	})

	p.container.RegisterBuilder(ServiceGRPCServer, func(c *Container) (interface{}, error) {
		if !p.config.GRPC.Enabled {
			return nil, nil
		}
		store, err := p.Ledger()
		if err != nil {
			return nil, err
		}
		tre, err := p.Treasury()
		if err != nil {
			return nil, err
		}
		log, err := p.Logger()
		if err != nil {
			return nil, err
		}
		srv, err := grpcserver.NewServer(grpcserver.FromConfig(p.config.GRPC), grpcserver.NewQueryService(store, tre), log.Named("grpc"))
		if err != nil {
			return nil, fmt.Errorf("build grpc server: %w", err)
		}
		return srv, nil
	})

	p.container.RegisterBuilder(ServiceMetricsServer, func(c *Container) (interface{}, error) {
		if !p.config.Metrics.Enabled {
			return nil, nil
		}
		m, err := p.Metrics()
		if err != nil {
			return nil, err
		}
		log, err := p.Logger()
		if err != nil {
			return nil, err
		}
		return metrics.NewServer(p.config.Metrics, m, log.Named("metrics")), nil
	})
}

// genesisFromConfig translates the configuration section into a ledger
// genesis. A zero-valued section yields nil, which lets a populated state
// store open without one.
func genesisFromConfig(cfg config.GenesisConfig) (*ledger.Genesis, error) {
	if cfg.Owner == "" && cfg.InitialSupply == 0 && cfg.NativeAsset == "" {
		return nil, nil
	}

	owner, err := addresscodec.ParseAccountID(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	treasuryAcct, err := addresscodec.ParseAccountID(cfg.Treasury)
	if err != nil {
		return nil, fmt.Errorf("treasury: %w", err)
	}
	holder := owner
	if cfg.SupplyHolder != "" {
		holder, err = addresscodec.ParseAccountID(cfg.SupplyHolder)
		if err != nil {
			return nil, fmt.Errorf("supply_holder: %w", err)
		}
	}

	rates := make(map[types.Category]uint32, len(cfg.Rates))
	for name, bps := range cfg.Rates {
		cat, err := types.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("rates: %w", err)
		}
		rates[cat] = bps
	}

	gen := &ledger.Genesis{
		NativeAsset:    types.Asset(cfg.NativeAsset),
		SecondaryAsset: types.Asset(cfg.SecondaryAsset),
		InitialSupply:  amount.New(cfg.InitialSupply),
		SupplyHolder:   holder,
		Owner:          owner,
		Treasury:       treasuryAcct,
		Rates:          rates,
		MaxTransfer:    amount.New(cfg.MaxTransfer),
		MaxWallet:      amount.New(cfg.MaxWallet),
		Threshold:      amount.New(cfg.Threshold),
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// GetConfig returns the configuration from the container.
func (p *Provider) GetConfig() *config.Config { return p.config }

// Logger returns the shared logger, building it on first use.
func (p *Provider) Logger() (*zap.Logger, error) {
	svc, err := p.container.Get(ServiceLogger)
	if err != nil {
		return nil, err
	}
	return svc.(*zap.Logger), nil
}

// Bus returns the event bus.
func (p *Provider) Bus() (*events.Bus, error) {
	svc, err := p.container.Get(ServiceBus)
	if err != nil {
		return nil, err
	}
	return svc.(*events.Bus), nil
}

// Metrics returns the metrics registry.
func (p *Provider) Metrics() (*metrics.Metrics, error) {
	svc, err := p.container.Get(ServiceMetrics)
	if err != nil {
		return nil, err
	}
	return svc.(*metrics.Metrics), nil
}

// StateStore returns the backing state database.
func (p *Provider) StateStore() (*statestore.DB, error) {
	svc, err := p.container.Get(ServiceStateStore)
	if err != nil {
		return nil, err
	}
	return svc.(*statestore.DB), nil
}

// History returns the settlement history store, or nil when disabled.
func (p *Provider) History() (*history.Store, error) {
	svc, err := p.container.Get(ServiceHistory)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc.(*history.Store), nil
}

// Ledger returns the ledger store.
func (p *Provider) Ledger() (*ledger.Store, error) {
	svc, err := p.container.Get(ServiceLedger)
	if err != nil {
		return nil, err
	}
	return svc.(*ledger.Store), nil
}

// Adapter returns the exchange adapter, or nil when none is configured.
func (p *Provider) Adapter() (exchange.Adapter, error) {
	svc, err := p.container.Get(ServiceAdapter)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc.(exchange.Adapter), nil
}

// Treasury returns the treasury engine.
func (p *Provider) Treasury() (*treasury.Engine, error) {
	svc, err := p.container.Get(ServiceTreasury)
	if err != nil {
		return nil, err
	}
	return svc.(*treasury.Engine), nil
}

// Engine returns the levy engine.
func (p *Provider) Engine() (*levy.Engine, error) {
	svc, err := p.container.Get(ServiceEngine)
	if err != nil {
		return nil, err
	}
	return svc.(*levy.Engine), nil
}

// APIServer returns the JSON-RPC server, or nil when disabled.
func (p *Provider) APIServer() (*api.Server, error) {
	svc, err := p.container.Get(ServiceAPIServer)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc.(*api.Server), nil
}

// StreamServer returns the websocket server, or nil when disabled.
func (p *Provider) StreamServer() (*stream.Server, error) {
	svc, err := p.container.Get(ServiceStreamServer)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc.(*stream.Server), nil
}

// GRPCServer returns the gRPC query server, or nil when disabled.
func (p *Provider) GRPCServer() (*grpcserver.Server, error) {
	svc, err := p.container.Get(ServiceGRPCServer)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc.(*grpcserver.Server), nil
}

// MetricsServer returns the Prometheus scrape server, or nil when disabled.
func (p *Provider) MetricsServer() (*metrics.Server, error) {
	svc, err := p.container.Get(ServiceMetricsServer)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc.(*metrics.Server), nil
}

// Close releases everything the provider has built, in dependency order:
// history and ledger first, then the state database they write through,
// then the logger. Services that were never constructed are skipped.
func (p *Provider) Close() error {
	var firstErr error

	if svc, ok := p.container.Instance(ServiceHistory); ok && svc != nil {
		if err := svc.(*history.Store).Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close history: %w", err)
		}
	}

	if svc, ok := p.container.Instance(ServiceLedger); ok && svc != nil {
		// Store.Close syncs and closes the backing database.
		if err := svc.(*ledger.Store).Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close ledger: %w", err)
		}
	} else if svc, ok := p.container.Instance(ServiceStateStore); ok && svc != nil {
		if err := svc.(*statestore.DB).Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close state store: %w", err)
		}
	}

	if p.logClose != nil {
		p.logClose()
	}
	return firstErr
}
