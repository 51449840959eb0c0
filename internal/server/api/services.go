package api

import (
	"time"

	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/core/treasury"
	"github.com/levyledger/levyd/internal/storage/history"
)

// Services bundles everything the method handlers reach into. History is
// optional; history-backed methods answer with an error when it is absent.
type Services struct {
	Engine   *levy.Engine
	Treasury *treasury.Engine
	History  *history.Store
	Log      *zap.Logger

	NodeName string
	Version  string
	Started  time.Time
}

// Register wires every method into reg. Admin methods act as the endpoint's
// configured admin account.
func (s *Services) Register(reg *Registry) {
	// Queries.
	reg.Register("ping", s.ping)
	reg.Register("server_info", s.serverInfo)
	reg.Register("balance", s.balance)
	reg.Register("supply", s.supply)
	reg.Register("rates", s.rates)
	reg.Register("plan", s.plan)
	reg.Register("account_flags", s.accountFlags)
	reg.Register("distributed", s.distributed)
	reg.Register("treasury_status", s.treasuryStatus)

	// History.
	reg.Register("settlement", s.settlement)
	reg.Register("recent_settlements", s.recentSettlements)
	reg.Register("account_settlements", s.accountSettlements)
	reg.Register("distributions", s.distributions)
	reg.Register("distribution", s.distribution)

	// Transfers.
	reg.Register("submit", s.submit)

	// Owner operations.
	reg.RegisterAdmin("distribute", s.distribute)
	reg.RegisterAdmin("set_rate", s.setRate)
	reg.RegisterAdmin("set_frozen", s.setFrozen)
	reg.RegisterAdmin("set_limits", s.setLimits)
	reg.RegisterAdmin("set_registry", s.setRegistry)
	reg.RegisterAdmin("set_class", s.setClass)
	reg.RegisterAdmin("clear_class", s.clearClass)
	reg.RegisterAdmin("transfer_ownership", s.transferOwnership)
	reg.RegisterAdmin("configure_plan", s.configurePlan)
	reg.RegisterAdmin("set_threshold", s.setThreshold)
	reg.RegisterAdmin("set_secondary_asset", s.setSecondaryAsset)
}
