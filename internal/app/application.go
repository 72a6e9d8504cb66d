package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/photonft/market_layer/internal/app/events"
	marketsvc "github.com/photonft/market_layer/internal/app/services/market"
	"github.com/photonft/market_layer/internal/app/services/metadata"
	registrysvc "github.com/photonft/market_layer/internal/app/services/registry"
	walletsvc "github.com/photonft/market_layer/internal/app/services/wallet"
	"github.com/photonft/market_layer/internal/app/storage"
	"github.com/photonft/market_layer/internal/app/storage/memory"
	"github.com/photonft/market_layer/internal/app/system"
	"github.com/photonft/market_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Tokens   storage.TokenStore
	Listings storage.ListingStore
	Wallets  storage.WalletStore
}

// Options carries the marketplace identities and tunables.
type Options struct {
	Operator      string
	Escrow        string
	ListingPrice  *big.Int
	StatsSchedule string
}

// Application ties the marketplace services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Registry *registrysvc.Service
	Market   *marketsvc.Service
	Wallet   *walletsvc.Service
	Metadata metadata.Resolver
	Events   *events.Bus
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Operator == "" || opts.Escrow == "" {
		return nil, fmt.Errorf("operator and escrow identities are required")
	}

	mem := memory.New()
	if stores.Tokens == nil {
		stores.Tokens = mem
	}
	if stores.Listings == nil {
		stores.Listings = mem
	}
	if stores.Wallets == nil {
		stores.Wallets = mem
	}

	manager := system.NewManager()
	bus := events.NewBus()

	// One operation lock serialises every state-changing marketplace and
	// wallet operation.
	opLock := &sync.Mutex{}

	registryService := registrysvc.New(stores.Tokens, opts.Escrow, bus, log)
	walletService := walletsvc.New(stores.Wallets, opLock, log)
	marketService := marketsvc.New(stores.Listings, stores.Wallets, registryService, marketsvc.Config{
		Operator:     opts.Operator,
		Escrow:       opts.Escrow,
		ListingPrice: opts.ListingPrice,
	}, opLock, bus, log)

	resolver := metadata.NewHTTPResolver(nil, log)

	for _, name := range []string{"registry", "wallet", "market"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	stats := marketsvc.NewStatsCollector(marketService, opts.StatsSchedule, log)
	if err := manager.Register(stats); err != nil {
		return nil, fmt.Errorf("register %s: %w", stats.Name(), err)
	}

	return &Application{
		manager:  manager,
		log:      log,
		Registry: registryService,
		Market:   marketService,
		Wallet:   walletService,
		Metadata: resolver,
		Events:   bus,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
