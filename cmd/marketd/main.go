// Command marketd runs the photo NFT marketplace API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	app "github.com/photonft/market_layer/internal/app"
	"github.com/photonft/market_layer/internal/app/httpapi"
	"github.com/photonft/market_layer/internal/app/metrics"
	"github.com/photonft/market_layer/internal/app/storage/postgres"
	"github.com/photonft/market_layer/internal/config"
	"github.com/photonft/market_layer/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := flag.String("config", "", "path to YAML configuration (optional)")
	flag.Parse()

	log := logger.NewDefault("marketd")
	if err := run(ctx, *configPath, log); err != nil {
		log.Fatalf("marketd: %v", err)
	}
}

func run(ctx context.Context, configPath string, log *logger.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log = logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("component", "marketd")

	listingPrice, err := cfg.Market.ListingPriceWei()
	if err != nil {
		return err
	}

	stores := app.Stores{}
	if strings.EqualFold(cfg.Storage.Driver, "postgres") {
		db, err := postgres.Open(cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		store := postgres.New(db)
		stores = app.Stores{Tokens: store, Listings: store, Wallets: store}
		log.Info("using postgres storage")
	} else {
		log.Info("using in-memory storage")
	}

	application, err := app.New(stores, app.Options{
		Operator:      cfg.Market.Operator,
		Escrow:        cfg.Market.Escrow,
		ListingPrice:  listingPrice,
		StatsSchedule: cfg.Stats.Schedule,
	}, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	api, err := httpapi.NewHandler(application, httpapi.Options{
		JWTSecret:            cfg.Auth.JWTSecret,
		OperatorPasswordHash: cfg.Auth.OperatorPasswordHash,
		TokenTTLMinutes:      cfg.Auth.TokenTTLMinutes,
		AuditFile:            cfg.Audit.File,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	chain := metrics.InstrumentHandler(api)
	chain = httpapi.RateLimit(chain, cfg.Server.RateLimit, cfg.Server.RateBurst)
	chain = httpapi.CORS(chain, cfg.Server.AllowedOrigins)
	mux.Handle("/", chain)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warnf("http shutdown incomplete")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warnf("service shutdown incomplete")
	}
	log.Info("marketd stopped")
	return nil
}
