package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/config"
	"github.com/cloudx-io/assetauction/engine"
	"github.com/cloudx-io/assetauction/ledger"
	"github.com/cloudx-io/assetauction/registry"
	"github.com/cloudx-io/assetauction/server"
	"github.com/cloudx-io/assetauction/store"
)

func main() {
	cfg := config.Load()
	log := config.Logger(cfg.App.LogLevel)
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("open record store", zap.Error(err))
	}
	defer closeStore()

	receipts, err := receiptKeys(cfg)
	if err != nil {
		log.Fatal("load receipt key", zap.Error(err))
	}

	// The ledger and asset registry run in-process; balances do not survive a restart.
	led := ledger.NewMemory()
	reg := registry.NewMemory()
	if cfg.Store.Backend == config.StorePostgres {
		log.Warn("auction records are durable but ledger balances are not; active auctions from a previous run will fail the vault check until their escrow is restored")
	}

	eng, err := engine.New(engine.Config{
		AcceptedCurrency: cfg.App.AcceptedCurrency,
		PaymentDecimals:  cfg.App.PaymentDecimals,
	}, engine.Deps{
		Ledger:   led,
		Registry: reg,
		Store:    records,
		Clock:    engine.NewMonotonicClock(engine.SystemClock{}),
		Logger:   log,
		Receipts: receipts,
	})
	if err != nil {
		log.Fatal("engine init", zap.Error(err))
	}

	srv, err := server.New(server.Config{
		ListenAddr:               fmt.Sprintf(":%d", cfg.API.Port),
		PaymentDecimals:          cfg.App.PaymentDecimals,
		DevRoutes:                cfg.API.DevRoutes,
		ReadTimeout:              cfg.API.ReadTimeout,
		WriteTimeout:             cfg.API.WriteTimeout,
		GracefulShutdownDuration: cfg.API.ShutdownTimeout,
	}, server.Deps{
		Engine:    eng,
		Balances:  led,
		Receipts:  receipts,
		Logger:    log,
		Minter:    led,
		Registrar: reg,
	})
	if err != nil {
		log.Fatal("server init", zap.Error(err))
	}

	log.Info("auction engine starting",
		zap.String("accepted_currency", string(cfg.App.AcceptedCurrency)),
		zap.String("store", string(cfg.Store.Backend)),
		zap.Bool("receipts", receipts != nil),
	)
	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config) (engine.RecordStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pg, err := store.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

func receiptKeys(cfg config.Config) (*engine.KeyManager, error) {
	if !cfg.App.ReceiptSigning {
		return nil, nil
	}
	if cfg.App.ReceiptKeyFile == "" {
		return engine.NewKeyManager()
	}
	data, err := os.ReadFile(cfg.App.ReceiptKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read receipt key: %w", err)
	}
	return engine.NewKeyManagerFromPEM(data)
}
