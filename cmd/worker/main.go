package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CryptoPayRecon/internal/chain"
	"CryptoPayRecon/internal/config"
	"CryptoPayRecon/internal/db"
	"CryptoPayRecon/internal/models"
	"CryptoPayRecon/internal/pricing"
	"CryptoPayRecon/internal/store"
	"CryptoPayRecon/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	adapters := chain.NewRegistry(
		chain.NewTronAdapter(cfg.Explorers.TronGridURL, cfg.Explorers.TronAPIKey),
		chain.NewTRC20Adapter(cfg.Explorers.TronGridURL, cfg.Explorers.TronAPIKey, cfg.Explorers.USDTContract),
		chain.NewXRPLAdapter(cfg.Explorers.XRPScanURL),
		chain.NewCardanoAdapter(cfg.Explorers.CardanoscanURL, cfg.Explorers.CardanoAPIKey),
	)

	window := time.Duration(cfg.Reconciler.WindowMinutes) * time.Minute
	rec := &worker.Reconciler{
		Store:      st,
		Adapters:   adapters,
		Interval:   time.Duration(cfg.Reconciler.IntervalSeconds) * time.Second,
		Window:     window,
		FetchLimit: cfg.Reconciler.FetchLimit,
	}

	prices := &pricing.Service{
		Store:    st,
		Source:   pricing.NewTGJUSource(cfg.Pricing.SourceURL),
		Interval: time.Duration(cfg.Pricing.RefreshMinutes) * time.Minute,
	}
	go prices.Run(ctx)

	listener := &chain.XRPLListener{
		Endpoint: cfg.Explorers.XRPLWSEndpoint,
		Watched: func(ctx context.Context, address string) bool {
			ok, err := st.HasActivePaymentTo(ctx, models.AssetXRP, address, window)
			if err != nil {
				log.Printf("xrpl watched lookup failed: %v", err)
				return false
			}
			return ok
		},
		Wake: rec.Wake,
	}
	go listener.Run(ctx)

	// Discovery loop: newly registered payments restart a stopped reconciler.
	go func() {
		ticker := time.NewTicker(rec.Interval)
		defer ticker.Stop()
		for {
			if err := rec.EnsureRunning(ctx); err != nil {
				log.Printf("ensure running failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	log.Printf("worker started (interval=%ds window=%dm)", cfg.Reconciler.IntervalSeconds, cfg.Reconciler.WindowMinutes)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	rec.Stop()
}
