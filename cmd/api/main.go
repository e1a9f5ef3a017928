package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CryptoPayRecon/internal/chain"
	"CryptoPayRecon/internal/config"
	"CryptoPayRecon/internal/db"
	internalhttp "CryptoPayRecon/internal/http"
	"CryptoPayRecon/internal/pricing"
	"CryptoPayRecon/internal/services"
	"CryptoPayRecon/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
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
	prices := &pricing.Service{
		Store:  st,
		Source: pricing.NewTGJUSource(cfg.Pricing.SourceURL),
	}
	paymentSvc := &services.PaymentService{
		Store:    st,
		Prices:   prices,
		Adapters: adapters,
	}

	h := internalhttp.NewHandler(paymentSvc, prices)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
