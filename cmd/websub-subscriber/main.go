package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/securedimensions/websub-subscriber"
	"github.com/securedimensions/websub-subscriber/config"
	"github.com/securedimensions/websub-subscriber/internal/log"
	"github.com/securedimensions/websub-subscriber/store/memory"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.Setup(cfg.LogLevel)

	st := memory.New(memory.WithLogger(log.WithComponent("store")))
	defer st.Close()

	sub := subscriber.New(st, cfg.CallbackURL, cfg.WebsocketOrigins,
		subscriber.WithLeaseSeconds(cfg.LeaseSeconds),
		subscriber.WithLeaseSkew(cfg.LeaseSkewSeconds),
		subscriber.WithLogger(logger))
	defer sub.Close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           sub,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("subscriber listening", "addr", cfg.Listen, "callback_url", cfg.CallbackURL)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	<-interrupt

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
