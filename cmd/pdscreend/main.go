// pdscreend is the screening daemon: it serves the HTTP and WebSocket
// analysis endpoints for local browser clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pdscreen/internal/config"
	"pdscreen/internal/logging"
	"pdscreen/internal/server"
	"pdscreen/internal/store"
)

var (
	configPath = flag.String("config", "", "path to config file")
	listenAddr = flag.String("listen", "", "listen address override (host:port)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.Addr = *listenAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		Component: "pdscreend",
	})
	logging.SetDefault(log)

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.Error("open store", "path", cfg.Storage.Path, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	srv, err := server.New(cfg, log, st)
	if err != nil {
		log.Error("initialize server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
