package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdhira/loginzap/internal/config"
	"github.com/kdhira/loginzap/internal/logging"
	"github.com/kdhira/loginzap/internal/server"
)

func main() {
	var (
		configPath   string
		validateOnly bool
	)
	fs := flag.NewFlagSet("loginzap", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "path to YAML/JSON configuration file")
	fs.BoolVar(&validateOnly, "validate-config", false, "loads configuration and exits after validation")
	cfg := config.MustParseFlags(fs, os.Args[1:])
	if configPath != "" {
		fileCfg, err := config.LoadFile(configPath)
		if err != nil {
			log.Fatalf("failed to load config file: %v", err)
		}
		cfg = config.Merge(cfg, fileCfg)
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid merged config: %v", err)
		}
	}

	if validateOnly {
		fmt.Println("configuration validated successfully")
		return
	}

	level, _ := cfg.SlogLevel()
	logger, closer, err := logging.New(cfg.LogFile, level)
	if err != nil {
		log.Fatalf("failed to create log writer: %v", err)
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			log.Printf("failed to close logger: %v", cerr)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := server.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to configure server", "error", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()
	logger.Info("listening", "addr", cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	case err := <-serverErr:
		srv.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server terminated", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "server exited with error: %v\n", err)
	}
}
