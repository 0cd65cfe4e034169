package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davebshow/asyncbolt/internal/boltdemo"
	"github.com/davebshow/asyncbolt/internal/boltserver"
	"github.com/davebshow/asyncbolt/internal/config"
	"github.com/davebshow/asyncbolt/internal/logger"
)

func main() {
	cliCfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cliCfg.showVersion {
		fmt.Println(version)
		return
	}

	var cfg *config.Config
	if cliCfg.configPath != "" {
		cfg, err = config.Load(cliCfg.configPath)
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}
	if cliCfg.listenAddr != "" {
		cfg.ListenAddr = cliCfg.listenAddr
	}
	if cliCfg.logLevel != "" {
		cfg.LogLevel = cliCfg.logLevel
	}

	logger.Init()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.LogLevel)
	}
	log := logger.Logger().With("component", "cli")

	server := boltserver.New(boltserver.Config{
		ListenAddr:             cfg.ListenAddr,
		SupportedVersions:      cfg.SupportedVersions,
		RunFunc:                boltdemo.RunFunc,
		VerifyAuthFunc:         boltdemo.VerifyAuthFunc(cfg.Auth),
		AdmissionRatePerSecond: cfg.Admission.RatePerSecond,
		AdmissionBurst:         cfg.Admission.Burst,
	})

	if err := server.Start(); err != nil {
		log.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	log.Info("server started", "addr", server.Addr().String(), "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := server.Stop(); err != nil {
			log.Error("server stop error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("server stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}
