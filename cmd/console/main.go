package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/rbac-console/internal/console"
	"github.com/noah-isme/rbac-console/internal/gateway"
	"github.com/noah-isme/rbac-console/pkg/config"
	"github.com/noah-isme/rbac-console/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	logr, err := logger.NewConsole(cfg.Log.Level)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logr.Sync() //nolint:errcheck

	tokens, closeTokens, err := console.OpenTokenStore(ctx, cfg)
	if err != nil {
		logr.Error("failed to open token store", zap.String("store", cfg.Console.TokenStore), zap.Error(err))
		return 1
	}
	defer closeTokens()

	client := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Console.APIURL,
		Timeout: cfg.Console.RequestTimeout,
	}, nil, logr)

	app := console.New(console.Options{
		Gateway: client,
		Tokens:  tokens,
		Config:  cfg.Console,
		Logger:  logr,
	})

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		app.ReportError(err)
		if errors.Is(err, console.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
