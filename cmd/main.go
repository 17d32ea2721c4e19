// Command smabot evaluates or runs a family of SMA strategy units on one trading pair.
// Each unit tracks one lookback window, buys when the price clears its moving
// average and sells when it falls back below it.
//
// Usage:
//
//	smabot --new --eval --pair BTC_USDT --days 59
//	smabot --resume --eval
//	smabot --new --run --days 5 --config config.yaml
//	smabot --clean
//	smabot --setup
//
// Optional environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/smabot/config"
	"github.com/vadiminshakov/smabot/internal"
	"github.com/vadiminshakov/smabot/internal/clients"
	"github.com/vadiminshakov/smabot/internal/setup"
)

const generatedConfig = "config.gen.yaml"

func main() {
	opts, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}

	if opts.Setup {
		path := opts.ConfigPath
		if path == "" {
			path = generatedConfig
		}
		res, err := setup.RunTUI(opts.Config, path)
		if err != nil {
			log.Fatal(err)
		}
		opts.Config = res.Config
		opts.Mode = res.Mode
		opts.Action = config.SessionNew
		opts.ConfigPath = path
	}

	logger, err := newLogger(opts.Config.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	client, err := clients.NewClient(opts.Config.Platform)
	if err != nil {
		logger.Fatal("failed to create exchange client", zap.Error(err))
	}

	bot, err := internal.NewTradingBot(logger.With(zap.String("pair", opts.Config.Pair.String())), opts, client, os.Stdout)
	if err != nil {
		logger.Fatal("failed to create trading bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("session failed", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
