// pricewatch tails the exchange's public ticker stream and prints a colored
// price tape for the configured symbols. Useful for eyeballing the markets a
// pool trades without touching any account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/backfarm/poolbot/backpack/stream"
	"github.com/backfarm/poolbot/pkg/config"
)

const (
	colorReset = "\033[0m"
	colorUp    = "\033[32m"
	colorDown  = "\033[31m"
)

func main() {
	configPath := flag.String("config", "", "YAML config file path")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (default: configured strategy symbols)")
	wsURL := flag.String("ws", "", "websocket endpoint override")
	proxyURL := flag.String("proxy", "", "proxy URL for the stream connection")
	flag.Parse()

	_ = godotenv.Load()
	log.SetLevel(log.WarnLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	symbols := splitSymbols(*symbolsFlag)
	if len(symbols) == 0 {
		symbols = cfg.Strategy.Symbols
	}
	if len(symbols) == 0 {
		symbols = []string{"ETH_USDC_PERP", "SOL_USDC_PERP"}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tickers := stream.NewTickers(stream.Config{
		URL:      *wsURL,
		ProxyURL: *proxyURL,
	}, symbols...)

	done := make(chan error, 1)
	go func() { done <- tickers.Run(ctx) }()

	fmt.Printf("watching %s\n", strings.Join(symbols, ", "))
	for update := range tickers.Updates() {
		printTick(update)
	}

	if err := <-done; err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "stream: %v\n", err)
		os.Exit(1)
	}
}

func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printTick(update stream.TickerUpdate) {
	last, err := decimal.NewFromString(update.LastPrice)
	if err != nil {
		return
	}

	color := colorUp
	arrow := "+"
	changePct := decimal.Zero
	if open, err := decimal.NewFromString(update.OpenPrice); err == nil && !open.IsZero() {
		changePct = last.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
		if changePct.IsNegative() {
			color = colorDown
			arrow = ""
		}
	}

	at := time.UnixMilli(update.EventTime)
	if update.EventTime == 0 {
		at = time.Now()
	}
	fmt.Printf("[%s] %-16s %s%s  %s%s%%%s  vol %s\n",
		at.Format("15:04:05"), update.Symbol,
		color, last.String(),
		arrow, changePct.StringFixed(2), colorReset,
		update.QuoteVolume)
}
