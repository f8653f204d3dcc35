package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"zone-backtest/services/config"
	"zone-backtest/services/engine"
	"zone-backtest/services/fetcher"
	"zone-backtest/services/live"
)

func main() {
	cfgPath := flag.String("config", "", "Strategy config YAML (defaults used when empty)")
	feedURL := flag.String("feed-url", "http://localhost:8080", "Candle feed base URL")
	interval := flag.Duration("interval", 0, "Rescan interval; 0 runs a single scan")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	scanner := live.NewScanner(cfg, fetcher.New(*feedURL, logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scan := func() {
		scanCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		printResults(scanner.ScanOnce(scanCtx))
	}

	scan()
	if *interval <= 0 {
		return
	}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

func printResults(results map[string]live.PairResult) {
	pairs := make([]string, 0, len(results))
	for p := range results {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)

	fmt.Printf("=== Scan %s ===\n", time.Now().UTC().Format("2006-01-02 15:04:05"))
	for _, p := range pairs {
		r := results[p]
		if r.Err != nil {
			fmt.Printf("%-8s FEED ERROR: %v\n", p, r.Err)
			continue
		}
		s := r.Signal
		if s.Direction == engine.DirectionNone {
			fmt.Printf("%-8s no signal\n", p)
			continue
		}
		fmt.Printf("%-8s %s conf=%.2f entry=%s stop=%s target=%s rr=%s\n",
			p, s.Direction, s.Confidence, s.Entry, s.Stop, s.Target, s.RiskReward.StringFixed(2))
	}
}
