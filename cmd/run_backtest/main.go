package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"zone-backtest/services/candles"
	ch "zone-backtest/services/clickhouse"
	"zone-backtest/services/config"
	"zone-backtest/services/engine"
)

func main() {
	cfgPath := flag.String("config", "", "Strategy config YAML (defaults used when empty)")
	csvDir := flag.String("csv-dir", "", "Directory of per-pair CSVs named <PAIR>.csv; skips ClickHouse")
	chAddr := flag.String("ch-addr", "localhost:9000", "ClickHouse native address")
	chDB := flag.String("ch-db", "forex", "ClickHouse database")
	chTable := flag.String("ch-table", "candles", "ClickHouse table")
	chUser := flag.String("ch-user", "default", "ClickHouse user")
	chPass := flag.String("ch-pass", "", "ClickHouse password")
	from := flag.String("from", "2023-01-01 00:00:00", "Start UTC (YYYY-MM-DD HH:MM:SS)")
	to := flag.String("to", "2024-01-01 00:00:00", "End UTC (YYYY-MM-DD HH:MM:SS)")
	tradesOut := flag.String("trades-out", "./trades.csv", "Closed trades CSV output")
	manifestOut := flag.String("manifest-out", "./run_manifest.json", "Run manifest JSON output")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	data, err := loadData(cfg, *csvDir, chOptions(*chAddr, *chDB, *chTable, *chUser, *chPass), *from, *to, logger)
	if err != nil {
		logger.Fatal("load data", zap.Error(err))
	}

	res, err := engine.RunBacktest(cfg, data, logger)
	if err != nil {
		logger.Fatal("backtest", zap.Error(err))
	}

	m := res.Metrics
	fmt.Println("=== Zone Backtest Summary ===")
	fmt.Printf("Period: %s to %s UTC\n", *from, *to)
	fmt.Printf("Pairs: %s\n", strings.Join(cfg.Pairs, ","))
	fmt.Printf("Trades: %d (skipped bars: %d)\n", m.TotalTrades, res.SkippedBars)
	fmt.Printf("WinRate: %.2f%%, ProfitFactor: %.2f, TradesPerMonth: %.2f\n",
		m.WinRate*100, m.ProfitFactor, m.TradesPerMonth)
	fmt.Printf("Equity: %s -> %s (MaxDrawdown %.2f%%)\n",
		res.StartEquity.StringFixed(2), res.FinalEquity.StringFixed(2), m.MaxDrawdown*100)

	if err := exportTrades(*tradesOut, res.Trades); err != nil {
		logger.Error("export trades", zap.Error(err))
	}
	if err := exportManifest(*manifestOut, cfg, data, res, *from, *to); err != nil {
		logger.Error("export manifest", zap.Error(err))
	}
}

func newLogger(verbose bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func chOptions(addr, db, table, user, pass string) ch.Options {
	return ch.Options{Addr: addr, Database: db, Table: table, Username: user, Password: pass}
}

func loadData(cfg *config.Config, csvDir string, opts ch.Options, from, to string, logger *zap.Logger) (map[string][]candles.Candle, error) {
	base := candles.Timeframe(cfg.BaseTimeframe)
	data := make(map[string][]candles.Candle, len(cfg.Pairs))

	if csvDir != "" {
		for _, pair := range cfg.Pairs {
			s, skipped, err := candles.LoadCSV(filepath.Join(csvDir, pair+".csv"), pair, base)
			if err != nil {
				return nil, fmt.Errorf("pair %s: %w", pair, err)
			}
			if skipped > 0 {
				logger.Warn("skipped csv rows", zap.String("pair", pair), zap.Int("rows", skipped))
			}
			data[pair] = s.Bars()
		}
		return data, nil
	}

	fromMs, err := parseUTC(from)
	if err != nil {
		return nil, fmt.Errorf("parse -from: %w", err)
	}
	toMs, err := parseUTC(to)
	if err != nil {
		return nil, fmt.Errorf("parse -to: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	store, err := ch.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	for _, pair := range cfg.Pairs {
		bars, err := store.QueryCandles(ctx, pair, base, fromMs, toMs)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", pair, err)
		}
		logger.Info("loaded candles", zap.String("pair", pair), zap.Int("bars", len(bars)))
		data[pair] = bars
	}
	return data, nil
}

func parseUTC(s string) (int64, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return 0, err
	}
	return t.UTC().UnixMilli(), nil
}

func exportTrades(path string, trades []*engine.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, "id,pair,direction,entry,stop,target,size,opened_at,closed_at,exit_price,reason,pnl"); err != nil {
		return err
	}
	for _, t := range trades {
		_, err := fmt.Fprintf(f, "%d,%s,%s,%s,%s,%s,%s,%d,%d,%s,%s,%s\n",
			t.ID, t.Pair, t.Direction, t.Entry, t.Stop, t.Target, t.Size,
			t.OpenedAt, t.ClosedAt, t.ExitPrice, t.Reason, t.Pnl)
		if err != nil {
			return err
		}
	}
	return nil
}

// exportManifest records what produced the run: the config hash plus data
// extents, so two result files are comparable at a glance.
func exportManifest(path string, cfg *config.Config, data map[string][]candles.Candle, res *engine.BacktestResult, from, to string) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(cfgJSON)

	bars := make(map[string]int, len(data))
	for pair, b := range data {
		bars[pair] = len(b)
	}
	manifest := map[string]any{
		"config_sha256": hex.EncodeToString(sum[:]),
		"from":          from,
		"to":            to,
		"bars":          bars,
		"skipped_bars":  res.SkippedBars,
		"trades":        res.Metrics.TotalTrades,
		"final_equity":  res.FinalEquity.String(),
		"generated_at":  time.Now().UTC().Format(time.RFC3339),
	}
	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
