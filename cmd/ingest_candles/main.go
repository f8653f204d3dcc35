// Pulls candle history from the HTTP feed into ClickHouse. Re-running a
// range is safe: the store deduplicates on (pair, timeframe, open time),
// and ingestion resumes past the newest stored bar unless -from is forced.
package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"go.uber.org/zap"

	"zone-backtest/services/candles"
	ch "zone-backtest/services/clickhouse"
	"zone-backtest/services/config"
	"zone-backtest/services/fetcher"
)

func main() {
	cfgPath := flag.String("config", "", "Strategy config YAML (defaults used when empty)")
	feedURL := flag.String("feed-url", "http://localhost:8080", "Candle feed base URL")
	chAddr := flag.String("ch-addr", "localhost:9000", "ClickHouse native address")
	chDB := flag.String("ch-db", "forex", "ClickHouse database")
	chTable := flag.String("ch-table", "candles", "ClickHouse table")
	chUser := flag.String("ch-user", "default", "ClickHouse user")
	chPass := flag.String("ch-pass", "", "ClickHouse password")
	from := flag.String("from", "", "Start UTC (YYYY-MM-DD HH:MM:SS); empty resumes from the store")
	to := flag.String("to", "", "End UTC; empty means now")
	pairsFlag := flag.String("pairs", "", "Comma-separated pair override")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	pairs := cfg.Pairs
	if *pairsFlag != "" {
		pairs = strings.Split(*pairsFlag, ",")
		for i := range pairs {
			pairs[i] = strings.TrimSpace(pairs[i])
		}
	}

	ctx := context.Background()
	store, err := ch.Open(ctx, ch.Options{
		Addr: *chAddr, Database: *chDB, Table: *chTable, Username: *chUser, Password: *chPass,
	})
	if err != nil {
		logger.Fatal("clickhouse", zap.Error(err))
	}
	defer store.Close()

	feed := fetcher.New(*feedURL, logger)
	base := candles.Timeframe(cfg.BaseTimeframe)

	toMs := time.Now().UTC().UnixMilli()
	if *to != "" {
		if toMs, err = parseUTC(*to); err != nil {
			logger.Fatal("parse -to", zap.Error(err))
		}
	}

	for _, pair := range pairs {
		fromMs, err := resolveStart(ctx, store, pair, base, *from)
		if err != nil {
			logger.Error("resolve start", zap.String("pair", pair), zap.Error(err))
			continue
		}
		if fromMs >= toMs {
			logger.Info("up to date", zap.String("pair", pair))
			continue
		}
		bars, err := feed.Fetch(ctx, pair, base, fromMs, toMs)
		if err != nil {
			logger.Error("fetch failed", zap.String("pair", pair), zap.Error(err))
			continue
		}
		if err := store.InsertCandles(ctx, pair, base, bars); err != nil {
			logger.Error("insert failed", zap.String("pair", pair), zap.Error(err))
			continue
		}
		logger.Info("ingested", zap.String("pair", pair), zap.Int("bars", len(bars)))
	}
}

func resolveStart(ctx context.Context, store *ch.Store, pair string, tf candles.Timeframe, from string) (int64, error) {
	if from != "" {
		return parseUTC(from)
	}
	latest, err := store.LatestTimestamp(ctx, pair, tf)
	if err != nil {
		return 0, err
	}
	if latest == 0 {
		// Empty store: default to one year of history.
		return time.Now().UTC().AddDate(-1, 0, 0).UnixMilli(), nil
	}
	return latest + tf.StepMs(), nil
}

func parseUTC(s string) (int64, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return 0, err
	}
	return t.UTC().UnixMilli(), nil
}
