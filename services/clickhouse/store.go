// Package clickhouse persists candle history in ClickHouse. The table is a
// ReplacingMergeTree keyed by (pair, timeframe, open time), so re-ingesting
// a range is idempotent.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	chproto "github.com/ClickHouse/clickhouse-go/v2/lib/proto"
	"github.com/shopspring/decimal"

	"zone-backtest/services/candles"
)

type Options struct {
	Addr     string
	Database string
	Table    string
	Username string
	Password string
}

func DefaultOptions() Options {
	return Options{
		Addr:     "localhost:9000",
		Database: "forex",
		Table:    "candles",
		Username: "default",
	}
}

// Store is a thin candle repository over the native protocol.
type Store struct {
	conn  clickhouse.Conn
	db    string
	table string
}

// Open connects, pings and makes sure the schema exists.
func Open(ctx context.Context, opts Options) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %s", explain(err))
	}
	s := &Store{conn: conn, db: opts.Database, table: opts.Table}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.db)); err != nil {
		return fmt.Errorf("create database: %s", explain(err))
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			pair LowCardinality(String),
			timeframe LowCardinality(String),
			open_time_ms UInt64,
			open Decimal(18, 8),
			high Decimal(18, 8),
			low Decimal(18, 8),
			close Decimal(18, 8),
			volume Decimal(18, 8),
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (pair, timeframe, open_time_ms)
		SETTINGS index_granularity = 8192
	`, s.db, s.table)
	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %s", explain(err))
	}
	return nil
}

// InsertCandles batch-inserts one pair/timeframe range. All rows of one
// call share a version; ReplacingMergeTree keeps the latest.
func (s *Store) InsertCandles(ctx context.Context, pair string, tf candles.Timeframe, bars []candles.Candle) error {
	if len(bars) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s.%s SETTINGS insert_deduplicate=1", s.db, s.table))
	if err != nil {
		return fmt.Errorf("prepare batch: %s", explain(err))
	}
	now := time.Now().UTC()
	ver := uint64(now.UnixNano())
	for _, b := range bars {
		if err := batch.Append(
			pair, string(tf),
			uint64(b.Timestamp),
			b.Open, b.High, b.Low, b.Close, b.Volume,
			now, ver,
		); err != nil {
			return fmt.Errorf("batch append: %s", explain(err))
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("batch send: %s", explain(err))
	}
	return nil
}

// QueryCandles returns bars in [fromMs, toMs), open-time ordered, collapsed
// to the latest version per bar.
func (s *Store) QueryCandles(ctx context.Context, pair string, tf candles.Timeframe, fromMs, toMs int64) ([]candles.Candle, error) {
	q := fmt.Sprintf(`
		SELECT open_time_ms, open, high, low, close, volume
		FROM %s.%s FINAL
		WHERE pair = ? AND timeframe = ? AND open_time_ms >= ? AND open_time_ms < ?
		ORDER BY open_time_ms
	`, s.db, s.table)
	rows, err := s.conn.Query(ctx, q, pair, string(tf), uint64(fromMs), uint64(toMs))
	if err != nil {
		return nil, fmt.Errorf("query candles: %s", explain(err))
	}
	defer rows.Close()

	var out []candles.Candle
	for rows.Next() {
		var ts uint64
		var o, h, l, c, v decimal.Decimal
		if err := rows.Scan(&ts, &o, &h, &l, &c, &v); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, candles.Candle{
			Timestamp: int64(ts),
			Open:      o, High: h, Low: l, Close: c, Volume: v,
		})
	}
	return out, rows.Err()
}

// LatestTimestamp returns the newest stored open time for a pair/timeframe,
// 0 when none exists.
func (s *Store) LatestTimestamp(ctx context.Context, pair string, tf candles.Timeframe) (int64, error) {
	q := fmt.Sprintf("SELECT max(open_time_ms) FROM %s.%s WHERE pair = ? AND timeframe = ?", s.db, s.table)
	var ts uint64
	if err := s.conn.QueryRow(ctx, q, pair, string(tf)).Scan(&ts); err != nil {
		return 0, fmt.Errorf("query latest: %s", explain(err))
	}
	return int64(ts), nil
}

func (s *Store) Close() error { return s.conn.Close() }

func explain(err error) string {
	var ex *chproto.Exception
	if errors.As(err, &ex) {
		return fmt.Sprintf("ClickHouse [%d] %s (%s)", ex.Code, ex.Message, ex.Name)
	}
	return err.Error()
}
