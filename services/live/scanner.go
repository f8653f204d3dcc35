// Package live evaluates the strategy on fresh candle history without any
// trade state: one scan is a read-only snapshot of current signals.
package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"zone-backtest/services/candles"
	"zone-backtest/services/config"
	"zone-backtest/services/engine"
)

// Feed supplies recent completed bars per pair.
type Feed interface {
	Latest(ctx context.Context, pair string, tf candles.Timeframe, count int) ([]candles.Candle, error)
}

// PairResult is the outcome for one pair in a scan: either a signal (which
// may be NONE) or a feed error. A failed pair never hides the others.
type PairResult struct {
	Signal engine.Signal
	Err    error
}

// Scanner runs concurrent per-pair evaluations. Pair state is rebuilt from
// scratch each scan, so scans are independent and repeatable.
type Scanner struct {
	cfg    *config.Config
	feed   Feed
	logger *zap.Logger
}

func NewScanner(cfg *config.Config, feed Feed, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cfg: cfg, feed: feed, logger: logger}
}

// ScanOnce fetches history and computes the current signal for every
// configured pair, one goroutine per pair.
func (s *Scanner) ScanOnce(ctx context.Context) map[string]PairResult {
	results := make(map[string]PairResult, len(s.cfg.Pairs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	base := candles.Timeframe(s.cfg.BaseTimeframe)
	for _, pair := range s.cfg.Pairs {
		wg.Add(1)
		go func(pair string) {
			defer wg.Done()
			res := s.scanPair(ctx, pair, base)
			mu.Lock()
			results[pair] = res
			mu.Unlock()
		}(pair)
	}
	wg.Wait()
	return results
}

func (s *Scanner) scanPair(ctx context.Context, pair string, base candles.Timeframe) PairResult {
	bars, err := s.feed.Latest(ctx, pair, base, s.cfg.HistoryBars)
	if err != nil {
		s.logger.Warn("pair feed failed", zap.String("pair", pair), zap.Error(err))
		return PairResult{Signal: engine.None(pair, time.Now().UnixMilli()), Err: err}
	}

	gen := engine.NewSignalGenerator(s.cfg)
	ps := engine.NewPairState(pair, s.cfg)
	var dataErr *candles.DataError
	skipped := 0
	for _, b := range bars {
		if err := gen.OnBar(ps, b); err != nil {
			if errors.As(err, &dataErr) {
				skipped++
				continue
			}
			return PairResult{Signal: engine.None(pair, time.Now().UnixMilli()), Err: err}
		}
	}
	if skipped > 0 {
		s.logger.Warn("skipped bad bars", zap.String("pair", pair), zap.Int("count", skipped))
	}
	sig := gen.Compute(ps)
	if sig.Direction != engine.DirectionNone {
		s.logger.Info("signal",
			zap.String("pair", pair),
			zap.String("dir", sig.Direction.String()),
			zap.Float64("confidence", sig.Confidence),
			zap.String("entry", sig.Entry.String()),
			zap.String("stop", sig.Stop.String()),
			zap.String("target", sig.Target.String()))
	}
	return PairResult{Signal: sig}
}
