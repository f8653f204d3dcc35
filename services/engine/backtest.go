package engine

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"zone-backtest/services/candles"
	"zone-backtest/services/config"
)

// BacktestResult is the full outcome of one replay.
type BacktestResult struct {
	Trades      []*Trade
	Events      []Event
	EquityCurve []EquityPoint
	StartEquity decimal.Decimal
	FinalEquity decimal.Decimal
	SkippedBars int
	Metrics     Metrics
}

type feedItem struct {
	pair string
	bar  candles.Candle
}

// RunBacktest replays historical base-timeframe bars through the strategy.
// Bars across pairs are processed in timestamp order, pair name breaking
// ties, so a run is a pure function of (config, data). Within one bar,
// exits settle before new entries.
func RunBacktest(cfg *config.Config, data map[string][]candles.Candle, logger *zap.Logger) (*BacktestResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(data) == 0 {
		return nil, errors.New("backtest: no candle data")
	}

	var feed []feedItem
	for pair, bars := range data {
		for _, b := range bars {
			feed = append(feed, feedItem{pair: pair, bar: b})
		}
	}
	sort.SliceStable(feed, func(a, b int) bool {
		if feed[a].bar.Timestamp != feed[b].bar.Timestamp {
			return feed[a].bar.Timestamp < feed[b].bar.Timestamp
		}
		return feed[a].pair < feed[b].pair
	})

	gen := NewSignalGenerator(cfg)
	tm := NewTradeManager(cfg)
	pf := NewPortfolio(decimal.NewFromFloat(cfg.StartEquity))
	states := make(map[string]*PairState)
	lastClose := make(map[string]decimal.Decimal)

	res := &BacktestResult{StartEquity: pf.Equity}

	var dataErr *candles.DataError
	var lastTs int64
	for _, it := range feed {
		ps, ok := states[it.pair]
		if !ok {
			ps = NewPairState(it.pair, cfg)
			states[it.pair] = ps
		}
		if err := gen.OnBar(ps, it.bar); err != nil {
			if errors.As(err, &dataErr) {
				res.SkippedBars++
				logger.Warn("skipping bad bar",
					zap.String("pair", it.pair),
					zap.Int64("ts", it.bar.Timestamp),
					zap.String("reason", dataErr.Reason))
				continue
			}
			return nil, err
		}
		lastClose[it.pair] = it.bar.Close
		lastTs = it.bar.Timestamp

		for _, t := range tm.Update(pf, it.pair, it.bar) {
			typ := EventTakeProfitHit
			if t.Reason == ExitStopLoss {
				typ = EventStopHit
			}
			res.Trades = append(res.Trades, t)
			res.Events = append(res.Events, Event{Ts: it.bar.Timestamp, Type: typ, Pair: it.pair, Trade: t.ID, Equity: pf.Equity})
		}

		// One equity sample per bar, taken after exits settle. Entries do
		// not move equity, so sampling here captures the bar's final state.
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Ts: it.bar.Timestamp, Equity: pf.Equity})
		res.Events = append(res.Events, Event{Ts: it.bar.Timestamp, Type: EventEquityPoint, Pair: it.pair, Equity: pf.Equity})

		if len(pf.Open) >= cfg.MaxOpenTotal || pf.OpenForPair(it.pair) >= cfg.MaxOpenPerPair {
			continue
		}
		sig := gen.Compute(ps)
		if sig.Direction == DirectionNone {
			continue
		}
		t, err := tm.Open(pf, sig)
		if err != nil {
			logger.Debug("signal rejected",
				zap.String("pair", it.pair),
				zap.Int64("ts", it.bar.Timestamp),
				zap.Error(err))
			continue
		}
		res.Events = append(res.Events, Event{Ts: it.bar.Timestamp, Type: EventTradeOpen, Pair: it.pair, Trade: t.ID, Equity: pf.Equity})
		logger.Debug("trade opened",
			zap.Int64("id", t.ID),
			zap.String("pair", t.Pair),
			zap.String("dir", t.Direction.String()),
			zap.Float64("confidence", sig.Confidence))
	}

	for _, t := range tm.ForceCloseAll(pf, lastClose, lastTs) {
		res.Trades = append(res.Trades, t)
		res.Events = append(res.Events, Event{Ts: lastTs, Type: EventForcedClose, Pair: t.Pair, Trade: t.ID, Equity: pf.Equity})
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Ts: lastTs, Equity: pf.Equity})
	}

	res.FinalEquity = pf.Equity
	res.Metrics = ComputeMetrics(res.Trades, res.EquityCurve)

	logger.Info("backtest finished",
		zap.Int("trades", len(res.Trades)),
		zap.Int("skipped_bars", res.SkippedBars),
		zap.String("final_equity", res.FinalEquity.StringFixed(2)),
		zap.Float64("win_rate", res.Metrics.WinRate),
		zap.Float64("max_drawdown", res.Metrics.MaxDrawdown))
	return res, nil
}
