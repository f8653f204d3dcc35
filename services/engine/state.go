package engine

import (
	"zone-backtest/services/candles"
	"zone-backtest/services/config"
)

// CompletedBar is a higher-timeframe bar that became visible when a base
// bar closed its bucket.
type CompletedBar struct {
	Timeframe candles.Timeframe
	Bar       candles.Candle
}

// PairState holds one pair's base series plus the derived series for every
// zone and trend timeframe, fed through right-edge aggregators so nothing
// downstream ever reads a bucket the current bar is still inside.
type PairState struct {
	Pair string

	base    *candles.Series
	order   []candles.Timeframe
	aggs    map[candles.Timeframe]*candles.Aggregator
	derived map[candles.Timeframe]*candles.Series
}

func NewPairState(pair string, cfg *config.Config) *PairState {
	base := candles.Timeframe(cfg.BaseTimeframe)
	s := &PairState{
		Pair:    pair,
		base:    candles.NewSeries(pair, base),
		aggs:    make(map[candles.Timeframe]*candles.Aggregator),
		derived: make(map[candles.Timeframe]*candles.Series),
	}
	want := make([]candles.Timeframe, 0, len(cfg.ZoneTimeframes)+1)
	for _, tf := range cfg.ZoneTimeframes {
		want = append(want, candles.Timeframe(tf))
	}
	want = append(want, candles.Timeframe(cfg.TrendTimeframe))
	for _, tf := range want {
		if tf == base {
			continue
		}
		if _, ok := s.aggs[tf]; ok {
			continue
		}
		s.order = append(s.order, tf)
		s.aggs[tf] = candles.NewAggregator(tf)
		s.derived[tf] = candles.NewSeries(pair, tf)
	}
	return s
}

// Append adds a base bar and returns the higher-timeframe bars it completed,
// in configuration order. A malformed bar yields a DataError and changes
// nothing.
func (s *PairState) Append(c candles.Candle) ([]CompletedBar, error) {
	if err := s.base.Append(c); err != nil {
		return nil, err
	}
	var out []CompletedBar
	for _, tf := range s.order {
		done, ok := s.aggs[tf].Push(c)
		if !ok {
			continue
		}
		if err := s.derived[tf].Append(done); err != nil {
			return out, err
		}
		out = append(out, CompletedBar{Timeframe: tf, Bar: done})
	}
	return out, nil
}

// Bars returns the completed bars of a timeframe; the base timeframe maps
// to the raw series. Callers must not mutate the slice.
func (s *PairState) Bars(tf candles.Timeframe) []candles.Candle {
	if tf == s.base.Timeframe {
		return s.base.Bars()
	}
	if d, ok := s.derived[tf]; ok {
		return d.Bars()
	}
	return nil
}

// Last returns the most recent base bar.
func (s *PairState) Last() (candles.Candle, bool) { return s.base.Last() }

func (s *PairState) Len() int { return s.base.Len() }
