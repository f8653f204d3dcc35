// Package candles holds OHLCV series with strict ordering guarantees.
package candles

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Timeframe identifies a bar cadence.
type Timeframe string

const (
	TFM5 Timeframe = "M5"
	TFM15 Timeframe = "M15"
	TFH1 Timeframe = "H1"
	TFH4 Timeframe = "H4"
	TFD1 Timeframe = "D1"
)

// Minutes returns the cadence in minutes, 0 for unknown timeframes.
func (tf Timeframe) Minutes() int64 {
	switch tf {
	case TFM5:
		return 5
	case TFM15:
		return 15
	case TFH1:
		return 60
	case TFH4:
		return 240
	case TFD1:
		return 1440
	}
	return 0
}

// StepMs returns the cadence in milliseconds.
func (tf Timeframe) StepMs() int64 { return tf.Minutes() * 60_000 }

// Candle is a single OHLCV bar. Timestamp is the bar open time in ms UTC.
// Candles are immutable once appended to a Series.
type Candle struct {
	Timestamp int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Valid reports whether the bar is internally consistent.
func (c Candle) Valid() bool {
	if c.Timestamp <= 0 {
		return false
	}
	if c.High.LessThan(c.Low) {
		return false
	}
	if c.Open.GreaterThan(c.High) || c.Open.LessThan(c.Low) {
		return false
	}
	if c.Close.GreaterThan(c.High) || c.Close.LessThan(c.Low) {
		return false
	}
	return true
}

// DataError marks a malformed or out-of-order bar. The caller skips the bar
// and continues the pair where possible.
type DataError struct {
	Pair   string
	Ts     int64
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("bad candle data pair=%s ts=%d: %s", e.Pair, e.Ts, e.Reason)
}

// Series is an append-only, timestamp-ordered bar sequence for one pair and
// timeframe, with an index-by-timestamp lookup. Each Series has a single
// writer; no aliasing between pairs.
type Series struct {
	Pair      string
	Timeframe Timeframe

	bars  []Candle
	index map[int64]int
}

func NewSeries(pair string, tf Timeframe) *Series {
	return &Series{Pair: pair, Timeframe: tf, index: make(map[int64]int)}
}

// Append adds a bar. Malformed or non-increasing timestamps yield a
// DataError and leave the series unchanged.
func (s *Series) Append(c Candle) error {
	if !c.Valid() {
		return &DataError{Pair: s.Pair, Ts: c.Timestamp, Reason: "inconsistent ohlc"}
	}
	if n := len(s.bars); n > 0 && c.Timestamp <= s.bars[n-1].Timestamp {
		return &DataError{Pair: s.Pair, Ts: c.Timestamp, Reason: "out of order"}
	}
	s.index[c.Timestamp] = len(s.bars)
	s.bars = append(s.bars, c)
	return nil
}

// Bars returns the underlying ordered slice. Callers must not mutate it.
func (s *Series) Bars() []Candle { return s.bars }

func (s *Series) Len() int { return len(s.bars) }

// At looks a bar up by its open timestamp.
func (s *Series) At(ts int64) (Candle, bool) {
	i, ok := s.index[ts]
	if !ok {
		return Candle{}, false
	}
	return s.bars[i], true
}

// Last returns the most recent bar.
func (s *Series) Last() (Candle, bool) {
	if len(s.bars) == 0 {
		return Candle{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Tail returns the last n bars (fewer if the series is shorter).
func (s *Series) Tail(n int) []Candle {
	if n >= len(s.bars) {
		return s.bars
	}
	return s.bars[len(s.bars)-n:]
}

// DetectGaps returns the open timestamps after which a gap larger than
// stepMs occurs.
func DetectGaps(bars []Candle, stepMs int64) []int64 {
	var gaps []int64
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp-bars[i-1].Timestamp > stepMs {
			gaps = append(gaps, bars[i-1].Timestamp)
		}
	}
	return gaps
}
