package engine

import (
	"testing"

	"zone-backtest/services/candles"
)

func trendConfigBars(closes []string) []candles.Candle {
	bars := make([]candles.Candle, len(closes))
	for i, c := range closes {
		bars[i] = candles.Candle{
			Timestamp: t0 + int64(i)*hourMs,
			Open:      dec(c),
			High:      dec(c).Add(dec("0.0010")),
			Low:       dec(c).Sub(dec("0.0010")),
			Close:     dec(c),
		}
	}
	return bars
}

func TestTrendState(t *testing.T) {
	cfg := testConfig()
	cfg.FastMAPeriod = 2
	cfg.SlowMAPeriod = 3
	cfg.TrendMAPeriod = 3
	a := NewTechnicalAnalyzer(cfg)

	cases := []struct {
		name   string
		closes []string
		want   TrendState
	}{
		{"rising", []string{"1.00", "1.01", "1.02", "1.03", "1.04"}, TrendUp},
		{"falling", []string{"1.04", "1.03", "1.02", "1.01", "1.00"}, TrendDown},
		{"constant", []string{"1.02", "1.02", "1.02", "1.02"}, TrendFlat},
		{"too short", []string{"1.00", "1.01"}, TrendFlat},
		{"empty", nil, TrendFlat},
	}
	for _, tc := range cases {
		if got := a.TrendState(trendConfigBars(tc.closes)); got != tc.want {
			t.Errorf("%s: TrendState = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestATRZeroBeforeWindowFills(t *testing.T) {
	cfg := testConfig()
	a := NewTechnicalAnalyzer(cfg)
	bars := trendConfigBars([]string{"1.00", "1.01", "1.02"})
	if got := a.ATR(bars); got != 0 {
		t.Errorf("ATR = %v before window fills, want 0", got)
	}
}
