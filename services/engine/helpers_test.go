package engine

import (
	"github.com/shopspring/decimal"

	"zone-backtest/services/candles"
	"zone-backtest/services/config"
)

// 2024-01-01 00:00:00 UTC, an exact hour boundary.
const t0 = int64(1_704_067_200_000)

const hourMs = int64(3_600_000)

// testConfig is a single-pair H1 setup with a short pivot window and no
// timing restrictions, so scenarios stay small enough to trace by hand.
// The slow MA period exceeds the scenario lengths, keeping trend FLAT.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pairs = []string{"EUR_USD"}
	cfg.BaseTimeframe = string(candles.TFH1)
	cfg.ZoneTimeframes = []string{string(candles.TFH1)}
	cfg.TrendTimeframe = string(candles.TFH1)
	cfg.MinRiskReward = 1.0
	cfg.TransactionCost = 0
	cfg.MinSize = 1
	cfg.MaxSize = 1_000_000
	cfg.ATRPeriod = 100
	cfg.PivotWindow = 1
	cfg.ZoneClusterTolerance = 0.0010
	cfg.ZoneProximity = 0.0010
	cfg.ZoneBreakBuffer = 0.0050
	cfg.ZoneMinTouches = 1
	cfg.ZoneMaxAgeBars = 500
	cfg.StopBuffer = 0
	cfg.TimeframeWeights = map[string]float64{string(candles.TFH1): 1.0}
	cfg.Windows = nil
	cfg.DeadWindow = config.Window{}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func hb(hour int64, o, h, l, c string) candles.Candle {
	return candles.Candle{
		Timestamp: t0 + hour*hourMs,
		Open:      decimal.RequireFromString(o),
		High:      decimal.RequireFromString(h),
		Low:       decimal.RequireFromString(l),
		Close:     decimal.RequireFromString(c),
		Volume:    decimal.NewFromInt(100),
	}
}

// buySetup is the canonical entry scenario: a swing low at 1.2000 forms a
// support zone, a swing high at 1.2090 forms the opposing resistance, and
// the fourth bar closes just above the support band.
func buySetup() []candles.Candle {
	return []candles.Candle{
		hb(0, "1.2100", "1.2110", "1.2090", "1.2100"),
		hb(1, "1.2050", "1.2060", "1.2000", "1.2050"),
		hb(2, "1.2080", "1.2090", "1.2070", "1.2080"),
		hb(3, "1.2018", "1.2020", "1.2012", "1.2015"),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
