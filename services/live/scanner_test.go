package live

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"zone-backtest/services/candles"
	"zone-backtest/services/config"
	"zone-backtest/services/engine"
)

const t0 = int64(1_704_067_200_000)

func hb(hour int64, o, h, l, c string) candles.Candle {
	return candles.Candle{
		Timestamp: t0 + hour*3_600_000,
		Open:      decimal.RequireFromString(o),
		High:      decimal.RequireFromString(h),
		Low:       decimal.RequireFromString(l),
		Close:     decimal.RequireFromString(c),
		Volume:    decimal.NewFromInt(100),
	}
}

// setupBars forms a support zone and closes just above it, which yields a
// BUY under scanConfig.
func setupBars() []candles.Candle {
	return []candles.Candle{
		hb(0, "1.2100", "1.2110", "1.2090", "1.2100"),
		hb(1, "1.2050", "1.2060", "1.2000", "1.2050"),
		hb(2, "1.2080", "1.2090", "1.2070", "1.2080"),
		hb(3, "1.2018", "1.2020", "1.2012", "1.2015"),
	}
}

func scanConfig(pairs ...string) *config.Config {
	cfg := config.Default()
	cfg.Pairs = pairs
	cfg.BaseTimeframe = string(candles.TFH1)
	cfg.ZoneTimeframes = []string{string(candles.TFH1)}
	cfg.TrendTimeframe = string(candles.TFH1)
	cfg.MinRiskReward = 1.0
	cfg.PivotWindow = 1
	cfg.ZoneClusterTolerance = 0.0010
	cfg.ZoneProximity = 0.0010
	cfg.ZoneMinTouches = 1
	cfg.ATRPeriod = 100
	cfg.StopBuffer = 0.0005
	cfg.Windows = nil
	cfg.DeadWindow = config.Window{}
	cfg.HistoryBars = 10
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

type stubFeed struct {
	bars map[string][]candles.Candle
	errs map[string]error
}

func (f *stubFeed) Latest(_ context.Context, pair string, _ candles.Timeframe, _ int) ([]candles.Candle, error) {
	if err, ok := f.errs[pair]; ok {
		return nil, err
	}
	return f.bars[pair], nil
}

func TestScanOnceIsolatesPairFailures(t *testing.T) {
	feedErr := errors.New("feed down")
	feed := &stubFeed{
		bars: map[string][]candles.Candle{"EUR_USD": setupBars()},
		errs: map[string]error{"GBP_USD": feedErr},
	}
	s := NewScanner(scanConfig("EUR_USD", "GBP_USD"), feed, nil)

	results := s.ScanOnce(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	eur := results["EUR_USD"]
	if eur.Err != nil {
		t.Fatalf("healthy pair errored: %v", eur.Err)
	}
	if eur.Signal.Direction != engine.DirectionBuy {
		t.Errorf("EUR_USD direction = %s, want BUY", eur.Signal.Direction)
	}

	gbp := results["GBP_USD"]
	if !errors.Is(gbp.Err, feedErr) {
		t.Errorf("GBP_USD err = %v, want the feed error", gbp.Err)
	}
	if gbp.Signal.Direction != engine.DirectionNone {
		t.Errorf("failed pair direction = %s, want NONE", gbp.Signal.Direction)
	}
}

func TestScanOnceNoSignalIsNotAnError(t *testing.T) {
	// Only three bars: the pivot exists but price is far from the band.
	feed := &stubFeed{bars: map[string][]candles.Candle{"EUR_USD": setupBars()[:3]}}
	s := NewScanner(scanConfig("EUR_USD"), feed, nil)

	res := s.ScanOnce(context.Background())["EUR_USD"]
	if res.Err != nil {
		t.Fatalf("err = %v, want nil", res.Err)
	}
	if res.Signal.Direction != engine.DirectionNone {
		t.Errorf("direction = %s, want NONE", res.Signal.Direction)
	}
}

func TestScanOnceToleratesBadBars(t *testing.T) {
	bars := setupBars()
	bad := candles.Candle{
		Timestamp: t0 + 2*3_600_000 + 1,
		Open:      decimal.RequireFromString("1.30"),
		High:      decimal.RequireFromString("1.20"),
		Low:       decimal.RequireFromString("1.25"),
		Close:     decimal.RequireFromString("1.30"),
	}
	mixed := append(bars[:3:3], bad, bars[3])
	feed := &stubFeed{bars: map[string][]candles.Candle{"EUR_USD": mixed}}
	s := NewScanner(scanConfig("EUR_USD"), feed, nil)

	res := s.ScanOnce(context.Background())["EUR_USD"]
	if res.Err != nil {
		t.Fatalf("err = %v, want nil", res.Err)
	}
	if res.Signal.Direction != engine.DirectionBuy {
		t.Errorf("direction = %s, want BUY despite the bad bar", res.Signal.Direction)
	}
}
