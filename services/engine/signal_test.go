package engine

import (
	"math"
	"testing"

	"zone-backtest/services/candles"
	"zone-backtest/services/config"
)

func computeOn(t *testing.T, cfg *config.Config, bars []candles.Candle) Signal {
	t.Helper()
	gen := NewSignalGenerator(cfg)
	ps := NewPairState("EUR_USD", cfg)
	for _, b := range bars {
		if err := gen.OnBar(ps, b); err != nil {
			t.Fatalf("OnBar ts=%d: %v", b.Timestamp, err)
		}
	}
	return gen.Compute(ps)
}

func TestComputeBuySignal(t *testing.T) {
	sig := computeOn(t, testConfig(), buySetup())
	if sig.Direction != DirectionBuy {
		t.Fatalf("direction = %s, want BUY", sig.Direction)
	}
	if !sig.Entry.Equal(dec("1.2015")) {
		t.Errorf("entry = %s, want 1.2015", sig.Entry)
	}
	if !sig.Stop.Equal(dec("1.1990")) {
		t.Errorf("stop = %s, want 1.1990 (far zone edge)", sig.Stop)
	}
	if !sig.Target.Equal(dec("1.2080")) {
		t.Errorf("target = %s, want 1.2080 (opposing zone edge)", sig.Target)
	}
	if !sig.RiskReward.Equal(dec("2.6")) {
		t.Errorf("rr = %s, want 2.6", sig.RiskReward)
	}
	if sig.Confidence <= 0 || sig.Confidence > 1 {
		t.Errorf("confidence = %v, want (0, 1]", sig.Confidence)
	}
	if sig.Timestamp != t0+3*hourMs {
		t.Errorf("ts = %d, want the evaluated bar's ts", sig.Timestamp)
	}
}

func TestComputeSellSignal(t *testing.T) {
	bars := []candles.Candle{
		hb(0, "1.2000", "1.2010", "1.1990", "1.2000"),
		hb(1, "1.2050", "1.2100", "1.2040", "1.2050"),
		hb(2, "1.2020", "1.2030", "1.2010", "1.2020"),
		hb(3, "1.2082", "1.2088", "1.2080", "1.2085"),
	}
	sig := computeOn(t, testConfig(), bars)
	if sig.Direction != DirectionSell {
		t.Fatalf("direction = %s, want SELL", sig.Direction)
	}
	if !sig.Entry.Equal(dec("1.2085")) || !sig.Stop.Equal(dec("1.2110")) {
		t.Errorf("entry/stop = %s/%s, want 1.2085/1.2110", sig.Entry, sig.Stop)
	}
	if !sig.Target.Equal(dec("1.2020")) {
		t.Errorf("target = %s, want 1.2020", sig.Target)
	}
	if !sig.RiskReward.Equal(dec("2.6")) {
		t.Errorf("rr = %s, want 2.6", sig.RiskReward)
	}
}

func TestComputeNoZoneNearby(t *testing.T) {
	// Price sits far above the support band.
	sig := computeOn(t, testConfig(), buySetup()[:3])
	if sig.Direction != DirectionNone {
		t.Fatalf("direction = %s, want NONE away from zones", sig.Direction)
	}
}

func TestComputeRejectsAgainstTrend(t *testing.T) {
	cfg := testConfig()
	cfg.FastMAPeriod = 2
	cfg.SlowMAPeriod = 3
	cfg.TrendMAPeriod = 3
	// Falling closes put the trend DOWN; the buy at the support zone is
	// rejected.
	sig := computeOn(t, cfg, buySetup())
	if sig.Direction != DirectionNone {
		t.Fatalf("direction = %s, want NONE against the trend", sig.Direction)
	}
}

func TestComputeRespectsDeadWindow(t *testing.T) {
	cfg := testConfig()
	cfg.DeadWindow = config.Window{Start: 3, End: 4} // the entry bar's hour
	sig := computeOn(t, cfg, buySetup())
	if sig.Direction != DirectionNone {
		t.Fatalf("direction = %s, want NONE inside dead window", sig.Direction)
	}
}

func TestComputeRespectsTradingWindows(t *testing.T) {
	cfg := testConfig()
	cfg.Windows = map[string][]config.Window{
		"EUR_USD": {{Start: 7, End: 14}, {Start: 16, End: 20}},
	}
	// The entry bar is at 03:00 UTC, outside both windows.
	sig := computeOn(t, cfg, buySetup())
	if sig.Direction != DirectionNone {
		t.Fatalf("direction = %s, want NONE outside trading windows", sig.Direction)
	}
}

func TestComputeDiscardsWhenOpposingZoneTooClose(t *testing.T) {
	bars := []candles.Candle{
		hb(0, "1.2100", "1.2110", "1.2090", "1.2100"),
		hb(1, "1.2005", "1.2010", "1.2000", "1.2005"),
		hb(2, "1.2035", "1.2040", "1.2015", "1.2020"),
		hb(3, "1.2018", "1.2020", "1.2012", "1.2015"),
	}
	// Resistance band [1.2030, 1.2050] starts below the minimum
	// risk/reward target of 1.2040: no viable trade.
	sig := computeOn(t, testConfig(), bars)
	if sig.Direction != DirectionNone {
		t.Fatalf("direction = %s, want NONE with opposing zone in the way", sig.Direction)
	}
}

func TestComputeTargetDefaultsToMinRR(t *testing.T) {
	// Without the opposing swing high there is no resistance zone; the
	// target sits exactly at the minimum risk/reward distance.
	bars := []candles.Candle{
		hb(0, "1.2100", "1.2110", "1.2090", "1.2100"),
		hb(1, "1.2050", "1.2060", "1.2000", "1.2050"),
		hb(2, "1.2052", "1.2055", "1.2050", "1.2052"),
		hb(3, "1.2018", "1.2020", "1.2012", "1.2015"),
	}
	sig := computeOn(t, testConfig(), bars)
	if sig.Direction != DirectionBuy {
		t.Fatalf("direction = %s, want BUY", sig.Direction)
	}
	if !sig.RiskReward.Equal(dec("1")) {
		t.Errorf("rr = %s, want exactly the minimum 1", sig.RiskReward)
	}
	if !sig.Target.Equal(dec("1.2040")) {
		t.Errorf("target = %s, want entry + risk = 1.2040", sig.Target)
	}
}

func TestConfidenceZoneStrengthScale(t *testing.T) {
	// The support zone has a single touch and weight 1, so its strength
	// component is 1/(1+scale): 0.2 at scale 4, 0.5 at scale 1. With the
	// default 0.4 zone weight the confidence gap is exactly 0.12.
	wide := testConfig()
	narrow := testConfig()
	narrow.ZoneStrengthScale = 1

	a := computeOn(t, wide, buySetup())
	b := computeOn(t, narrow, buySetup())
	if a.Direction != DirectionBuy || b.Direction != DirectionBuy {
		t.Fatalf("directions = %s/%s, want BUY", a.Direction, b.Direction)
	}
	if math.Abs((b.Confidence-a.Confidence)-0.12) > 1e-9 {
		t.Errorf("scale delta = %v, want 0.12", b.Confidence-a.Confidence)
	}
}

func TestWickRejectionBonus(t *testing.T) {
	bars := buySetup()
	// Long lower wick into the zone, small body.
	bars[3] = hb(3, "1.2019", "1.2021", "1.2012", "1.2020")

	noBonus := testConfig()
	noBonus.WickBonus = 0
	withBonus := testConfig()
	withBonus.WickBonus = 0.25

	a := computeOn(t, noBonus, bars)
	b := computeOn(t, withBonus, bars)
	if a.Direction != DirectionBuy || b.Direction != DirectionBuy {
		t.Fatalf("directions = %s/%s, want BUY", a.Direction, b.Direction)
	}
	if math.Abs((b.Confidence-a.Confidence)-0.25) > 1e-9 {
		t.Errorf("bonus delta = %v, want 0.25", b.Confidence-a.Confidence)
	}
}
