package engine

import (
	"github.com/shopspring/decimal"

	"zone-backtest/services/candles"
	"zone-backtest/services/config"
)

// SignalGenerator turns pair state into at most one signal per bar. It is
// pure with respect to trade state: scoring never looks at the portfolio.
type SignalGenerator struct {
	cfg    *config.Config
	Zones  *ZoneDetector
	Tech   *TechnicalAnalyzer
	Timing *EntryTimingFilter

	zoneTFs []candles.Timeframe
	trendTF candles.Timeframe
	prox    decimal.Decimal
	minRR   decimal.Decimal
}

func NewSignalGenerator(cfg *config.Config) *SignalGenerator {
	g := &SignalGenerator{
		cfg:     cfg,
		Zones:   NewZoneDetector(cfg),
		Tech:    NewTechnicalAnalyzer(cfg),
		Timing:  NewEntryTimingFilter(cfg),
		trendTF: candles.Timeframe(cfg.TrendTimeframe),
		prox:    decimal.NewFromFloat(cfg.ZoneProximity),
		minRR:   decimal.NewFromFloat(cfg.MinRiskReward),
	}
	for _, tf := range cfg.ZoneTimeframes {
		g.zoneTFs = append(g.zoneTFs, candles.Timeframe(tf))
	}
	return g
}

// OnBar appends a base bar to the pair state and refreshes zone state for
// every zone timeframe that produced a completed bar. Base-timeframe zone
// sets refresh on every bar.
func (g *SignalGenerator) OnBar(ps *PairState, c candles.Candle) error {
	completed, err := ps.Append(c)
	if err != nil {
		return err
	}
	for _, tf := range g.zoneTFs {
		if tf == candles.Timeframe(g.cfg.BaseTimeframe) {
			g.Zones.Update(ps.Pair, tf, ps.Bars(tf))
			continue
		}
		for _, cb := range completed {
			if cb.Timeframe == tf {
				g.Zones.Update(ps.Pair, tf, ps.Bars(tf))
			}
		}
	}
	return nil
}

// Compute evaluates the pair at its latest bar. The result is a tagged
// variant; every rejection path returns the NONE signal for the bar.
func (g *SignalGenerator) Compute(ps *PairState) Signal {
	last, ok := ps.Last()
	if !ok {
		return None(ps.Pair, 0)
	}
	ts := last.Timestamp
	price := last.Close

	zone, dir := g.nearestTradableZone(ps.Pair, price)
	if dir == DirectionNone {
		return None(ps.Pair, ts)
	}

	trend := g.Tech.TrendState(ps.Bars(g.trendTF))
	if (dir == DirectionBuy && trend == TrendDown) ||
		(dir == DirectionSell && trend == TrendUp) {
		return None(ps.Pair, ts)
	}

	entry := price
	stop := g.stopLevel(ps, zone, dir)
	var risk decimal.Decimal
	if dir == DirectionBuy {
		risk = entry.Sub(stop)
	} else {
		risk = stop.Sub(entry)
	}
	if !risk.IsPositive() {
		return None(ps.Pair, ts)
	}

	target, ok := g.targetLevel(ps.Pair, entry, risk, dir)
	if !ok {
		return None(ps.Pair, ts)
	}
	reward := target.Sub(entry).Abs()
	rr := reward.Div(risk)
	if rr.LessThan(g.minRR) {
		return None(ps.Pair, ts)
	}

	hour := int(ts / 3_600_000 % 24)
	if !g.Timing.Allow(ps.Pair, hour) {
		return None(ps.Pair, ts)
	}

	return Signal{
		Pair:       ps.Pair,
		Direction:  dir,
		Confidence: g.confidence(ps.Pair, zone, trend, dir, last),
		Entry:      entry,
		Stop:       stop,
		Target:     target,
		RiskReward: rr,
		Timestamp:  ts,
	}
}

// nearestTradableZone picks the support or resistance band within the
// proximity threshold of price, whichever is closer. An exact tie is a
// conflict and yields no candidate.
func (g *SignalGenerator) nearestTradableZone(pair string, price decimal.Decimal) (*Zone, Direction) {
	var sup, res *Zone
	supDist, resDist := decimal.Zero, decimal.Zero
	if zs := g.Zones.ZonesNear(pair, price, ZoneSupport); len(zs) > 0 {
		if d := zoneDistance(zs[0], price, ZoneSupport); d.LessThanOrEqual(g.prox) {
			sup, supDist = zs[0], d
		}
	}
	if zs := g.Zones.ZonesNear(pair, price, ZoneResistance); len(zs) > 0 {
		if d := zoneDistance(zs[0], price, ZoneResistance); d.LessThanOrEqual(g.prox) {
			res, resDist = zs[0], d
		}
	}
	switch {
	case sup != nil && res == nil:
		return sup, DirectionBuy
	case res != nil && sup == nil:
		return res, DirectionSell
	case sup != nil && res != nil && supDist.LessThan(resDist):
		return sup, DirectionBuy
	case sup != nil && res != nil && resDist.LessThan(supDist):
		return res, DirectionSell
	}
	return nil, DirectionNone
}

// stopLevel places the stop beyond the far edge of the zone, padded by an
// ATR multiple when volatility is measurable and a fixed buffer otherwise.
func (g *SignalGenerator) stopLevel(ps *PairState, zone *Zone, dir Direction) decimal.Decimal {
	pad := decimal.NewFromFloat(g.cfg.StopBuffer)
	if atr := g.Tech.ATR(ps.Bars(candles.Timeframe(g.cfg.BaseTimeframe))); atr > 0 {
		pad = decimal.NewFromFloat(atr * g.cfg.StopATRMult)
	}
	if dir == DirectionBuy {
		return zone.PriceLow.Sub(pad)
	}
	return zone.PriceHigh.Add(pad)
}

// targetLevel aims at the near edge of the next opposing zone. With no
// opposing zone the target sits exactly at the minimum risk/reward
// distance; an opposing zone closer than that distance kills the trade.
func (g *SignalGenerator) targetLevel(pair string, entry, risk decimal.Decimal, dir Direction) (decimal.Decimal, bool) {
	need := risk.Mul(g.minRR)
	if dir == DirectionBuy {
		required := entry.Add(need)
		if zs := g.Zones.ZonesNear(pair, entry, ZoneResistance); len(zs) > 0 {
			edge := zs[0].PriceLow
			if edge.LessThan(required) {
				return decimal.Zero, false
			}
			return edge, true
		}
		return required, true
	}
	required := entry.Sub(need)
	if zs := g.Zones.ZonesNear(pair, entry, ZoneSupport); len(zs) > 0 {
		edge := zs[0].PriceHigh
		if edge.GreaterThan(required) {
			return decimal.Zero, false
		}
		return edge, true
	}
	return required, true
}

// confidence blends zone strength, trend alignment and touch recency with
// the configured weights, plus a bonus when the bar shows a rejection wick
// into the zone. The score is clamped to [0, 1].
func (g *SignalGenerator) confidence(pair string, zone *Zone, trend TrendState, dir Direction, bar candles.Candle) float64 {
	strength := g.Zones.Strength(zone)
	zoneScore := strength / (strength + g.cfg.ZoneStrengthScale)

	align := 0.5
	if (dir == DirectionBuy && trend == TrendUp) || (dir == DirectionSell && trend == TrendDown) {
		align = 1.0
	}

	w := g.cfg.Confidence
	score := (w.ZoneStrength*zoneScore + w.TrendAlignment*align + w.TouchRecency*g.Zones.Recency(pair, zone)) / w.Sum()

	if g.rejectionWick(bar, dir) {
		score += g.cfg.WickBonus
	}
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// rejectionWick reports whether the bar's wick on the zone side dwarfs its
// body, i.e. price probed the zone and was pushed back out.
func (g *SignalGenerator) rejectionWick(bar candles.Candle, dir Direction) bool {
	body := bar.Close.Sub(bar.Open).Abs()
	var wick decimal.Decimal
	if dir == DirectionBuy {
		wick = decimal.Min(bar.Open, bar.Close).Sub(bar.Low)
	} else {
		wick = bar.High.Sub(decimal.Max(bar.Open, bar.Close))
	}
	if !wick.IsPositive() {
		return false
	}
	if body.IsZero() {
		return true
	}
	ratio := decimal.NewFromFloat(g.cfg.WickRejectionRatio)
	return wick.GreaterThanOrEqual(body.Mul(ratio))
}
