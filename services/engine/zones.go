package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"zone-backtest/services/candles"
	"zone-backtest/services/config"
)

// ZoneKind marks a band as support or resistance.
type ZoneKind int

const (
	ZoneSupport ZoneKind = iota
	ZoneResistance
)

func (k ZoneKind) String() string {
	if k == ZoneResistance {
		return "RESISTANCE"
	}
	return "SUPPORT"
}

// Zone is a price band derived from clustered pivot touches.
// Invariant: PriceLow < PriceHigh. InvalidatedAt == 0 means active.
type Zone struct {
	PriceLow      decimal.Decimal
	PriceHigh     decimal.Decimal
	Timeframe     candles.Timeframe
	Kind          ZoneKind
	TouchCount    int
	CreatedAt     int64
	InvalidatedAt int64

	createdBar   int
	lastTouchBar int
}

// Contains reports whether price lies inside the band.
func (z *Zone) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(z.PriceLow) && price.LessThanOrEqual(z.PriceHigh)
}

func (z *Zone) overlaps(o *Zone) bool {
	return z.PriceLow.LessThanOrEqual(o.PriceHigh) && z.PriceHigh.GreaterThanOrEqual(o.PriceLow)
}

// ZoneDetector maintains, per pair and configured timeframe, the active
// zone set. Each pair's state has a single writer: its own update path.
type ZoneDetector struct {
	cfg    *config.Config
	tol    decimal.Decimal
	buffer decimal.Decimal

	zones    map[string][]*Zone
	barCount map[string]map[candles.Timeframe]int
}

func NewZoneDetector(cfg *config.Config) *ZoneDetector {
	return &ZoneDetector{
		cfg:      cfg,
		tol:      decimal.NewFromFloat(cfg.ZoneClusterTolerance),
		buffer:   decimal.NewFromFloat(cfg.ZoneBreakBuffer),
		zones:    make(map[string][]*Zone),
		barCount: make(map[string]map[candles.Timeframe]int),
	}
}

// Update processes the latest completed bar of one pair's timeframe series:
// expires broken or stale zones, counts re-touches, and clusters newly
// confirmed pivots. bars must be the full ordered series for that
// timeframe; only its tail is inspected.
func (d *ZoneDetector) Update(pair string, tf candles.Timeframe, bars []candles.Candle) {
	if len(bars) == 0 {
		return
	}
	counts, ok := d.barCount[pair]
	if !ok {
		counts = make(map[candles.Timeframe]int)
		d.barCount[pair] = counts
	}
	counts[tf] = len(bars)

	last := bars[len(bars)-1]
	barIdx := len(bars) - 1

	for _, z := range d.zones[pair] {
		if z.Timeframe != tf || z.InvalidatedAt != 0 {
			continue
		}
		if barIdx-z.createdBar > d.cfg.ZoneMaxAgeBars {
			z.InvalidatedAt = last.Timestamp
			continue
		}
		broken := (z.Kind == ZoneSupport && last.Close.LessThan(z.PriceLow.Sub(d.buffer))) ||
			(z.Kind == ZoneResistance && last.Close.GreaterThan(z.PriceHigh.Add(d.buffer)))
		if broken {
			z.InvalidatedAt = last.Timestamp
			continue
		}
		if last.Low.LessThanOrEqual(z.PriceHigh) && last.High.GreaterThanOrEqual(z.PriceLow) {
			z.TouchCount++
			z.lastTouchBar = barIdx
		}
	}

	// A pivot at i is confirmed only after PivotWindow later bars exist, so
	// zone creation never uses information past the current bar.
	k := d.cfg.PivotWindow
	i := len(bars) - 1 - k
	if i < k {
		return
	}
	if isSwingHigh(bars, i, k) {
		d.cluster(pair, tf, ZoneResistance, bars[i].High, last.Timestamp, barIdx)
	}
	if isSwingLow(bars, i, k) {
		d.cluster(pair, tf, ZoneSupport, bars[i].Low, last.Timestamp, barIdx)
	}
}

func isSwingHigh(bars []candles.Candle, i, k int) bool {
	for j := i - k; j <= i+k; j++ {
		if j == i {
			continue
		}
		if bars[j].High.GreaterThan(bars[i].High) {
			return false
		}
	}
	return true
}

func isSwingLow(bars []candles.Candle, i, k int) bool {
	for j := i - k; j <= i+k; j++ {
		if j == i {
			continue
		}
		if bars[j].Low.LessThan(bars[i].Low) {
			return false
		}
	}
	return true
}

// cluster folds a confirmed pivot into an existing band within tolerance,
// or opens a new band of width 2x tolerance around the pivot.
func (d *ZoneDetector) cluster(pair string, tf candles.Timeframe, kind ZoneKind, price decimal.Decimal, ts int64, barIdx int) {
	for _, z := range d.zones[pair] {
		if z.Timeframe != tf || z.Kind != kind || z.InvalidatedAt != 0 {
			continue
		}
		if z.Contains(price) {
			z.TouchCount++
			z.lastTouchBar = barIdx
			return
		}
	}
	d.zones[pair] = append(d.zones[pair], &Zone{
		PriceLow:     price.Sub(d.tol),
		PriceHigh:    price.Add(d.tol),
		Timeframe:    tf,
		Kind:         kind,
		TouchCount:   1,
		CreatedAt:    ts,
		createdBar:   barIdx,
		lastTouchBar: barIdx,
	})
}

// ZonesNear returns the active zones of one kind on the relevant side of
// price, nearest first. Zones below the minimum touch count are not yet
// active and are omitted. When bands from different timeframes overlap,
// only the stronger band is returned.
func (d *ZoneDetector) ZonesNear(pair string, price decimal.Decimal, kind ZoneKind) []*Zone {
	var cand []*Zone
	for _, z := range d.zones[pair] {
		if z.Kind != kind || z.InvalidatedAt != 0 || z.TouchCount < d.cfg.ZoneMinTouches {
			continue
		}
		if kind == ZoneSupport && z.PriceLow.GreaterThanOrEqual(price) {
			continue
		}
		if kind == ZoneResistance && z.PriceHigh.LessThanOrEqual(price) {
			continue
		}
		cand = append(cand, z)
	}

	// Stronger bands shadow weaker overlapping ones.
	sort.SliceStable(cand, func(a, b int) bool {
		sa, sb := d.Strength(cand[a]), d.Strength(cand[b])
		if sa != sb {
			return sa > sb
		}
		return cand[a].PriceLow.LessThan(cand[b].PriceLow)
	})
	var kept []*Zone
	for _, z := range cand {
		shadowed := false
		for _, k := range kept {
			if z.overlaps(k) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			kept = append(kept, z)
		}
	}

	sort.SliceStable(kept, func(a, b int) bool {
		da, db := zoneDistance(kept[a], price, kind), zoneDistance(kept[b], price, kind)
		if !da.Equal(db) {
			return da.LessThan(db)
		}
		return kept[a].PriceLow.LessThan(kept[b].PriceLow)
	})
	return kept
}

func zoneDistance(z *Zone, price decimal.Decimal, kind ZoneKind) decimal.Decimal {
	var dist decimal.Decimal
	if kind == ZoneSupport {
		dist = price.Sub(z.PriceHigh)
	} else {
		dist = z.PriceLow.Sub(price)
	}
	if dist.IsNegative() {
		return decimal.Zero
	}
	return dist
}

// Strength scores a zone by touch count weighted by its timeframe; higher
// timeframes weigh more.
func (d *ZoneDetector) Strength(z *Zone) float64 {
	w, ok := d.cfg.TimeframeWeights[string(z.Timeframe)]
	if !ok {
		w = 1.0
	}
	return float64(z.TouchCount) * w
}

// Recency scores how recently a zone was touched, 1 for the current bar
// down to 0 at the maximum zone age.
func (d *ZoneDetector) Recency(pair string, z *Zone) float64 {
	counts := d.barCount[pair]
	if counts == nil {
		return 0
	}
	age := counts[z.Timeframe] - 1 - z.lastTouchBar
	if age < 0 {
		age = 0
	}
	r := 1.0 - float64(age)/float64(d.cfg.ZoneMaxAgeBars)
	if r < 0 {
		return 0
	}
	return r
}
