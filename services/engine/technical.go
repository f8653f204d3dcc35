package engine

import (
	"zone-backtest/services/candles"
	"zone-backtest/services/config"
	"zone-backtest/services/indicators"
)

// TechnicalAnalyzer derives trend state from moving-average relationships.
// It is a pure read of bar history; no zone or trade state is touched.
type TechnicalAnalyzer struct {
	cfg *config.Config
}

func NewTechnicalAnalyzer(cfg *config.Config) *TechnicalAnalyzer {
	return &TechnicalAnalyzer{cfg: cfg}
}

// TrendState classifies bars as UP, DOWN or FLAT: fast EMA above slow EMA
// with price above the trend EMA is UP, the mirror case is DOWN, any mixed
// alignment is FLAT. Histories shorter than the slow period are FLAT.
func (a *TechnicalAnalyzer) TrendState(bars []candles.Candle) TrendState {
	if len(bars) < a.cfg.SlowMAPeriod {
		return TrendFlat
	}
	closes := indicators.Closes(bars)
	fast := indicators.LastEMA(closes, a.cfg.FastMAPeriod)
	slow := indicators.LastEMA(closes, a.cfg.SlowMAPeriod)
	trend := indicators.LastEMA(closes, a.cfg.TrendMAPeriod)
	price := closes[len(closes)-1]

	switch {
	case fast > slow && price > trend:
		return TrendUp
	case fast < slow && price < trend:
		return TrendDown
	}
	return TrendFlat
}

// ATR returns the current average true range of the bars, 0 when the
// window is not yet full.
func (a *TechnicalAnalyzer) ATR(bars []candles.Candle) float64 {
	return indicators.LastATR(bars, a.cfg.ATRPeriod)
}
