// Package indicators computes moving-average and volatility series.
// Indicator arrays stay float64; money stays decimal in the engine.
package indicators

import "zone-backtest/services/candles"

// Closes extracts close prices as float64.
func Closes(bars []candles.Candle) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.Close.Float64()
	}
	return out
}

// SMA is a simple moving average. Entries before the first full window are 0.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA uses the standard span smoothing 2/(period+1), seeded on the first
// value.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// ATR is the rolling mean of true range over period. Entries before the
// first full window are 0.
func ATR(bars []candles.Candle, period int) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		r := high - low
		if i > 0 {
			prevClose, _ := bars[i-1].Close.Float64()
			if d := abs(high - prevClose); d > r {
				r = d
			}
			if d := abs(low - prevClose); d > r {
				r = d
			}
		}
		tr[i] = r
	}
	return SMA(tr, period)
}

// LastEMA returns the final EMA value, or 0 on an empty input.
func LastEMA(values []float64, period int) float64 {
	s := EMA(values, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// LastATR returns the final ATR value, 0 when the window is not yet full.
func LastATR(bars []candles.Candle, period int) float64 {
	s := ATR(bars, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
