package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// Metrics summarizes closed trades and the equity curve.
type Metrics struct {
	TotalTrades    int
	Wins           int
	Losses         int
	WinRate        float64
	ProfitFactor   float64
	TotalPnl       decimal.Decimal
	MaxDrawdown    float64
	TradesPerMonth float64
}

const msPerMonth = 30.44 * 24 * 3_600_000

// ComputeMetrics derives summary statistics. Zero-trade inputs produce the
// zero value rather than NaNs; a run with no losing trade reports an
// infinite profit factor.
func ComputeMetrics(trades []*Trade, curve []EquityPoint) Metrics {
	var m Metrics
	m.TotalPnl = decimal.Zero
	if len(trades) == 0 {
		return m
	}

	grossWin, grossLoss := decimal.Zero, decimal.Zero
	minTs, maxTs := trades[0].OpenedAt, trades[0].ClosedAt
	for _, t := range trades {
		m.TotalPnl = m.TotalPnl.Add(t.Pnl)
		if t.Pnl.IsPositive() {
			m.Wins++
			grossWin = grossWin.Add(t.Pnl)
		} else {
			m.Losses++
			grossLoss = grossLoss.Add(t.Pnl.Abs())
		}
		if t.OpenedAt < minTs {
			minTs = t.OpenedAt
		}
		if t.ClosedAt > maxTs {
			maxTs = t.ClosedAt
		}
	}
	m.TotalTrades = len(trades)
	m.WinRate = float64(m.Wins) / float64(m.TotalTrades)

	if grossLoss.IsZero() {
		m.ProfitFactor = math.Inf(1)
	} else {
		m.ProfitFactor, _ = grossWin.Div(grossLoss).Float64()
	}

	m.MaxDrawdown = MaxDrawdown(curve)

	// Frequency over the span between the first open and last close, with a
	// one-day floor so short runs stay finite.
	spanMs := maxTs - minTs
	if spanMs < 24*3_600_000 {
		spanMs = 24 * 3_600_000
	}
	m.TradesPerMonth = float64(m.TotalTrades) / (float64(spanMs) / msPerMonth)
	return m
}

// MaxDrawdown is the largest peak-to-trough equity drop as a fraction of
// the peak.
func MaxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	worst := 0.0
	for _, p := range curve[1:] {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
			continue
		}
		if peak.IsPositive() {
			dd, _ := peak.Sub(p.Equity).Div(peak).Float64()
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
