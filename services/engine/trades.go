package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"zone-backtest/services/candles"
	"zone-backtest/services/config"
)

// TradeManager owns the trade lifecycle: admission, sizing, intrabar exit
// resolution and forced liquidation. It is the only writer of the
// Portfolio. Trade IDs are sequential so identical inputs replay to
// identical IDs.
type TradeManager struct {
	cfg    *config.Config
	nextID int64

	risk    decimal.Decimal
	minSize decimal.Decimal
	maxSize decimal.Decimal
	cost    decimal.Decimal
}

func NewTradeManager(cfg *config.Config) *TradeManager {
	return &TradeManager{
		cfg:     cfg,
		nextID:  1,
		risk:    decimal.NewFromFloat(cfg.RiskPerTrade),
		minSize: decimal.NewFromFloat(cfg.MinSize),
		maxSize: decimal.NewFromFloat(cfg.MaxSize),
		cost:    decimal.NewFromFloat(cfg.TransactionCost),
	}
}

// Open admits a signal as a live trade. Concurrency limits and degenerate
// sizing reject the signal without touching the portfolio.
func (m *TradeManager) Open(pf *Portfolio, sig Signal) (*Trade, error) {
	if len(pf.Open) >= m.cfg.MaxOpenTotal || pf.OpenForPair(sig.Pair) >= m.cfg.MaxOpenPerPair {
		return nil, ErrRiskLimitExceeded
	}
	dist := sig.Entry.Sub(sig.Stop).Abs()
	if !dist.IsPositive() {
		return nil, ErrInvalidSizing
	}
	size := pf.Equity.Mul(m.risk).Div(dist)
	if size.LessThan(m.minSize) {
		size = m.minSize
	}
	if size.GreaterThan(m.maxSize) {
		size = m.maxSize
	}
	if !size.IsPositive() {
		return nil, ErrInvalidSizing
	}

	t := &Trade{
		ID:        m.nextID,
		Pair:      sig.Pair,
		Direction: sig.Direction,
		Entry:     sig.Entry,
		Stop:      sig.Stop,
		Target:    sig.Target,
		Size:      size,
		OpenedAt:  sig.Timestamp,
	}
	m.nextID++
	pf.Open[t.ID] = t
	return t, nil
}

// Update resolves exits for one pair against a completed bar. Trades are
// visited oldest first (ID breaks ties). A bar spanning both levels
// resolves as a stop: with no intrabar path data the loss-first reading is
// the one that never overstates results.
func (m *TradeManager) Update(pf *Portfolio, pair string, bar candles.Candle) []*Trade {
	var closed []*Trade
	for _, t := range m.openSorted(pf, pair) {
		var stopHit, targetHit bool
		if t.Direction == DirectionBuy {
			stopHit = bar.Low.LessThanOrEqual(t.Stop)
			targetHit = bar.High.GreaterThanOrEqual(t.Target)
		} else {
			stopHit = bar.High.GreaterThanOrEqual(t.Stop)
			targetHit = bar.Low.LessThanOrEqual(t.Target)
		}
		switch {
		case stopHit:
			m.close(pf, t, t.Stop, ExitStopLoss, bar.Timestamp)
			closed = append(closed, t)
		case targetHit:
			m.close(pf, t, t.Target, ExitTakeProfit, bar.Timestamp)
			closed = append(closed, t)
		}
	}
	return closed
}

// ForceCloseAll liquidates every open trade at its pair's last known close.
// After it returns no trade is open.
func (m *TradeManager) ForceCloseAll(pf *Portfolio, lastClose map[string]decimal.Decimal, ts int64) []*Trade {
	var closed []*Trade
	for _, t := range m.openSorted(pf, "") {
		price, ok := lastClose[t.Pair]
		if !ok {
			price = t.Entry
		}
		m.close(pf, t, price, ExitForcedClose, ts)
		closed = append(closed, t)
	}
	return closed
}

func (m *TradeManager) close(pf *Portfolio, t *Trade, price decimal.Decimal, reason ExitReason, ts int64) {
	t.ExitPrice = price
	t.Reason = reason
	t.ClosedAt = ts
	t.Pnl = t.Size.Mul(price.Sub(t.Entry)).Mul(decimal.NewFromInt(t.Direction.Sign())).Sub(m.cost)
	pf.Equity = pf.Equity.Add(t.Pnl)
	delete(pf.Open, t.ID)
}

// openSorted returns open trades ordered by (OpenedAt, ID); an empty pair
// selects all pairs.
func (m *TradeManager) openSorted(pf *Portfolio, pair string) []*Trade {
	out := make([]*Trade, 0, len(pf.Open))
	for _, t := range pf.Open {
		if pair == "" || t.Pair == pair {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].OpenedAt != out[b].OpenedAt {
			return out[a].OpenedAt < out[b].OpenedAt
		}
		return out[a].ID < out[b].ID
	})
	return out
}
