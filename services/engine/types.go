// Package engine implements the zone strategy core: zone detection, trend
// and timing filters, signal scoring, trade lifecycle and the deterministic
// backtest replay.
package engine

import (
	"github.com/shopspring/decimal"
)

// Direction of a signal or trade.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionBuy
	DirectionSell
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "BUY"
	case DirectionSell:
		return "SELL"
	}
	return "NONE"
}

// Sign is +1 for buys, -1 for sells, 0 otherwise.
func (d Direction) Sign() int64 {
	switch d {
	case DirectionBuy:
		return 1
	case DirectionSell:
		return -1
	}
	return 0
}

// ExitReason is the terminal state of a trade.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitTakeProfit
	ExitStopLoss
	ExitForcedClose
)

func (r ExitReason) String() string {
	switch r {
	case ExitTakeProfit:
		return "TAKE_PROFIT"
	case ExitStopLoss:
		return "STOP_LOSS"
	case ExitForcedClose:
		return "FORCED_CLOSE"
	}
	return "OPEN"
}

// TrendState is the higher-timeframe bias.
type TrendState int

const (
	TrendFlat TrendState = iota
	TrendUp
	TrendDown
)

func (t TrendState) String() string {
	switch t {
	case TrendUp:
		return "UP"
	case TrendDown:
		return "DOWN"
	}
	return "FLAT"
}

// Signal is a tagged variant: when Direction is DirectionNone the level
// fields carry no meaning and must not be read. Signals are ephemeral —
// produced per bar per pair, consumed immediately or discarded.
type Signal struct {
	Pair       string
	Direction  Direction
	Confidence float64
	Entry      decimal.Decimal
	Stop       decimal.Decimal
	Target     decimal.Decimal
	RiskReward decimal.Decimal
	Timestamp  int64
}

// None is the empty signal for a pair at a timestamp.
func None(pair string, ts int64) Signal {
	return Signal{Pair: pair, Direction: DirectionNone, Timestamp: ts}
}

// Trade transitions exactly once from open to a terminal ExitReason and is
// never reopened.
type Trade struct {
	ID        int64
	Pair      string
	Direction Direction
	Entry     decimal.Decimal
	Stop      decimal.Decimal
	Target    decimal.Decimal
	Size      decimal.Decimal
	OpenedAt  int64
	ClosedAt  int64
	ExitPrice decimal.Decimal
	Reason    ExitReason
	Pnl       decimal.Decimal
}

// Portfolio is owned exclusively by the TradeManager and mutated only
// through its open/close operations.
type Portfolio struct {
	Open   map[int64]*Trade
	Equity decimal.Decimal
}

func NewPortfolio(equity decimal.Decimal) *Portfolio {
	return &Portfolio{Open: make(map[int64]*Trade), Equity: equity}
}

// OpenForPair counts open trades on one pair.
func (p *Portfolio) OpenForPair(pair string) int {
	n := 0
	for _, t := range p.Open {
		if t.Pair == pair {
			n++
		}
	}
	return n
}

// EventType classifies replay events.
type EventType int

const (
	EventTradeOpen EventType = iota
	EventTakeProfitHit
	EventStopHit
	EventForcedClose
	EventEquityPoint
)

// Event is one replay occurrence, recorded in bar order.
type Event struct {
	Ts     int64
	Type   EventType
	Pair   string
	Trade  int64
	Equity decimal.Decimal
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Ts     int64
	Equity decimal.Decimal
}
