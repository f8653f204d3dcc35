// Package config loads and validates the immutable strategy configuration.
// The value is constructed once and passed to each component; nothing in
// the engine reads configuration globally.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"zone-backtest/services/candles"
)

// ConfigError marks a configuration that would make results meaningless.
// It aborts the run before any replay or poll starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Window is a half-open UTC hour interval [Start, End). Start > End crosses
// midnight.
type Window struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// Contains reports whether hour falls inside the window.
func (w Window) Contains(hour int) bool {
	if w.Start == w.End {
		return false
	}
	if w.Start > w.End {
		return hour >= w.Start || hour < w.End
	}
	return hour >= w.Start && hour < w.End
}

// ConfidenceWeights are the scoring coefficients for signal confidence.
type ConfidenceWeights struct {
	ZoneStrength   float64 `mapstructure:"zone_strength"`
	TrendAlignment float64 `mapstructure:"trend_alignment"`
	TouchRecency   float64 `mapstructure:"touch_recency"`
}

func (w ConfidenceWeights) Sum() float64 {
	return w.ZoneStrength + w.TrendAlignment + w.TouchRecency
}

// Config is the full strategy configuration.
type Config struct {
	Pairs []string `mapstructure:"pairs"`

	BaseTimeframe  string   `mapstructure:"base_timeframe"`
	ZoneTimeframes []string `mapstructure:"zone_timeframes"`
	TrendTimeframe string   `mapstructure:"trend_timeframe"`

	StartEquity     float64 `mapstructure:"start_equity"`
	MinRiskReward   float64 `mapstructure:"min_risk_reward"`
	RiskPerTrade    float64 `mapstructure:"risk_per_trade"`
	MaxOpenTotal    int     `mapstructure:"max_open_total"`
	MaxOpenPerPair  int     `mapstructure:"max_open_per_pair"`
	MinSize         float64 `mapstructure:"min_size"`
	MaxSize         float64 `mapstructure:"max_size"`
	TransactionCost float64 `mapstructure:"transaction_cost"`

	FastMAPeriod  int `mapstructure:"fast_ma_period"`
	SlowMAPeriod  int `mapstructure:"slow_ma_period"`
	TrendMAPeriod int `mapstructure:"trend_ma_period"`
	ATRPeriod     int `mapstructure:"atr_period"`

	PivotWindow          int     `mapstructure:"pivot_window"`
	ZoneClusterTolerance float64 `mapstructure:"zone_cluster_tolerance"`
	ZoneProximity        float64 `mapstructure:"zone_proximity"`
	ZoneBreakBuffer      float64 `mapstructure:"zone_break_buffer"`
	ZoneMinTouches       int     `mapstructure:"zone_min_touches"`
	ZoneMaxAgeBars       int     `mapstructure:"zone_max_age_bars"`

	StopATRMult        float64 `mapstructure:"stop_atr_mult"`
	StopBuffer         float64 `mapstructure:"stop_buffer"`
	WickRejectionRatio float64 `mapstructure:"wick_rejection_ratio"`
	WickBonus          float64 `mapstructure:"wick_bonus"`

	TimeframeWeights  map[string]float64  `mapstructure:"timeframe_weights"`
	Confidence        ConfidenceWeights   `mapstructure:"confidence_weights"`
	ZoneStrengthScale float64             `mapstructure:"zone_strength_scale"`
	Windows           map[string][]Window `mapstructure:"trading_windows"`
	DeadWindow        Window              `mapstructure:"dead_window"`

	HistoryBars int `mapstructure:"history_bars"`
}

// Default mirrors the strategy's stock parameters: 21/50/200 EMAs, minimum
// two zone touches, 1.7 minimum risk/reward, 1% risk per trade, and the
// session windows of the major pairs. The 14-15 UTC dead window covers the
// pre-New-York liquidity dip.
func Default() *Config {
	return &Config{
		Pairs:          []string{"EUR_USD", "GBP_USD", "USD_JPY", "AUD_USD", "USD_CAD"},
		BaseTimeframe:  string(candles.TFH1),
		ZoneTimeframes: []string{string(candles.TFH4), string(candles.TFD1)},
		TrendTimeframe: string(candles.TFD1),

		StartEquity:     10_000,
		MinRiskReward:   1.7,
		RiskPerTrade:    0.01,
		MaxOpenTotal:    5,
		MaxOpenPerPair:  1,
		MinSize:         1_000,
		MaxSize:         1_000_000,
		TransactionCost: 0.5,

		FastMAPeriod:  21,
		SlowMAPeriod:  50,
		TrendMAPeriod: 200,
		ATRPeriod:     14,

		PivotWindow:          5,
		ZoneClusterTolerance: 0.0015,
		ZoneProximity:        0.0010,
		ZoneBreakBuffer:      0.0010,
		ZoneMinTouches:       2,
		ZoneMaxAgeBars:       200,

		StopATRMult:        0.5,
		StopBuffer:         0.0005,
		WickRejectionRatio: 2.0,
		WickBonus:          0.25,

		TimeframeWeights: map[string]float64{
			string(candles.TFH1): 1.0,
			string(candles.TFH4): 2.0,
			string(candles.TFD1): 3.0,
		},
		Confidence: ConfidenceWeights{
			ZoneStrength:   0.4,
			TrendAlignment: 0.4,
			TouchRecency:   0.2,
		},
		ZoneStrengthScale: 4.0,
		Windows: map[string][]Window{
			"EUR_USD": {{Start: 7, End: 20}},
			"GBP_USD": {{Start: 7, End: 20}},
			"USD_JPY": {{Start: 0, End: 9}, {Start: 12, End: 21}},
			"AUD_USD": {{Start: 21, End: 6}, {Start: 12, End: 20}},
			"USD_CAD": {{Start: 12, End: 21}},
		},
		DeadWindow: Window{Start: 14, End: 15},

		HistoryBars: 500,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on values that would corrupt a replay.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return &ConfigError{Field: "pairs", Reason: "at least one pair required"}
	}
	if candles.Timeframe(c.BaseTimeframe).Minutes() == 0 {
		return &ConfigError{Field: "base_timeframe", Reason: "unknown timeframe " + c.BaseTimeframe}
	}
	for _, tf := range c.ZoneTimeframes {
		if candles.Timeframe(tf).Minutes() == 0 {
			return &ConfigError{Field: "zone_timeframes", Reason: "unknown timeframe " + tf}
		}
		if candles.Timeframe(tf).Minutes() < candles.Timeframe(c.BaseTimeframe).Minutes() {
			return &ConfigError{Field: "zone_timeframes", Reason: tf + " below base timeframe"}
		}
	}
	if candles.Timeframe(c.TrendTimeframe).Minutes() == 0 {
		return &ConfigError{Field: "trend_timeframe", Reason: "unknown timeframe " + c.TrendTimeframe}
	}
	if c.MinRiskReward <= 0 {
		return &ConfigError{Field: "min_risk_reward", Reason: "must be positive"}
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1 {
		return &ConfigError{Field: "risk_per_trade", Reason: "must be in (0, 1)"}
	}
	if c.MaxOpenTotal <= 0 || c.MaxOpenPerPair <= 0 {
		return &ConfigError{Field: "max_open", Reason: "limits must be positive"}
	}
	if c.MaxOpenPerPair > c.MaxOpenTotal {
		return &ConfigError{Field: "max_open_per_pair", Reason: "exceeds max_open_total"}
	}
	if c.StartEquity <= 0 {
		return &ConfigError{Field: "start_equity", Reason: "must be positive"}
	}
	if c.ZoneClusterTolerance <= 0 || c.ZoneProximity <= 0 || c.ZoneBreakBuffer <= 0 {
		return &ConfigError{Field: "zone", Reason: "tolerances must be positive"}
	}
	if c.ZoneMinTouches < 1 || c.ZoneMaxAgeBars < 1 || c.PivotWindow < 1 {
		return &ConfigError{Field: "zone", Reason: "counts must be at least 1"}
	}
	if c.FastMAPeriod < 1 || c.SlowMAPeriod < 1 || c.TrendMAPeriod < 1 || c.ATRPeriod < 1 {
		return &ConfigError{Field: "periods", Reason: "must be at least 1"}
	}
	if c.FastMAPeriod >= c.SlowMAPeriod {
		return &ConfigError{Field: "fast_ma_period", Reason: "must be below slow_ma_period"}
	}
	if c.Confidence.Sum() <= 0 {
		return &ConfigError{Field: "confidence_weights", Reason: "weights must sum to a positive value"}
	}
	if c.Confidence.ZoneStrength < 0 || c.Confidence.TrendAlignment < 0 || c.Confidence.TouchRecency < 0 {
		return &ConfigError{Field: "confidence_weights", Reason: "weights must be non-negative"}
	}
	if c.ZoneStrengthScale <= 0 {
		return &ConfigError{Field: "zone_strength_scale", Reason: "must be positive"}
	}
	// A zero dead window disables it.
	if c.DeadWindow != (Window{}) {
		if err := validateWindow(c.DeadWindow, "dead_window"); err != nil {
			return err
		}
	}
	for pair, ws := range c.Windows {
		for _, w := range ws {
			if err := validateWindow(w, "trading_windows."+pair); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateWindow(w Window, field string) error {
	if w.Start < 0 || w.Start > 23 || w.End < 0 || w.End > 24 {
		return &ConfigError{Field: field, Reason: "hours must be within 0-24"}
	}
	if w.Start == w.End {
		return &ConfigError{Field: field, Reason: "empty window"}
	}
	return nil
}
