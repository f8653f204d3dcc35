package engine

import (
	"testing"

	"zone-backtest/services/config"
)

func TestEntryTimingFilterWindows(t *testing.T) {
	cfg := testConfig()
	cfg.Windows = map[string][]config.Window{
		"EUR_USD": {{Start: 7, End: 14}, {Start: 16, End: 20}},
	}
	f := NewEntryTimingFilter(cfg)

	cases := []struct {
		hour int
		want bool
	}{
		{6, false},
		{7, true},
		{10, true},
		{13, true},
		{14, false}, // end of first window is exclusive
		{15, false},
		{16, true},
		{19, true},
		{20, false},
		{23, false},
	}
	for _, tc := range cases {
		if got := f.Allow("EUR_USD", tc.hour); got != tc.want {
			t.Errorf("Allow(EUR_USD, %d) = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestEntryTimingFilterDeadWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Windows = map[string][]config.Window{
		"EUR_USD": {{Start: 7, End: 20}},
	}
	cfg.DeadWindow = config.Window{Start: 10, End: 12}
	f := NewEntryTimingFilter(cfg)

	if f.Allow("EUR_USD", 10) || f.Allow("EUR_USD", 11) {
		t.Error("dead window hours must deny even inside a trading window")
	}
	if !f.Allow("EUR_USD", 12) {
		t.Error("dead window end must be exclusive")
	}
	// A pair with no configured windows is still subject to the dead window.
	if f.Allow("USD_JPY", 11) {
		t.Error("dead window must apply to unrestricted pairs")
	}
	if !f.Allow("USD_JPY", 3) {
		t.Error("unrestricted pair denied outside dead window")
	}
}

func TestEntryTimingFilterCrossMidnight(t *testing.T) {
	cfg := testConfig()
	cfg.Windows = map[string][]config.Window{
		"AUD_USD": {{Start: 21, End: 6}},
	}
	f := NewEntryTimingFilter(cfg)

	for _, h := range []int{21, 23, 0, 5} {
		if !f.Allow("AUD_USD", h) {
			t.Errorf("Allow(AUD_USD, %d) = false inside cross-midnight window", h)
		}
	}
	for _, h := range []int{6, 12, 20} {
		if f.Allow("AUD_USD", h) {
			t.Errorf("Allow(AUD_USD, %d) = true outside cross-midnight window", h)
		}
	}
}

func TestEntryTimingFilterRejectsBadHour(t *testing.T) {
	f := NewEntryTimingFilter(testConfig())
	if f.Allow("EUR_USD", -1) || f.Allow("EUR_USD", 24) {
		t.Error("out-of-range hours must deny")
	}
}
