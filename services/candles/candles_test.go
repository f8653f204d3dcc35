package candles

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func bar(ts int64, o, h, l, c string) Candle {
	return Candle{
		Timestamp: ts,
		Open:      decimal.RequireFromString(o),
		High:      decimal.RequireFromString(h),
		Low:       decimal.RequireFromString(l),
		Close:     decimal.RequireFromString(c),
		Volume:    decimal.NewFromInt(100),
	}
}

func TestCandleValid(t *testing.T) {
	cases := []struct {
		name string
		c    Candle
		want bool
	}{
		{"ok", bar(1, "1.10", "1.12", "1.09", "1.11"), true},
		{"zero ts", bar(0, "1.10", "1.12", "1.09", "1.11"), false},
		{"high below low", bar(1, "1.10", "1.08", "1.09", "1.10"), false},
		{"open above high", bar(1, "1.13", "1.12", "1.09", "1.11"), false},
		{"close below low", bar(1, "1.10", "1.12", "1.09", "1.08"), false},
	}
	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSeriesAppendOrdering(t *testing.T) {
	s := NewSeries("EUR_USD", TFH1)
	if err := s.Append(bar(1000, "1.10", "1.12", "1.09", "1.11")); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.Append(bar(2000, "1.11", "1.13", "1.10", "1.12")); err != nil {
		t.Fatalf("second append: %v", err)
	}

	err := s.Append(bar(2000, "1.11", "1.13", "1.10", "1.12"))
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("duplicate ts: got %v, want DataError", err)
	}
	if err := s.Append(bar(1500, "1.11", "1.13", "1.10", "1.12")); !errors.As(err, &de) {
		t.Fatalf("out of order: got %v, want DataError", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d after rejected appends, want 2", s.Len())
	}

	c, ok := s.At(1000)
	if !ok || !c.Close.Equal(decimal.RequireFromString("1.11")) {
		t.Fatalf("At(1000) = %v, %v", c, ok)
	}
	last, ok := s.Last()
	if !ok || last.Timestamp != 2000 {
		t.Fatalf("Last() ts = %d, want 2000", last.Timestamp)
	}
}

func TestSeriesAppendRejectsInvalid(t *testing.T) {
	s := NewSeries("EUR_USD", TFH1)
	var de *DataError
	if err := s.Append(bar(1000, "1.10", "1.08", "1.09", "1.10")); !errors.As(err, &de) {
		t.Fatalf("got %v, want DataError", err)
	}
	if s.Len() != 0 {
		t.Fatalf("series mutated by rejected bar")
	}
}

func TestTail(t *testing.T) {
	s := NewSeries("EUR_USD", TFH1)
	for i := int64(1); i <= 5; i++ {
		if err := s.Append(bar(i*1000, "1.10", "1.12", "1.09", "1.11")); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(s.Tail(3)); got != 3 {
		t.Errorf("Tail(3) len = %d", got)
	}
	if got := len(s.Tail(10)); got != 5 {
		t.Errorf("Tail(10) len = %d", got)
	}
	if tail := s.Tail(2); tail[0].Timestamp != 4000 {
		t.Errorf("Tail(2)[0].Timestamp = %d, want 4000", tail[0].Timestamp)
	}
}

func TestDetectGaps(t *testing.T) {
	step := TFH1.StepMs()
	bars := []Candle{
		bar(0*step+1, "1", "1", "1", "1"),
		bar(1*step+1, "1", "1", "1", "1"),
		bar(3*step+1, "1", "1", "1", "1"), // gap after second bar
		bar(4*step+1, "1", "1", "1", "1"),
	}
	gaps := DetectGaps(bars, step)
	if len(gaps) != 1 || gaps[0] != 1*step+1 {
		t.Fatalf("DetectGaps = %v, want [%d]", gaps, 1*step+1)
	}
	if got := DetectGaps(bars[:2], step); len(got) != 0 {
		t.Fatalf("contiguous bars reported gaps: %v", got)
	}
}
