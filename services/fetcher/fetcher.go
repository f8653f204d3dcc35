// Package fetcher pulls candle history from an HTTP candle feed. Prices
// travel as strings end to end so no float round-trip touches them.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"zone-backtest/services/candles"
)

// FeedError marks a pair whose feed failed after all retries. One pair's
// feed failure never aborts the other pairs.
type FeedError struct {
	Pair     string
	Attempts int
	Err      error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s failed after %d attempts: %v", e.Pair, e.Attempts, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

type candleRow struct {
	Ts     int64  `json:"ts"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

// Client is a retrying candle feed client. Transient failures retry with a
// fixed-doubling backoff; context cancellation cuts the retry loop short.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
	attempts int
	backoff  time.Duration
}

func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
}

// Fetch returns bars of one pair/timeframe in [fromMs, toMs).
func (c *Client) Fetch(ctx context.Context, pair string, tf candles.Timeframe, fromMs, toMs int64) ([]candles.Candle, error) {
	q := url.Values{
		"pair":      {pair},
		"timeframe": {string(tf)},
		"from":      {strconv.FormatInt(fromMs, 10)},
		"to":        {strconv.FormatInt(toMs, 10)},
	}
	return c.get(ctx, pair, q)
}

// Latest returns the most recent count completed bars of one pair.
func (c *Client) Latest(ctx context.Context, pair string, tf candles.Timeframe, count int) ([]candles.Candle, error) {
	q := url.Values{
		"pair":      {pair},
		"timeframe": {string(tf)},
		"count":     {strconv.Itoa(count)},
	}
	return c.get(ctx, pair, q)
}

func (c *Client) get(ctx context.Context, pair string, q url.Values) ([]candles.Candle, error) {
	u := c.baseURL + "/candles?" + q.Encode()

	var lastErr error
	wait := c.backoff
	for attempt := 1; attempt <= c.attempts; attempt++ {
		bars, err := c.once(ctx, u)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		c.logger.Warn("candle fetch failed",
			zap.String("pair", pair),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &FeedError{Pair: pair, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(wait):
		}
		wait *= 2
	}
	return nil, &FeedError{Pair: pair, Attempts: c.attempts, Err: lastErr}
}

func (c *Client) once(ctx context.Context, u string) ([]candles.Candle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var rows []candleRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	out := make([]candles.Candle, 0, len(rows))
	for _, r := range rows {
		bar, err := r.toCandle()
		if err != nil {
			return nil, err
		}
		out = append(out, bar)
	}
	return out, nil
}

func (r candleRow) toCandle() (candles.Candle, error) {
	var c candles.Candle
	var err error
	c.Timestamp = r.Ts
	if c.Open, err = decimal.NewFromString(r.Open); err != nil {
		return c, fmt.Errorf("bar %d open: %w", r.Ts, err)
	}
	if c.High, err = decimal.NewFromString(r.High); err != nil {
		return c, fmt.Errorf("bar %d high: %w", r.Ts, err)
	}
	if c.Low, err = decimal.NewFromString(r.Low); err != nil {
		return c, fmt.Errorf("bar %d low: %w", r.Ts, err)
	}
	if c.Close, err = decimal.NewFromString(r.Close); err != nil {
		return c, fmt.Errorf("bar %d close: %w", r.Ts, err)
	}
	if r.Volume == "" {
		c.Volume = decimal.Zero
		return c, nil
	}
	if c.Volume, err = decimal.NewFromString(r.Volume); err != nil {
		return c, fmt.Errorf("bar %d volume: %w", r.Ts, err)
	}
	return c, nil
}
