package candles

// Resampling with right-edge alignment: a higher-timeframe bar becomes
// visible only once a source bar at or past the bucket end has arrived.
// Decisions at time T therefore never see a bucket that T is still inside.

// Aggregator incrementally builds higher-timeframe bars from base bars.
type Aggregator struct {
	stepMs      int64
	bucketStart int64
	cur         Candle
	open        bool
}

func NewAggregator(tf Timeframe) *Aggregator {
	return &Aggregator{stepMs: tf.StepMs()}
}

// Push folds a base bar in and returns the completed higher-timeframe bar,
// if the new base bar closed a bucket.
func (a *Aggregator) Push(c Candle) (Candle, bool) {
	bucket := c.Timestamp - mod(c.Timestamp, a.stepMs)

	var done Candle
	var completed bool
	if a.open && bucket != a.bucketStart {
		done = a.cur
		completed = true
		a.open = false
	}

	if !a.open {
		a.bucketStart = bucket
		a.cur = Candle{
			Timestamp: bucket,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
		a.open = true
		return done, completed
	}

	if c.High.GreaterThan(a.cur.High) {
		a.cur.High = c.High
	}
	if c.Low.LessThan(a.cur.Low) {
		a.cur.Low = c.Low
	}
	a.cur.Close = c.Close
	a.cur.Volume = a.cur.Volume.Add(c.Volume)
	return done, completed
}

// Resample converts a base series to a higher timeframe. Only completed
// buckets are emitted; a trailing partial bucket is dropped.
func Resample(bars []Candle, tf Timeframe) []Candle {
	agg := NewAggregator(tf)
	var out []Candle
	for _, b := range bars {
		if done, ok := agg.Push(b); ok {
			out = append(out, done)
		}
	}
	return out
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
