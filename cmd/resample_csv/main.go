// Resamples a base-timeframe candle CSV to a higher timeframe. UTF-16
// broker exports are handled by the loader.
package main

import (
	"flag"
	"fmt"
	"os"

	"zone-backtest/services/candles"
)

func main() {
	in := flag.String("in", "", "Input CSV (timestamp,open,high,low,close,volume)")
	out := flag.String("out", "", "Output CSV path")
	src := flag.String("src", "H1", "Source timeframe (M5, M15, H1, H4, D1)")
	dst := flag.String("dst", "H4", "Target timeframe")
	pair := flag.String("pair", "EUR_USD", "Pair label for diagnostics")
	flag.Parse()

	if *in == "" || *out == "" {
		panic("-in and -out are required")
	}
	srcTF, dstTF := candles.Timeframe(*src), candles.Timeframe(*dst)
	if srcTF.Minutes() == 0 || dstTF.Minutes() == 0 {
		panic("unknown timeframe")
	}
	if dstTF.Minutes()%srcTF.Minutes() != 0 || dstTF.Minutes() <= srcTF.Minutes() {
		panic("dst must be a larger multiple of src")
	}

	s, skipped, err := candles.LoadCSV(*in, *pair, srcTF)
	if err != nil {
		panic(err)
	}
	resampled := candles.Resample(s.Bars(), dstTF)

	outF, err := os.Create(*out)
	if err != nil {
		panic(err)
	}
	defer outF.Close()
	if err := candles.WriteCSV(outF, resampled); err != nil {
		panic(err)
	}

	fmt.Printf("Resampled %s: %d %s bars -> %d %s bars (skipped %d rows)\n",
		*pair, s.Len(), srcTF, len(resampled), dstTF, skipped)
}
