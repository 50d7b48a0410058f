// Package formulas holds the price averaging used for time-weighted prices.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of closes, or nil when closes is empty
func Mean(closes []float64) *float64 {
	if len(closes) == 0 {
		return nil
	}
	m := stat.Mean(closes, nil)
	return &m
}

// EMA returns the exponential moving average of closes over length periods.
// With fewer closes than length it falls back to the simple mean.
func EMA(closes []float64, length int) *float64 {
	if len(closes) == 0 {
		return nil
	}
	if length < 2 || len(closes) < length {
		return Mean(closes)
	}

	ema := talib.Ema(closes, length)
	if len(ema) > 0 && !math.IsNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	return Mean(closes[len(closes)-length:])
}
