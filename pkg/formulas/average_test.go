package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Nil(t, Mean(nil))

	m := Mean([]float64{1, 2, 3, 4})
	require.NotNil(t, m)
	assert.InDelta(t, 2.5, *m, 1e-12)
}

func TestEMA_FallsBackToMean(t *testing.T) {
	assert.Nil(t, EMA(nil, 5))

	e := EMA([]float64{10, 20}, 5)
	require.NotNil(t, e)
	assert.InDelta(t, 15, *e, 1e-12)
}

func TestEMA_ConstantSeries(t *testing.T) {
	closes := []float64{7, 7, 7, 7, 7, 7, 7, 7}

	e := EMA(closes, 4)
	require.NotNil(t, e)
	assert.InDelta(t, 7, *e, 1e-9)
}

func TestEMA_WeightsRecentPrices(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 20, 20, 20, 20}

	e := EMA(closes, 4)
	m := Mean(closes)
	require.NotNil(t, e)
	require.NotNil(t, m)
	assert.Greater(t, *e, *m)
	assert.Less(t, *e, 20.0)
}
