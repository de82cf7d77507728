package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestEMAConstantSeries(t *testing.T) {
	values := []float64{100, 100, 100, 100, 100}
	out := EMA(values, 3)
	for i := range out {
		assert.InDelta(t, 100.0, out[i], 1e-9)
	}
}

func TestEMATracksPrice(t *testing.T) {
	out := EMA([]float64{10, 10, 10, 20}, 3)
	// k = 0.5: 20*0.5 + 10*0.5
	assert.InDelta(t, 15.0, out[3], 1e-9)
}

func TestRSIExtremes(t *testing.T) {
	rising := make([]float64, 30)
	falling := make([]float64, 30)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 100 - float64(i)
	}

	up := RSI(rising, 14)
	down := RSI(falling, 14)

	assert.InDelta(t, 100.0, up[len(up)-1], 1e-9)
	assert.InDelta(t, 0.0, down[len(down)-1], 1e-9)
}

func TestRSIBalancedMovesIsFifty(t *testing.T) {
	// чередование +1/-1: средние gain и loss равны, RS=1, RSI=50
	values := make([]float64, 31)
	values[0] = 100
	for i := 1; i < len(values); i++ {
		if i%2 == 1 {
			values[i] = values[i-1] + 1
		} else {
			values[i] = values[i-1] - 1
		}
	}
	out := RSI(values, 14)
	assert.InDelta(t, 50.0, out[len(out)-1], 1e-9)
}

func TestRSIFlatSeriesNeutral(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 42
	}
	out := RSI(values, 14)
	assert.InDelta(t, 50.0, out[len(out)-1], 1e-9)
}

func TestRSIWarmupIsNaN(t *testing.T) {
	values := []float64{1, 2, 3}
	out := RSI(values, 14)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestMACDSignOnTrend(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + 2*float64(i)
	}
	line, sig, hist := MACD(values, 12, 26, 9)
	last := len(values) - 1

	// устойчивый рост: быстрая EMA выше медленной
	assert.Greater(t, line[last], 0.0)
	assert.Greater(t, sig[last], 0.0)
	assert.InDelta(t, line[last]-sig[last], hist[last], 1e-9)
}

func TestMACDTooShort(t *testing.T) {
	_, _, hist := MACD([]float64{1, 2, 3}, 12, 26, 9)
	require.Len(t, hist, 3)
	for _, v := range hist {
		assert.True(t, math.IsNaN(v))
	}
}

func TestBollinger(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	upper, middle, lower := Bollinger(values, 5, 2.0)
	last := len(values) - 1

	// выборочное среднеквадратичное по 1..5: sqrt(2.5)
	sd := math.Sqrt(2.5)
	assert.InDelta(t, 3.0, middle[last], 1e-9)
	assert.InDelta(t, 3.0+2*sd, upper[last], 1e-9)
	assert.InDelta(t, 3.0-2*sd, lower[last], 1e-9)
	assert.True(t, math.IsNaN(middle[last-1]))
}

func TestBandsCompressed(t *testing.T) {
	// ширина 20,20,20,20,4: текущая сильно меньше средней
	upper := []float64{110, 110, 110, 110, 102}
	lower := []float64{90, 90, 90, 90, 98}
	assert.True(t, bandsCompressed(upper, lower, 4))

	// постоянная ширина — не сжатие
	steadyUp := []float64{110, 110, 110, 110, 110}
	steadyLow := []float64{90, 90, 90, 90, 90}
	assert.False(t, bandsCompressed(steadyUp, steadyLow, 4))

	// мало истории или NaN в окне — не решаем
	assert.False(t, bandsCompressed(upper, lower, 3))
	nanUp := []float64{math.NaN(), 110, 110, 110, 102}
	assert.False(t, bandsCompressed(nanUp, lower, 4))
}

func TestBollingerFlatSeriesCollapses(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 50
	}
	upper, middle, lower := Bollinger(values, 20, 2.0)
	last := len(values) - 1
	assert.Equal(t, middle[last], upper[last])
	assert.Equal(t, middle[last], lower[last])
}
