package strategy

import "math"

// Батчевые реализации индикаторов по срезу цен закрытия. Выход всегда
// той же длины, что вход; прогревочный хвост заполнен NaN.

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA — простая скользящая средняя.
func SMA(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA — экспоненциальная средняя, сглаживание k=2/(period+1),
// сидируется первым значением (как ewm(adjust=false) в оригинале).
func EMA(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI — скользящие средние gain/loss за period, RS = avgGain/avgLoss.
// Валидные значения с индекса period.
func RSI(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || len(values) < period+1 {
		return out
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	var g, l float64
	for i := 1; i < len(values); i++ {
		g += gains[i]
		l += losses[i]
		if i > period {
			g -= gains[i-period]
			l -= losses[i-period]
		}
		if i < period {
			continue
		}
		avgGain := g / float64(period)
		avgLoss := l / float64(period)
		if avgLoss == 0 {
			if avgGain == 0 {
				out[i] = 50 // плоский участок
			} else {
				out[i] = 100
			}
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD — линия EMA(fast)-EMA(slow), сигнальная EMA(signal) от линии,
// гистограмма line-signal.
func MACD(values []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(values)
	if n < slow+signal {
		return nans(n), nans(n), nans(n)
	}

	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	line = make([]float64, n)
	for i := range line {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, n)
	for i := range hist {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// bandsCompressed — полосы на i сжаты: текущая ширина меньше 0.8 от
// средней ширины за последние пять периодов (текущий включительно).
func bandsCompressed(upper, lower []float64, i int) bool {
	if i < 4 {
		return false
	}
	var sum float64
	for j := i - 4; j <= i; j++ {
		if math.IsNaN(upper[j]) || math.IsNaN(lower[j]) {
			return false
		}
		sum += upper[j] - lower[j]
	}
	return upper[i]-lower[i] < sum/5*0.8
}

// Bollinger — средняя SMA(period) и полосы ±stdDev выборочных сигм.
func Bollinger(values []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	n := len(values)
	middle = SMA(values, period)
	upper = nans(n)
	lower = nans(n)
	if period < 2 || n < period {
		return upper, middle, lower
	}
	for i := period - 1; i < n; i++ {
		m := middle[i]
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - m
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(period-1))
		upper[i] = m + stdDev*sd
		lower[i] = m - stdDev*sd
	}
	return upper, middle, lower
}
