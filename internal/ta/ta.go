// Package ta holds the technical indicators. Series functions return a slice aligned to their input with
// NaN wherever the indicator is not yet defined; none of them panic on short or empty input.
package ta

import (
	"math"
	"sort"
)

// Valid reports whether x is a defined value.
func Valid(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func sameLen(a, b, c []float64) bool { return len(a) == len(b) && len(b) == len(c) }

// Last returns the final element or NaN.
func Last(s []float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// Tail returns the last n elements (all of s when shorter).
func Tail(s []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// SMA is the mean of the last n closes.
func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	return Mean(closes[len(closes)-n:])
}

// StdDev is the population standard deviation of the last n values.
func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

// Bollinger returns the bands over the last n closes.
func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

// BollingerWidth evaluates (upper-lower)/middle at every trailing window of n values.
func BollingerWidth(series []float64, n int, k float64) []float64 {
	out := nanSeries(len(series))
	if n <= 0 || len(series) < n {
		return out
	}
	for i := n - 1; i < len(series); i++ {
		mid, up, low := Bollinger(series[i-n+1:i+1], n, k)
		if mid == 0 || !Valid(mid) {
			continue
		}
		out[i] = (up - low) / mid
	}
	return out
}

// EMA is seeded with the simple mean of the first span values; earlier indices are NaN.
func EMA(series []float64, span int) []float64 {
	out := nanSeries(len(series))
	if span <= 0 || len(series) < span {
		return out
	}
	sum := 0.0
	for i := 0; i < span; i++ {
		sum += series[i]
	}
	prev := sum / float64(span)
	out[span-1] = prev
	alpha := 2.0 / float64(span+1)
	for i := span; i < len(series); i++ {
		prev = alpha*series[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI uses Wilder smoothing. A window without losses reads 100. Requires len(closes) > period.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	p := float64(period)
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain, avgLoss := gain/p, loss/p
	out[period] = rsiFrom(avgGain, avgLoss)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACD returns line, signal and histogram. The signal EMA runs only over the defined part of the line.
func MACD(series []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(series)
	line, sig, hist = nanSeries(n), nanSeries(n), nanSeries(n)
	ef := EMA(series, fast)
	es := EMA(series, slow)
	start := -1
	for i := range series {
		if Valid(ef[i]) && Valid(es[i]) {
			line[i] = ef[i] - es[i]
			if start < 0 {
				start = i
			}
		}
	}
	if start < 0 {
		return
	}
	copy(sig[start:], EMA(line[start:], signal))
	for i := range series {
		if Valid(line[i]) && Valid(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return
}

// TrueRange is defined from index 1, where a previous close exists.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := nanSeries(len(closes))
	if !sameLen(highs, lows, closes) {
		return out
	}
	for i := 1; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	return out
}

// ATR is seeded with the mean of the first period true ranges at index period, then Wilder-smoothed.
func ATR(highs, lows, closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || !sameLen(highs, lows, closes) || len(closes) <= period {
		return out
	}
	p := float64(period)
	tr := TrueRange(highs, lows, closes)
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / p
	out[period] = atr
	for i := period + 1; i < len(closes); i++ {
		atr = (atr*(p-1) + tr[i]) / p
		out[i] = atr
	}
	return out
}

// DX is the directional movement index. Bars where +DI + -DI is zero are NaN. Requires len > period.
func DX(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)
	if period <= 0 || !sameLen(highs, lows, closes) || n <= period {
		return out
	}
	tr := TrueRange(highs, lows, closes)
	plus := make([]float64, n)
	minus := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plus[i] = up
		}
		if down > up && down > 0 {
			minus[i] = down
		}
	}
	p := float64(period)
	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plus[i]
		sMinus += minus[i]
	}
	out[period] = dxFrom(sTR, sPlus, sMinus)
	for i := period + 1; i < n; i++ {
		sTR = sTR - sTR/p + tr[i]
		sPlus = sPlus - sPlus/p + plus[i]
		sMinus = sMinus - sMinus/p + minus[i]
		out[i] = dxFrom(sTR, sPlus, sMinus)
	}
	return out
}

func dxFrom(tr, plusDM, minusDM float64) float64 {
	if tr <= 0 {
		return math.NaN()
	}
	pdi := 100 * plusDM / tr
	mdi := 100 * minusDM / tr
	den := pdi + mdi
	if den == 0 {
		return math.NaN()
	}
	return 100 * math.Abs(pdi-mdi) / den
}

// ADX Wilder-averages DX, seeded with the mean of the first period defined DX values.
// Undefined DX bars carry the previous ADX forward. Requires len >= 2*period.
func ADX(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)
	if period <= 0 || n < 2*period {
		return out
	}
	dx := DX(highs, lows, closes, period)
	p := float64(period)
	var adx, seedSum float64
	seedCount := 0
	seeded := false
	for i := period; i < n; i++ {
		v := dx[i]
		if !seeded {
			if Valid(v) {
				seedSum += v
				seedCount++
			}
			if seedCount == period {
				adx = seedSum / p
				seeded = true
				out[i] = adx
			}
			continue
		}
		if Valid(v) {
			adx = (adx*(p-1) + v) / p
		}
		out[i] = adx
	}
	return out
}

// Percentile is nearest-rank: NaN values dropped, ascending sort, index round(q*(n-1)) clamped to the
// slice. q is a fraction and is clamped to [0, 1]. Empty input or a NaN q yields NaN.
func Percentile(values []float64, q float64) float64 {
	vals := make([]float64, 0, len(values))
	for _, v := range values {
		if Valid(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 || math.IsNaN(q) {
		return math.NaN()
	}
	sort.Float64s(vals)
	q = math.Max(0, math.Min(1, q))
	idx := int(math.Round(q * float64(len(vals)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > len(vals)-1 {
		idx = len(vals) - 1
	}
	return vals[idx]
}

// Defined returns the valid values of s, preserving order.
func Defined(s []float64) []float64 {
	out := make([]float64, 0, len(s))
	for _, v := range s {
		if Valid(v) {
			out = append(out, v)
		}
	}
	return out
}
