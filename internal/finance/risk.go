package finance

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RollingVolatility is the sample standard deviation (ddof=1) of the
// trailing window of returns, annualized by sqrt(periodsPerYear). The first
// window-1 rows, and any window that contains a missing return, are missing.
func RollingVolatility(returns *Frame, window, periodsPerYear int) *Frame {
	if returns == nil {
		return NewFrame(nil, nil)
	}
	out := NewFrame(returns.index, returns.columns)
	if window < 1 {
		return out
	}
	scale := math.Sqrt(float64(periodsPerYear))
	buf := make([]float64, window)
	for _, c := range returns.columns {
		src, dst := returns.cells[c], out.cells[c]
	rows:
		for t := window - 1; t < len(src); t++ {
			for k := 0; k < window; k++ {
				r, ok := src[t-window+1+k].Float()
				if !ok {
					continue rows
				}
				buf[k] = r
			}
			dst[t] = sampleStd(buf).scale(scale)
		}
	}
	return out
}

// Drawdown is the decline of each price from its running maximum,
// price[t]/max(price[0..t]) - 1.
func Drawdown(s PriceSeries) []float64 {
	out := make([]float64, len(s.Points))
	for i, v := range drawdown(numbers(s.Prices())) {
		out[i] = v.Raw()
	}
	return out
}

// MaxDrawdown is the minimum of Drawdown over the whole series, in [-1, 0].
// It is NaN for an empty series.
func MaxDrawdown(s PriceSeries) float64 {
	return minValue(drawdown(numbers(s.Prices()))).Raw()
}

// Drawdowns applies Drawdown to every column of a price matrix. Missing
// prices stay missing and do not reset the running maximum.
func Drawdowns(prices *Frame) *Frame {
	if prices == nil {
		return NewFrame(nil, nil)
	}
	out := NewFrame(prices.index, prices.columns)
	for _, c := range prices.columns {
		copy(out.cells[c], drawdown(prices.cells[c]))
	}
	return out
}

// MaxDrawdowns returns the deepest drawdown per asset column.
func MaxDrawdowns(prices *Frame) map[AssetID]Value {
	out := make(map[AssetID]Value)
	if prices == nil {
		return out
	}
	for _, c := range prices.columns {
		out[c] = minValue(drawdown(prices.cells[c]))
	}
	return out
}

// SharpeLike is mean(r)*ppy / (std(r, ddof=1)*sqrt(ppy)) over each asset's
// present returns. No risk-free rate is subtracted, so this is not a Sharpe
// ratio. Zero variance or fewer than two observations give Undefined.
func SharpeLike(returns *Frame, periodsPerYear int) map[AssetID]Value {
	out := make(map[AssetID]Value)
	if returns == nil {
		return out
	}
	ppy := float64(periodsPerYear)
	for _, c := range returns.columns {
		xs := present(returns.cells[c])
		sd := sampleStd(xs)
		if !sd.Valid() || sd.v == 0 {
			out[c] = Undefined()
			continue
		}
		out[c] = Number((stat.Mean(xs, nil) * ppy) / (sd.v * math.Sqrt(ppy)))
	}
	return out
}

// Correlation is the Pearson correlation of each pair of return columns over
// the rows where both are present. The matrix is symmetric and its diagonal
// is exactly 1 for any column with at least two observations.
func Correlation(returns *Frame) CorrelationMatrix {
	if returns == nil {
		return CorrelationMatrix{}
	}
	cols := returns.columns
	m := CorrelationMatrix{
		Assets: append([]AssetID(nil), cols...),
		Values: make([][]Value, len(cols)),
	}
	for i := range cols {
		m.Values[i] = make([]Value, len(cols))
	}
	for i, a := range cols {
		if len(present(returns.cells[a])) >= 2 {
			m.Values[i][i] = Number(1)
		} else {
			m.Values[i][i] = Undefined()
		}
		for j := i + 1; j < len(cols); j++ {
			v := pearson(returns.cells[a], returns.cells[cols[j]])
			m.Values[i][j] = v
			m.Values[j][i] = v
		}
	}
	return m
}

// BuildRiskTable collects Sharpe_like, the latest rolling volatility and the
// maximum drawdown for each asset of the price matrix.
func BuildRiskTable(prices, returns, volatility *Frame, periodsPerYear int) RiskTable {
	sharpe := SharpeLike(returns, periodsPerYear)
	mdd := MaxDrawdowns(prices)
	t := RiskTable{Rows: make(map[AssetID]RiskMetrics)}
	if prices == nil {
		return t
	}
	t.Assets = prices.Columns()
	for _, c := range t.Assets {
		row := RiskMetrics{SharpeLike: Missing(), Vol30dAnn: Missing(), MaxDrawdown: mdd[c]}
		if v, ok := sharpe[c]; ok {
			row.SharpeLike = v
		}
		if volatility != nil && volatility.Len() > 0 {
			row.Vol30dAnn = volatility.Last(c)
		}
		t.Rows[c] = row
	}
	return t
}

func pearson(a, b []Value) Value {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(a))
	for t := range a {
		x, ok1 := a[t].Float()
		y, ok2 := b[t].Float()
		if ok1 && ok2 {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return Undefined()
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return Undefined()
	}
	return Number(math.Max(-1, math.Min(1, r)))
}

func drawdown(prices []Value) []Value {
	out := make([]Value, len(prices))
	peak := math.Inf(-1)
	for t, v := range prices {
		p, ok := v.Float()
		if !ok {
			out[t] = v
			continue
		}
		if p > peak {
			peak = p
		}
		if peak <= 0 {
			out[t] = Undefined()
			continue
		}
		out[t] = Number(p/peak - 1)
	}
	return out
}

// sampleStd is the ddof=1 standard deviation; undefined below two points
// and exactly zero for constant input.
func sampleStd(xs []float64) Value {
	if len(xs) < 2 {
		return Undefined()
	}
	if constant(xs) {
		return Number(0)
	}
	return Number(stat.StdDev(xs, nil))
}

func (x Value) scale(k float64) Value {
	if !x.Valid() {
		return x
	}
	return Number(x.v * k)
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func present(col []Value) []float64 {
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if f, ok := v.Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

func numbers(fs []float64) []Value {
	out := make([]Value, len(fs))
	for i, f := range fs {
		out[i] = Number(f)
	}
	return out
}

func minValue(col []Value) Value {
	best := Missing()
	for _, v := range col {
		f, ok := v.Float()
		if !ok {
			continue
		}
		if !best.Valid() || f < best.v {
			best = Number(f)
		}
	}
	return best
}
