package finance

import (
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func returnsFrame(cols map[AssetID][]float64, order ...AssetID) *Frame {
	n := len(cols[order[0]])
	index := make([]time.Time, n)
	for i := range index {
		index[i] = day(i + 1)
	}
	f := NewFrame(index, order)
	for _, c := range order {
		for i, r := range cols[c] {
			if math.IsNaN(r) {
				continue
			}
			f.Set(i, c, Number(r))
		}
	}
	return f
}

func TestDrawdown_MonotonicScenario(t *testing.T) {
	s := series(t, "btc", 0, 100, 110, 121)
	assert.Equal(t, []float64{0, 0, 0}, Drawdown(s))
	assert.Equal(t, 0.0, MaxDrawdown(s))
}

func TestDrawdown_RecoveryScenario(t *testing.T) {
	s := series(t, "btc", 0, 100, 50, 100)
	assert.Equal(t, []float64{0, -0.5, 0}, Drawdown(s))
	assert.Equal(t, -0.5, MaxDrawdown(s))
}

func TestDrawdown_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(60)
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = 1 + rng.Float64()*1000
		}
		if trial%5 == 0 {
			sort.Float64s(prices)
		}
		s := series(t, "x", 0, prices...)

		dd := Drawdown(s)
		require.Len(t, dd, n)
		assert.Equal(t, 0.0, dd[0])
		for i, v := range dd {
			assert.LessOrEqualf(t, v, 0.0, "drawdown[%d]", i)
		}

		mdd := MaxDrawdown(s)
		assert.GreaterOrEqual(t, mdd, -1.0)
		nonDecreasing := sort.Float64sAreSorted(prices)
		assert.Equalf(t, nonDecreasing, mdd == 0, "trial %d: non-decreasing=%v max drawdown=%v", trial, nonDecreasing, mdd)
	}
}

func TestMaxDrawdown_Empty(t *testing.T) {
	assert.True(t, math.IsNaN(MaxDrawdown(PriceSeries{Asset: "x"})))
}

func TestDrawdowns_MissingPricesKeepPeak(t *testing.T) {
	prices := matrix(t,
		series(t, "a", 0, 100, 80, 90, 70),
		series(t, "b", 1, 10, 20),
	)
	dd := Drawdowns(prices)
	assert.InDelta(t, -0.3, dd.At(3, "a").Raw(), 1e-12)
	assert.True(t, dd.At(0, "b").IsMissing())
	assert.True(t, dd.At(3, "b").IsMissing())
	assert.Equal(t, 0.0, dd.At(2, "b").Raw())

	mdd := MaxDrawdowns(prices)
	assert.InDelta(t, -0.3, mdd["a"].Raw(), 1e-12)
	assert.Equal(t, 0.0, mdd["b"].Raw())
}

func TestRollingVolatility_WindowLargerThanHistory(t *testing.T) {
	rets := make([]float64, 10)
	for i := range rets {
		rets[i] = float64(i%3) / 100
	}
	vol := RollingVolatility(returnsFrame(map[AssetID][]float64{"btc": rets}, "btc"), 30, 365)
	require.Equal(t, 10, vol.Len())
	for i, v := range vol.Column("btc") {
		assert.Truef(t, v.IsMissing(), "row %d should be missing, got %s", i, v)
	}
}

func TestRollingVolatility_SampleStdAnnualized(t *testing.T) {
	f := returnsFrame(map[AssetID][]float64{"btc": {0.01, 0.03, -0.02, 0.00}}, "btc")
	vol := RollingVolatility(f, 3, 365)

	assert.True(t, vol.At(0, "btc").IsMissing())
	assert.True(t, vol.At(1, "btc").IsMissing())
	assert.InDelta(t, 0.025166114784235836*math.Sqrt(365), vol.At(2, "btc").Raw(), 1e-12)
	// window {0.03, -0.02, 0.00}
	assert.InDelta(t, 0.025166114784235836*math.Sqrt(365), vol.At(3, "btc").Raw(), 1e-12)
}

func TestRollingVolatility_MissingInWindow(t *testing.T) {
	f := returnsFrame(map[AssetID][]float64{"a": {0.01, math.NaN(), 0.02, 0.03, 0.01}}, "a")
	vol := RollingVolatility(f, 2, 1)
	assert.True(t, vol.At(1, "a").IsMissing())
	assert.True(t, vol.At(2, "a").IsMissing())
	assert.True(t, vol.At(3, "a").Valid())
	assert.True(t, vol.At(4, "a").Valid())
}

func TestSharpeLike(t *testing.T) {
	f := returnsFrame(map[AssetID][]float64{
		"up":   {0.01, 0.02, 0.03},
		"flat": {0.05, 0.05, 0.05},
	}, "up", "flat")

	got := SharpeLike(f, 365)
	assert.InDelta(t, 2*math.Sqrt(365), got["up"].Raw(), 1e-9)
	assert.True(t, got["flat"].IsUndefined(), "zero variance must be the NaN sentinel")
	assert.False(t, got["flat"].IsMissing())
}

func TestSharpeLike_TooFewObservations(t *testing.T) {
	f := returnsFrame(map[AssetID][]float64{"a": {0.01}}, "a")
	assert.True(t, SharpeLike(f, 365)["a"].IsUndefined())
}

func TestCorrelation_IdenticalSeries(t *testing.T) {
	r := []float64{0.01, -0.02, 0.03, 0.005}
	m := Correlation(returnsFrame(map[AssetID][]float64{"a": r, "b": append([]float64(nil), r...)}, "a", "b"))

	require.Equal(t, []AssetID{"a", "b"}, m.Assets)
	for i := range m.Values {
		for j := range m.Values[i] {
			assert.InDelta(t, 1.0, m.Values[i][j].Raw(), 1e-12)
		}
	}
	assert.Equal(t, 1.0, m.Values[0][0].Raw())
	assert.Equal(t, 1.0, m.Values[1][1].Raw())
}

func TestCorrelation_SymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cols := map[AssetID][]float64{}
	order := []AssetID{"a", "b", "c", "d"}
	for _, c := range order {
		xs := make([]float64, 40)
		for i := range xs {
			xs[i] = rng.NormFloat64() / 50
		}
		cols[c] = xs
	}
	cols["d"][5] = math.NaN()

	m := Correlation(returnsFrame(cols, order...))
	for i := range order {
		assert.Equal(t, 1.0, m.Values[i][i].Raw())
		for j := range order {
			assert.Equal(t, m.Values[i][j], m.Values[j][i])
			v := m.Values[i][j].Raw()
			assert.True(t, v >= -1 && v <= 1, "corr[%d][%d]=%v", i, j, v)
		}
	}
	assert.Equal(t, m.Values[0][1], m.At("b", "a"))
	assert.True(t, m.At("a", "zzz").IsMissing())
}

func TestCorrelation_Negative(t *testing.T) {
	m := Correlation(returnsFrame(map[AssetID][]float64{
		"a": {0.01, 0.02, 0.03},
		"b": {0.03, 0.02, 0.01},
	}, "a", "b"))
	assert.InDelta(t, -1.0, m.At("a", "b").Raw(), 1e-12)
}

func TestCorrelation_InsufficientOverlap(t *testing.T) {
	nan := math.NaN()
	m := Correlation(returnsFrame(map[AssetID][]float64{
		"a": {0.01, 0.02, nan, nan},
		"b": {nan, 0.02, 0.03, 0.01},
		"c": {0.01, nan, nan, nan},
	}, "a", "b", "c"))
	assert.True(t, m.At("a", "b").IsUndefined())
	assert.True(t, m.At("c", "c").IsUndefined())
	assert.Equal(t, 1.0, m.At("b", "b").Raw())
}

func TestCorrelation_ZeroVariance(t *testing.T) {
	m := Correlation(returnsFrame(map[AssetID][]float64{
		"a": {0.01, 0.02, 0.03},
		"b": {0.02, 0.02, 0.02},
	}, "a", "b"))
	assert.True(t, m.At("a", "b").IsUndefined())
}

func TestBuildRiskTable(t *testing.T) {
	prices := matrix(t,
		series(t, "a", 0, 100, 110, 99, 120, 130),
		series(t, "b", 0, 10, 10, 10, 10, 10),
	)
	returns := ComputeReturns(prices, DropIncomplete)
	vol := RollingVolatility(returns, 3, 365)

	table := BuildRiskTable(prices, returns, vol, 365)
	require.Equal(t, []AssetID{"a", "b"}, table.Assets)

	a := table.Rows["a"]
	assert.True(t, a.SharpeLike.Valid())
	assert.True(t, a.Vol30dAnn.Valid())
	assert.InDelta(t, -0.1, a.MaxDrawdown.Raw(), 1e-12)

	b := table.Rows["b"]
	assert.True(t, b.SharpeLike.IsUndefined())
	assert.Equal(t, 0.0, b.Vol30dAnn.Raw())
	assert.Equal(t, 0.0, b.MaxDrawdown.Raw())

	short := BuildRiskTable(prices, returns, RollingVolatility(returns, 30, 365), 365)
	assert.True(t, short.Rows["a"].Vol30dAnn.IsMissing())
}
