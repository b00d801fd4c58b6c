package report

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vicanso/go-charts/v2"

	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/metrics"
)

// ChartKind names one dashboard image.
type ChartKind string

const (
	ChartPrice       ChartKind = "price"
	ChartCumulative  ChartKind = "cumulative"
	ChartVolatility  ChartKind = "volatility"
	ChartDrawdown    ChartKind = "drawdown"
	ChartRisk        ChartKind = "risk"
	ChartCorrelation ChartKind = "correlation"
)

// ChartKinds is the render order used by RenderAll.
var ChartKinds = []ChartKind{ChartPrice, ChartCumulative, ChartVolatility, ChartDrawdown, ChartRisk, ChartCorrelation}

func ParseChartKind(s string) (ChartKind, bool) {
	for _, k := range ChartKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ErrNoChartData is returned when a frame has no complete row to plot.
var ErrNoChartData = errors.New("not enough data points")

// Renderer draws PNG charts for an analysis.
type Renderer struct {
	loc    *time.Location
	width  int
	height int
}

func NewRenderer(loc *time.Location, width, height int) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	if width <= 0 {
		width = 900
	}
	if height <= 0 {
		height = 420
	}
	return &Renderer{loc: loc, width: width, height: height}
}

// Render draws one chart kind.
func (r *Renderer) Render(a *finance.Analysis, kind ChartKind) ([]byte, error) {
	var (
		buf []byte
		err error
	)
	switch kind {
	case ChartPrice:
		title := "Price History (" + strings.ToUpper(a.Config.VsCurrency) + ")"
		prices := a.Prices
		if prices != nil && len(prices.Columns()) > 1 {
			prices = rebase(prices, 100)
			title = "Price History (indexed to 100)"
		}
		buf, err = r.lineChart(prices, title)
	case ChartCumulative:
		buf, err = r.lineChart(a.Cumulative, "Cumulative Returns")
	case ChartVolatility:
		buf, err = r.lineChart(a.Volatility, fmt.Sprintf("Rolling %dD Volatility (annualized)", a.Config.VolWindow))
	case ChartDrawdown:
		buf, err = r.lineChart(a.Drawdowns, "Drawdowns")
	case ChartRisk:
		t := RiskTable(a.Risk)
		buf, err = tableChart(t.Header("Asset"), t.Rows(finance.Value.String))
	case ChartCorrelation:
		t := CorrelationTable(a.Correlation)
		buf, err = tableChart(t.Header(""), t.Rows(finance.Value.String))
	default:
		return nil, fmt.Errorf("unknown chart kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s chart: %w", kind, err)
	}
	metrics.ChartsRendered.WithLabelValues(string(kind)).Inc()
	return buf, nil
}

// RenderAll draws every kind that has data. Kinds without a complete row
// are skipped; any other failure aborts.
func (r *Renderer) RenderAll(a *finance.Analysis) (map[ChartKind][]byte, error) {
	out := make(map[ChartKind][]byte, len(ChartKinds))
	for _, kind := range ChartKinds {
		buf, err := r.Render(a, kind)
		if errors.Is(err, ErrNoChartData) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[kind] = buf
	}
	return out, nil
}

// lineChart plots the rows of f where every column holds a valid number.
func (r *Renderer) lineChart(f *finance.Frame, title string) ([]byte, error) {
	if f == nil || f.Empty() {
		return nil, ErrNoChartData
	}
	cols := f.Columns()
	series := make([][]float64, len(cols))
	var times []time.Time
	index := f.Index()
	for i := range index {
		row := make([]float64, len(cols))
		complete := true
		for j, c := range cols {
			v, ok := f.At(i, c).Float()
			if !ok {
				complete = false
				break
			}
			row[j] = v
		}
		if !complete {
			continue
		}
		times = append(times, index[i])
		for j := range cols {
			series[j] = append(series[j], row[j])
		}
	}
	if len(times) < 2 {
		return nil, ErrNoChartData
	}

	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			yMin = math.Min(yMin, v)
			yMax = math.Max(yMax, v)
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(yMax)*0.05, 0.01)
	}
	yMin -= pad
	yMax += pad

	labels := axisLabels(times, r.loc)
	p, err := charts.LineRender(
		series,
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: splitNumber(len(labels)),
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: assetLabels(cols),
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(r.width),
		charts.HeightOptionFunc(r.height),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

func tableChart(header []string, rows [][]string) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoChartData
	}
	p, err := charts.TableRender(header, rows)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// rebase divides every column by its first valid price and multiplies by base.
func rebase(f *finance.Frame, base float64) *finance.Frame {
	cols := f.Columns()
	out := finance.NewFrame(f.Index(), cols)
	for _, c := range cols {
		first := math.NaN()
		for i, v := range f.Column(c) {
			x, ok := v.Float()
			if !ok {
				continue
			}
			if math.IsNaN(first) {
				first = x
			}
			out.Set(i, c, finance.Number(x/first*base))
		}
	}
	return out
}

func axisLabels(times []time.Time, loc *time.Location) []string {
	layout := "Jan 02"
	switch {
	case subDaily(times):
		layout = "Jan 02 15:04"
	case len(times) > 120:
		layout = "Jan '06"
	}
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.In(loc).Format(layout)
	}
	return out
}

func splitNumber(n int) int {
	if n > 30 {
		return 6
	}
	return max(n/3, 3)
}
