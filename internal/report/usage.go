package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vicanso/go-charts/v2"

	"cryptoMarketAnalysis/internal/storage"
)

// MakeUsageChart draws the share of runs per source as a pie chart.
func MakeUsageChart(stats map[string]*storage.UsageStats, days int) ([]byte, error) {
	if len(stats) == 0 {
		return nil, fmt.Errorf("no usage data available")
	}

	sources := sortedSources(stats)
	values := make([]float64, 0, len(sources))
	total := 0
	for _, src := range sources {
		values = append(values, float64(stats[src].Count))
		total += stats[src].Count
	}
	labels := make([]string, len(sources))
	for i, src := range sources {
		labels[i] = fmt.Sprintf("%s (%.1f%%)", sourceName(src), values[i]/float64(total)*100)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(fmt.Sprintf("Analysis Runs by Source (%d days)", days)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// MakeUsageTimeSeriesChart draws run counts per source over time.
func MakeUsageTimeSeriesChart(series map[string][]storage.TimeSeriesPoint, days int, loc *time.Location) ([]byte, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no time series data available")
	}

	seen := map[int64]bool{}
	var stamps []int64
	for _, points := range series {
		for _, p := range points {
			if !seen[p.Timestamp] {
				seen[p.Timestamp] = true
				stamps = append(stamps, p.Timestamp)
			}
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	xAxis := make([]string, len(stamps))
	for i, ts := range stamps {
		xAxis[i] = time.Unix(ts, 0).In(loc).Format("01/02")
	}

	sources := make([]string, 0, len(series))
	for src := range series {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	data := make([][]float64, 0, len(sources))
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		counts := make(map[int64]int, len(series[src]))
		for _, p := range series[src] {
			counts[p.Timestamp] = p.Count
		}
		row := make([]float64, len(stamps))
		for i, ts := range stamps {
			row[i] = float64(counts[ts])
		}
		data = append(data, row)
		names = append(names, sourceName(src))
	}

	p, err := charts.LineRender(
		data,
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xAxis}),
		charts.TitleTextOptionFunc(fmt.Sprintf("Analysis Runs Over Time (%d days)", days)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: names,
			Top:  charts.PositionTop,
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// FormatUsageStatsText summarizes usage per source with the top assets.
func FormatUsageStatsText(stats map[string]*storage.UsageStats, days int) string {
	if len(stats) == 0 {
		return "No usage data available for the specified period."
	}

	total := 0
	for _, st := range stats {
		total += st.Count
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Usage* (%d days)\n\n", days)
	fmt.Fprintf(&b, "*Total runs*: %d\n\n", total)
	for _, src := range sortedSources(stats) {
		st := stats[src]
		fmt.Fprintf(&b, "*%s* (%d runs, %.1f%%, %d failed)\n",
			sourceName(src), st.Count, float64(st.Count)/float64(total)*100, st.Failed)
		for _, a := range storage.TopAssets(map[string]*storage.UsageStats{src: st}, 5) {
			fmt.Fprintf(&b, "  • %s: %d\n", a, st.Assets[a])
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatRecentRuns lists the latest runs in a monospaced block. Error text
// stays inside the block so Markdown never parses it.
func FormatRecentRuns(runs []storage.Run, loc *time.Location) string {
	if len(runs) == 0 {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		status := "ok"
		if !r.OK {
			status = "failed: " + r.Error
		}
		rows[i] = []string{
			r.At.In(loc).Format("01/02 15:04"),
			r.Source,
			strings.Join(r.Assets, ","),
			fmt.Sprintf("%dd", r.LookbackDays),
			status,
		}
	}
	return "*Recent runs*\n" + block([]string{"time", "source", "assets", "window", "status"}, rows)
}

func sortedSources(stats map[string]*storage.UsageStats) []string {
	out := make([]string, 0, len(stats))
	for src := range stats {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

func sourceName(src string) string {
	switch src {
	case storage.SourceWeb:
		return "🖥 Dashboard"
	case storage.SourceAPI:
		return "🔌 JSON API"
	case storage.SourceTelegram:
		return "💬 Telegram"
	default:
		return src
	}
}
