package report

import (
	"fmt"
	"strings"

	"cryptoMarketAnalysis/internal/finance"
)

// FormatRiskText renders the risk table as a Markdown message with a
// monospaced block.
func FormatRiskText(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📉 *Risk Metrics* (%d days, %s)\n", r.Config.LookbackDays, strings.ToUpper(r.Config.VsCurrency))
	b.WriteString(block(r.Risk.Header("asset"), r.Risk.Rows(finance.Value.String)))
	if len(r.Excluded) > 0 {
		// error text goes in a code block: Markdown would parse its underscores.
		rows := make([][]string, len(r.Excluded))
		for i, ex := range r.Excluded {
			rows[i] = []string{string(ex.Asset), ex.Err}
		}
		b.WriteString("\n*Excluded*\n")
		b.WriteString(block([]string{"asset", "reason"}, rows))
	}
	return b.String()
}

func FormatCorrelationText(r *Report) string {
	return "🔗 *Return Correlation*\n" + block(r.Correlation.Header(""), r.Correlation.Rows(finance.Value.String))
}

// FormatSnapshotText lists price and 24h change per asset.
func FormatSnapshotText(r *Report) string {
	if len(r.Snapshot) == 0 {
		return "No market snapshot available."
	}
	var b strings.Builder
	b.WriteString("💰 *Market Snapshot*\n")
	for _, s := range r.Snapshot {
		fmt.Fprintf(&b, "*%s* (%s): %s %s", s.Name, s.Symbol, s.CurrentPrice.String(), strings.ToUpper(r.Config.VsCurrency))
		if s.Change24hPct.Valid {
			fmt.Fprintf(&b, " • 24h %s%%", s.Change24hPct.Decimal.StringFixed(2))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func block(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len([]rune(h))
	}
	for _, row := range rows {
		for i, c := range row {
			if n := len([]rune(c)); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}
	var b strings.Builder
	b.WriteString("```\n")
	line := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(c)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-len([]rune(c))))
			}
		}
		b.WriteString("\n")
	}
	line(header)
	for _, row := range rows {
		line(row)
	}
	b.WriteString("```\n")
	return b.String()
}
