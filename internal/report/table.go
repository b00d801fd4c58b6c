package report

import (
	"time"

	"github.com/shopspring/decimal"

	"cryptoMarketAnalysis/internal/finance"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// indexLayout labels rows by date, or by date and time when the index is
// finer than a day so labels stay unique.
func indexLayout(index []time.Time) string {
	if subDaily(index) {
		return dateTimeLayout
	}
	return dateLayout
}

func subDaily(index []time.Time) bool {
	for i := 1; i < len(index); i++ {
		if index[i].Sub(index[i-1]) < 24*time.Hour {
			return true
		}
	}
	return false
}

// Table is a row and column labelled grid of result cells.
type Table struct {
	Name    string            `json:"name"`
	Index   []string          `json:"index"`
	Columns []string          `json:"columns"`
	Data    [][]finance.Value `json:"data"`
}

// Rows renders every cell with format, prefixing the row label.
func (t Table) Rows(format func(finance.Value) string) [][]string {
	out := make([][]string, len(t.Data))
	for i, row := range t.Data {
		line := make([]string, 0, len(row)+1)
		line = append(line, t.Index[i])
		for _, v := range row {
			line = append(line, format(v))
		}
		out[i] = line
	}
	return out
}

// Header returns the column labels behind a corner label.
func (t Table) Header(corner string) []string {
	return append([]string{corner}, t.Columns...)
}

// FromFrame labels rows by date in loc and columns by asset id.
func FromFrame(name string, f *finance.Frame, loc *time.Location) Table {
	t := Table{Name: name}
	if f == nil {
		return t
	}
	cols := f.Columns()
	t.Columns = assetLabels(cols)
	index := f.Index()
	layout := indexLayout(index)
	for i, ts := range index {
		t.Index = append(t.Index, ts.In(loc).Format(layout))
		row := make([]finance.Value, len(cols))
		for j, c := range cols {
			row[j] = f.At(i, c)
		}
		t.Data = append(t.Data, row)
	}
	return t
}

// RiskTable lays out one row per asset with the three risk columns.
func RiskTable(rt finance.RiskTable) Table {
	t := Table{
		Name:    "risk",
		Index:   assetLabels(rt.Assets),
		Columns: []string{"Sharpe_like", "Vol_30d_ann", "Max_Drawdown"},
	}
	for _, id := range rt.Assets {
		m := rt.Rows[id]
		t.Data = append(t.Data, []finance.Value{m.SharpeLike, m.Vol30dAnn, m.MaxDrawdown})
	}
	return t
}

func CorrelationTable(m finance.CorrelationMatrix) Table {
	labels := assetLabels(m.Assets)
	t := Table{Name: "correlation", Index: labels, Columns: labels}
	for _, row := range m.Values {
		t.Data = append(t.Data, append([]finance.Value(nil), row...))
	}
	return t
}

// SnapshotHeader matches the rows produced by SnapshotRows.
var SnapshotHeader = []string{"Asset", "Symbol", "Price", "Market cap", "Volume 24h", "24h %", "7d %", "30d %"}

// SnapshotRows formats snapshots in the given asset order; assets without a
// snapshot are skipped.
func SnapshotRows(ids []finance.AssetID, snap map[finance.AssetID]finance.Snapshot) [][]string {
	var out [][]string
	for _, id := range ids {
		s, ok := snap[id]
		if !ok {
			continue
		}
		out = append(out, []string{
			string(id),
			s.Symbol,
			s.CurrentPrice.String(),
			nullFixed(s.MarketCap, 0),
			nullFixed(s.TotalVolume, 0),
			nullFixed(s.Change24hPct, 2),
			nullFixed(s.Change7dPct, 2),
			nullFixed(s.Change30dPct, 2),
		})
	}
	return out
}

func nullFixed(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return "—"
	}
	return d.Decimal.StringFixed(places)
}

func assetLabels(ids []finance.AssetID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
