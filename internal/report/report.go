package report

import (
	"time"

	"github.com/google/uuid"

	"cryptoMarketAnalysis/internal/finance"
)

// Report is the presentation form of an analysis: every frame becomes a
// labelled Table and the snapshot keeps the run's asset order.
type Report struct {
	ID          uuid.UUID              `json:"id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Config      finance.AnalysisConfig `json:"config"`
	Assets      []string               `json:"assets"`
	Snapshot    []finance.Snapshot     `json:"snapshot"`
	Prices      Table                  `json:"prices"`
	Returns     Table                  `json:"returns"`
	Cumulative  Table                  `json:"cumulative_returns"`
	Volatility  Table                  `json:"rolling_volatility"`
	Drawdowns   Table                  `json:"drawdowns"`
	Risk        Table                  `json:"risk"`
	Correlation Table                  `json:"correlation"`
	Excluded    []finance.Exclusion    `json:"excluded,omitempty"`
	Commentary  string                 `json:"commentary,omitempty"`
}

func Build(a *finance.Analysis, loc *time.Location) *Report {
	if loc == nil {
		loc = time.UTC
	}
	ids := a.Assets()
	r := &Report{
		ID:          a.ID,
		GeneratedAt: a.GeneratedAt.In(loc),
		Config:      a.Config,
		Assets:      assetLabels(ids),
		Prices:      FromFrame("prices", a.Prices, loc),
		Returns:     FromFrame("returns", a.Returns, loc),
		Cumulative:  FromFrame("cumulative_returns", a.Cumulative, loc),
		Volatility:  FromFrame("rolling_volatility", a.Volatility, loc),
		Drawdowns:   FromFrame("drawdowns", a.Drawdowns, loc),
		Risk:        RiskTable(a.Risk),
		Correlation: CorrelationTable(a.Correlation),
		Excluded:    a.Excluded,
	}
	for _, id := range ids {
		if s, ok := a.Snapshot[id]; ok {
			r.Snapshot = append(r.Snapshot, s)
		}
	}
	return r
}
