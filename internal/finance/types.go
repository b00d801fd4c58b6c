package finance

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetID is an opaque coin identifier as used by the market data provider (e.g. "bitcoin").
type AssetID string

// PricePoint is one sampled price of an asset
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// PriceSeries is the price history of a single asset, ordered by time.
type PriceSeries struct {
	Asset  AssetID      `json:"asset"`
	Points []PricePoint `json:"points"`
}

// NewPriceSeries checks that timestamps are strictly increasing and prices
// are finite and positive.
func NewPriceSeries(asset AssetID, points []PricePoint) (PriceSeries, error) {
	for i, p := range points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			return PriceSeries{}, fmt.Errorf("%s: invalid price %v at %s", asset, p.Price, p.Time.Format(time.RFC3339))
		}
		if i > 0 && !p.Time.After(points[i-1].Time) {
			return PriceSeries{}, fmt.Errorf("%s: timestamps not strictly increasing at index %d", asset, i)
		}
	}
	return PriceSeries{Asset: asset, Points: points}, nil
}

// Prices returns the raw prices in time order.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Price
	}
	return out
}

// Snapshot is the point-in-time market state of an asset.
type Snapshot struct {
	ID           AssetID             `json:"id"`
	Symbol       string              `json:"symbol"`
	Name         string              `json:"name"`
	CurrentPrice decimal.Decimal     `json:"current_price"`
	MarketCap    decimal.NullDecimal `json:"market_cap"`
	TotalVolume  decimal.NullDecimal `json:"total_volume"`
	Change24hPct decimal.NullDecimal `json:"price_change_percentage_24h"`
	Change7dPct  decimal.NullDecimal `json:"price_change_percentage_7d"`
	Change30dPct decimal.NullDecimal `json:"price_change_percentage_30d"`
	LastUpdated  time.Time           `json:"last_updated"`
}

// RiskMetrics is one row of the risk table.
type RiskMetrics struct {
	// SharpeLike is the annualized mean return over annualized volatility,
	// without a risk-free rate. It is not a Sharpe ratio.
	SharpeLike  Value `json:"Sharpe_like"`
	Vol30dAnn   Value `json:"Vol_30d_ann"`
	MaxDrawdown Value `json:"Max_Drawdown"`
}

// RiskTable maps assets to their risk metrics; Assets fixes the row order.
type RiskTable struct {
	Assets []AssetID               `json:"assets"`
	Rows   map[AssetID]RiskMetrics `json:"rows"`
}

// CorrelationMatrix is a symmetric asset × asset matrix of Pearson coefficients.
type CorrelationMatrix struct {
	Assets []AssetID `json:"assets"`
	Values [][]Value `json:"values"`
}

// At returns the coefficient for the pair (a, b).
func (m CorrelationMatrix) At(a, b AssetID) Value {
	i, j := -1, -1
	for k, id := range m.Assets {
		if id == a {
			i = k
		}
		if id == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return Missing()
	}
	return m.Values[i][j]
}

// Exclusion records an asset dropped from a run because its data was unavailable.
type Exclusion struct {
	Asset AssetID `json:"asset"`
	Err   string  `json:"error"`
}

// Analysis is everything one run produces.
type Analysis struct {
	ID          uuid.UUID            `json:"id"`
	Config      AnalysisConfig       `json:"config"`
	GeneratedAt time.Time            `json:"generated_at"`
	Snapshot    map[AssetID]Snapshot `json:"snapshot"`
	Prices      *Frame               `json:"prices"`
	Returns     *Frame               `json:"returns"`
	Cumulative  *Frame               `json:"cumulative_returns"`
	Volatility  *Frame               `json:"rolling_volatility"`
	Drawdowns   *Frame               `json:"drawdowns"`
	Risk        RiskTable            `json:"risk"`
	Correlation CorrelationMatrix    `json:"correlation"`
	Excluded    []Exclusion          `json:"excluded,omitempty"`
}

// Assets returns the assets that made it into the price matrix.
func (a *Analysis) Assets() []AssetID {
	if a.Prices == nil {
		return nil
	}
	return a.Prices.Columns()
}
