package coingecko

import (
	"time"

	"github.com/shopspring/decimal"
)

// marketsResp mirrors the /coins/markets response (trimmed to needed fields)
type marketsResp []struct {
	ID                   string              `json:"id"`
	Symbol               string              `json:"symbol"`
	Name                 string              `json:"name"`
	CurrentPrice         decimal.NullDecimal `json:"current_price"`
	MarketCap            decimal.NullDecimal `json:"market_cap"`
	TotalVolume          decimal.NullDecimal `json:"total_volume"`
	PriceChange24hInCurr decimal.NullDecimal `json:"price_change_percentage_24h_in_currency"`
	PriceChange7dInCurr  decimal.NullDecimal `json:"price_change_percentage_7d_in_currency"`
	PriceChange30dInCurr decimal.NullDecimal `json:"price_change_percentage_30d_in_currency"`
	LastUpdated          time.Time           `json:"last_updated"`
}

// marketChartResp mirrors /coins/{id}/market_chart; every entry is [unix ms, value]
type marketChartResp struct {
	Prices       [][]float64 `json:"prices"`
	MarketCaps   [][]float64 `json:"market_caps"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// errorResp is the body CoinGecko sends with 4xx answers
type errorResp struct {
	Error  string `json:"error"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}
