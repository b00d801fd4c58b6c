package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/metrics"
)

const (
	DefaultBaseURL         = "https://api.coingecko.com/api/v3"
	DefaultAPIKeyHeader    = "x-cg-demo-api-key"
	DefaultTimeout         = 20 * time.Second
	DefaultRequestInterval = 1200 * time.Millisecond
	DefaultSnapInterval    = 24 * time.Hour

	previewLen = 120
)

// Config holds the client settings. Zero fields fall back to the defaults above;
// a negative RequestInterval disables pacing and a negative SnapInterval keeps
// the provider's native resolution.
type Config struct {
	BaseURL         string
	APIKey          string
	APIKeyHeader    string
	Timeout         time.Duration
	RequestInterval time.Duration
	SnapInterval    time.Duration
	UserAgent       string
}

// Client talks to the public CoinGecko REST API. It never retries: a failed
// request surfaces as finance.ErrDataUnavailable for the caller to handle.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu   sync.Mutex
	next time.Time
}

var _ finance.MarketDataClient = (*Client)(nil)

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestInterval == 0 {
		cfg.RequestInterval = DefaultRequestInterval
	}
	if cfg.SnapInterval == 0 {
		cfg.SnapInterval = DefaultSnapInterval
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crypto-market-analysis/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("coingecko"),
	}
}

// GetSnapshot fetches the market overview for ids. Assets the provider does
// not return are reported in the error while the rest are still returned.
func (c *Client) GetSnapshot(ctx context.Context, vsCurrency string, ids []finance.AssetID) (map[finance.AssetID]finance.Snapshot, error) {
	joined := joinIDs(ids)
	q := url.Values{}
	q.Set("vs_currency", vsCurrency)
	q.Set("ids", joined)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(max(len(ids), 1)))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h,7d,30d")

	var mr marketsResp
	if err := c.get(ctx, "markets", "/coins/markets", q, finance.AssetID(joined), &mr); err != nil {
		return nil, err
	}

	out := make(map[finance.AssetID]finance.Snapshot, len(mr))
	for _, m := range mr {
		id := finance.AssetID(m.ID)
		if !m.CurrentPrice.Valid {
			c.logger.Warn("snapshot without current price", zap.String("asset", m.ID))
			continue
		}
		out[id] = finance.Snapshot{
			ID:           id,
			Symbol:       strings.ToUpper(m.Symbol),
			Name:         m.Name,
			CurrentPrice: m.CurrentPrice.Decimal,
			MarketCap:    m.MarketCap,
			TotalVolume:  m.TotalVolume,
			Change24hPct: m.PriceChange24hInCurr,
			Change7dPct:  m.PriceChange7dInCurr,
			Change30dPct: m.PriceChange30dInCurr,
			LastUpdated:  m.LastUpdated.UTC(),
		}
	}

	var missing []error
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, finance.Unavailable(id, "not returned by /coins/markets"))
		}
	}
	return out, errors.Join(missing...)
}

// GetHistory fetches the price history of one asset over lookbackDays and
// returns it cleaned and snapped to the configured interval.
func (c *Client) GetHistory(ctx context.Context, vsCurrency string, id finance.AssetID, lookbackDays int) (finance.PriceSeries, error) {
	q := url.Values{}
	q.Set("vs_currency", vsCurrency)
	q.Set("days", strconv.Itoa(lookbackDays))

	var mc marketChartResp
	path := "/coins/" + url.PathEscape(string(id)) + "/market_chart"
	if err := c.get(ctx, "market_chart", path, q, id, &mc); err != nil {
		return finance.PriceSeries{}, err
	}
	if len(mc.Prices) == 0 {
		return finance.PriceSeries{}, finance.Unavailable(id, "empty price history")
	}

	pts, dropped := toPoints(mc.Prices)
	if dropped > 0 {
		c.logger.Debug("dropped invalid price points", zap.String("asset", string(id)), zap.Int("dropped", dropped))
	}
	pts = snapPoints(pts, max(c.cfg.SnapInterval, 0))

	s, err := finance.NewPriceSeries(id, pts)
	if err != nil {
		return finance.PriceSeries{}, finance.Unavailable(id, "malformed history: %v", err)
	}
	return s, nil
}

// pace reserves the next request slot and waits for it.
func (c *Client) pace(ctx context.Context) error {
	if c.cfg.RequestInterval < 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	slot := c.next
	if slot.Before(now) {
		slot = now
	}
	c.next = slot.Add(c.cfg.RequestInterval)
	c.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// get performs one GET and decodes the JSON body into into. Every failure
// is an *finance.AssetError wrapping finance.ErrDataUnavailable.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, asset finance.AssetID, into any) error {
	if err := c.pace(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return &finance.AssetError{Asset: asset, Err: fmt.Errorf("%w: %w", finance.ErrDataUnavailable, err)}
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	if readErr != nil {
		return finance.Unavailable(asset, "failed to read %s response: %v", endpoint, readErr)
	}

	c.logger.Debug("upstream response",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return finance.Unavailable(asset, "unknown asset (%s returned 404: %s)", endpoint, apiMessage(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return finance.Unavailable(asset, "rate limited by %s (429)", endpoint)
	case resp.StatusCode != http.StatusOK:
		return finance.Unavailable(asset, "%s returned %d: %s", endpoint, resp.StatusCode, apiMessage(body))
	}
	if strings.HasPrefix(strings.TrimSpace(string(body)), "<") {
		return finance.Unavailable(asset, "%s returned non-json body: %s", endpoint, preview(body))
	}
	if err := json.Unmarshal(body, into); err != nil {
		return finance.Unavailable(asset, "failed to parse %s json: %v; body: %s", endpoint, err, preview(body))
	}
	return nil
}

// apiMessage extracts the provider's error text, falling back to a body preview.
func apiMessage(body []byte) string {
	var er errorResp
	if json.Unmarshal(body, &er) == nil {
		if er.Error != "" {
			return er.Error
		}
		if er.Status.ErrorMessage != "" {
			return er.Status.ErrorMessage
		}
	}
	return preview(body)
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > previewLen {
		s = s[:previewLen]
	}
	return s
}

func joinIDs(ids []finance.AssetID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
