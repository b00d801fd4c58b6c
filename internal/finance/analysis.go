package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cryptoMarketAnalysis/internal/metrics"
)

// MarketDataClient is the provider of snapshots and price histories.
// Failures wrap ErrDataUnavailable. GetSnapshot may return the assets it did
// find together with an error describing the ones it did not.
type MarketDataClient interface {
	GetSnapshot(ctx context.Context, vsCurrency string, ids []AssetID) (map[AssetID]Snapshot, error)
	GetHistory(ctx context.Context, vsCurrency string, id AssetID, lookbackDays int) (PriceSeries, error)
}

// Analyzer runs the full pipeline: fetch, align, returns, risk metrics.
type Analyzer struct {
	client MarketDataClient
	logger *zap.Logger
	now    func() time.Time
}

func NewAnalyzer(client MarketDataClient, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, logger: logger.Named("analyzer"), now: time.Now}
}

// Run executes one analysis. Market data failures abort the run unless
// cfg.SkipUnavailable is set, in which case the failing assets are listed in
// Analysis.Excluded. That includes assets missing from a partial snapshot;
// a snapshot that fails outright always aborts.
func (a *Analyzer) Run(ctx context.Context, cfg AnalysisConfig) (*Analysis, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		metrics.AnalysisRuns.WithLabelValues("invalid").Inc()
		return nil, err
	}
	start := a.now()
	out, err := a.run(ctx, cfg)
	metrics.AnalysisDuration.Observe(a.now().Sub(start).Seconds())
	if err != nil {
		metrics.AnalysisRuns.WithLabelValues("error").Inc()
		a.logger.Warn("analysis failed", zap.Strings("assets", assetStrings(cfg.AssetIDs)), zap.Error(err))
		return nil, err
	}
	metrics.AnalysisRuns.WithLabelValues("ok").Inc()
	a.logger.Info("analysis complete",
		zap.String("run_id", out.ID.String()),
		zap.Strings("assets", assetStrings(out.Assets())),
		zap.Int("rows", out.Prices.Len()),
		zap.Int("excluded", len(out.Excluded)),
		zap.Duration("took", a.now().Sub(start)))
	return out, nil
}

func (a *Analyzer) run(ctx context.Context, cfg AnalysisConfig) (*Analysis, error) {
	out := &Analysis{
		ID:          uuid.New(),
		Config:      cfg,
		GeneratedAt: a.now().UTC(),
		Snapshot:    make(map[AssetID]Snapshot, len(cfg.AssetIDs)),
	}

	snap, err := a.client.GetSnapshot(ctx, cfg.VsCurrency, cfg.AssetIDs)
	if err != nil && (!cfg.SkipUnavailable || !errors.Is(err, ErrDataUnavailable) || len(snap) == 0) {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	series := make([]PriceSeries, 0, len(cfg.AssetIDs))
	for _, id := range cfg.AssetIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, ok := snap[id]
		if !ok {
			miss := Unavailable(id, "no snapshot returned")
			if !cfg.SkipUnavailable {
				return nil, fmt.Errorf("snapshot: %w", miss)
			}
			a.exclude(out, id, miss)
			continue
		}

		hist, err := a.client.GetHistory(ctx, cfg.VsCurrency, id, cfg.LookbackDays)
		if err == nil && len(hist.Points) < 2 {
			err = Unavailable(id, "need at least 2 price points, got %d", len(hist.Points))
		}
		if err != nil {
			if cfg.SkipUnavailable && errors.Is(err, ErrDataUnavailable) {
				a.exclude(out, id, err)
				continue
			}
			return nil, fmt.Errorf("history: %w", err)
		}
		out.Snapshot[id] = s
		series = append(series, hist)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no asset has usable price history", ErrDataUnavailable)
	}

	prices, err := AlignPrices(series...)
	if err != nil {
		return nil, err
	}
	out.Prices = prices
	out.Returns = ComputeReturns(prices, cfg.MissingPolicy)
	out.Cumulative = ComputeCumulative(out.Returns)
	out.Volatility = RollingVolatility(out.Returns, cfg.VolWindow, cfg.PeriodsPerYear)
	out.Drawdowns = Drawdowns(prices)
	out.Risk = BuildRiskTable(prices, out.Returns, out.Volatility, cfg.PeriodsPerYear)
	out.Correlation = Correlation(out.Returns)
	return out, nil
}

func (a *Analyzer) exclude(out *Analysis, id AssetID, err error) {
	a.logger.Warn("excluding asset", zap.String("asset", string(id)), zap.Error(err))
	reason := err
	var ae *AssetError
	if errors.As(err, &ae) && ae.Asset == id {
		reason = ae.Err
	}
	out.Excluded = append(out.Excluded, Exclusion{Asset: id, Err: reason.Error()})
}

func assetStrings(ids []AssetID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
