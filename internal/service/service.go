package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cryptoMarketAnalysis/internal/config"
	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/report"
	"cryptoMarketAnalysis/internal/storage"
)

type Analyzer interface {
	Run(ctx context.Context, cfg finance.AnalysisConfig) (*finance.Analysis, error)
}

type Commentator interface {
	Comment(ctx context.Context, r *report.Report) (string, error)
}

type UsageLog interface {
	RecordRun(ctx context.Context, r storage.Run) error
	UsageStats(ctx context.Context, since time.Time) (map[string]*storage.UsageStats, error)
	UsageSeries(ctx context.Context, since time.Time, bucket time.Duration) (map[string][]storage.TimeSeriesPoint, error)
	RecentRuns(ctx context.Context, limit int) ([]storage.Run, error)
}

// UnknownAssetError rejects an id outside the configured universe.
type UnknownAssetError struct {
	Asset      finance.AssetID
	Suggestion finance.AssetID
}

func (e *UnknownAssetError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown asset %q, did you mean %q?", e.Asset, e.Suggestion)
	}
	return fmt.Sprintf("unknown asset %q", e.Asset)
}

func (e *UnknownAssetError) Unwrap() error { return finance.ErrInvalidConfig }

type Options struct {
	Defaults    config.AnalysisConfig
	Renderer    *report.Renderer
	Cache       *report.Cache
	Usage       UsageLog
	Commentator Commentator
	Location    *time.Location
	Logger      *zap.Logger
}

// Service runs analyses for the presenters and keeps their output in the
// chart cache and the usage log.
type Service struct {
	analyzer Analyzer
	opts     Options
	universe finance.Universe
	logger   *zap.Logger
}

type Request struct {
	Assets       []finance.AssetID
	LookbackDays int
	Source       string
	ChatID       int64
}

type Result struct {
	Report *report.Report
	Charts map[report.ChartKind][]byte
}

func New(analyzer Analyzer, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Renderer == nil {
		opts.Renderer = report.NewRenderer(opts.Location, 0, 0)
	}
	if opts.Cache == nil {
		opts.Cache = report.NewCache(30 * time.Minute)
	}
	return &Service{
		analyzer: analyzer,
		opts:     opts,
		universe: opts.Defaults.UniverseIDs(),
		logger:   opts.Logger.Named("service"),
	}
}

func (s *Service) Universe() finance.Universe { return s.universe }

func (s *Service) Defaults() config.AnalysisConfig { return s.opts.Defaults }

func (s *Service) Cache() *report.Cache { return s.opts.Cache }

// Analyze validates req against the universe and lookback bounds, runs the
// analysis, renders its charts and records the run.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	ids, err := s.resolve(req.Assets)
	if err != nil {
		return nil, err
	}
	days := req.LookbackDays
	if days == 0 {
		days = s.opts.Defaults.LookbackDays
	}
	if days < s.opts.Defaults.MinLookbackDays || days > s.opts.Defaults.MaxLookbackDays {
		return nil, fmt.Errorf("%w: lookback must be between %d and %d days, got %d",
			finance.ErrInvalidConfig, s.opts.Defaults.MinLookbackDays, s.opts.Defaults.MaxLookbackDays, days)
	}

	start := time.Now()
	a, err := s.analyzer.Run(ctx, s.opts.Defaults.Finance(ids, days))
	s.record(ctx, req, ids, days, a, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	rep := report.Build(a, s.opts.Location)
	if s.opts.Commentator != nil {
		cctx, cancel := context.WithTimeout(ctx, 45*time.Second)
		text, cerr := s.opts.Commentator.Comment(cctx, rep)
		cancel()
		if cerr != nil {
			s.logger.Warn("commentary failed", zap.String("run", a.ID.String()), zap.Error(cerr))
		} else {
			rep.Commentary = text
		}
	}

	charts, err := s.opts.Renderer.RenderAll(a)
	if err != nil {
		return nil, fmt.Errorf("charts: %w", err)
	}
	s.opts.Cache.Put(rep, charts)
	return &Result{Report: rep, Charts: charts}, nil
}

// recentRuns is how many of the latest runs a usage summary lists.
const recentRuns = 5

// Usage is the usage log summary over a number of days. Location is the
// display zone for Series and Recent.
type Usage struct {
	Days     int
	Stats    map[string]*storage.UsageStats
	Series   map[string][]storage.TimeSeriesPoint
	Recent   []storage.Run
	Location *time.Location
}

func (s *Service) Usage(ctx context.Context, days int) (*Usage, error) {
	if s.opts.Usage == nil {
		return nil, errors.New("usage log is disabled")
	}
	since := time.Now().AddDate(0, 0, -days)
	stats, err := s.opts.Usage.UsageStats(ctx, since)
	if err != nil {
		return nil, err
	}
	series, err := s.opts.Usage.UsageSeries(ctx, since, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	recent, err := s.opts.Usage.RecentRuns(ctx, recentRuns)
	if err != nil {
		return nil, err
	}
	return &Usage{Days: days, Stats: stats, Series: series, Recent: recent, Location: s.opts.Location}, nil
}

func (s *Service) resolve(in []finance.AssetID) ([]finance.AssetID, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]finance.AssetID, 0, len(in))
	for _, raw := range in {
		id := finance.AssetID(strings.ToLower(strings.TrimSpace(string(raw))))
		if id == "" {
			continue
		}
		if !s.universe.Contains(id) {
			hint, _ := s.universe.Suggest(id)
			return nil, &UnknownAssetError{Asset: id, Suggestion: hint}
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, req Request, ids []finance.AssetID, days int, a *finance.Analysis, runErr error, took time.Duration) {
	if s.opts.Usage == nil {
		return
	}
	run := storage.Run{
		ID:           uuid.New(),
		Source:       req.Source,
		ChatID:       req.ChatID,
		LookbackDays: days,
		OK:           runErr == nil,
		Duration:     took,
		At:           time.Now().UTC(),
	}
	if a != nil {
		run.ID = a.ID
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if len(ids) == 0 {
		ids = s.opts.Defaults.Finance(nil, days).AssetIDs
	}
	for _, id := range ids {
		run.Assets = append(run.Assets, string(id))
	}
	if err := s.opts.Usage.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("record run failed", zap.String("run", run.ID.String()), zap.Error(err))
	}
}
