package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run sources.
const (
	SourceWeb      = "web"
	SourceAPI      = "api"
	SourceTelegram = "telegram"
)

// Run is one recorded analysis request.
type Run struct {
	ID           uuid.UUID
	Source       string
	ChatID       int64
	Assets       []string
	LookbackDays int
	OK           bool
	Error        string
	Duration     time.Duration
	At           time.Time
}

// UsageStats aggregates runs of one source.
type UsageStats struct {
	Count  int
	Failed int
	Assets map[string]int
}

type TimeSeriesPoint struct {
	Timestamp int64
	Count     int
}

type Store struct{ db DB }

func NewStore(db DB) *Store { return &Store{db: db} }

func (s *Store) RecordRun(ctx context.Context, r Run) error {
	ok := 0
	if r.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO analysis_runs(run_id,source,chat_id,assets,lookback_days,ok,error,duration_ms,ts)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		r.ID.String(), r.Source, r.ChatID, strings.Join(r.Assets, ","), r.LookbackDays, ok, r.Error,
		r.Duration.Milliseconds(), r.At.Unix())
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,source,chat_id,assets,lookback_days,ok,error,duration_ms,ts
		FROM analysis_runs ORDER BY ts DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                Run
			id, assets, errS string
			ok               int
			durationMS, ts   int64
		)
		if err := rows.Scan(&id, &r.Source, &r.ChatID, &assets, &r.LookbackDays, &ok, &errS, &durationMS, &ts); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ID, _ = uuid.Parse(id)
		r.Assets = splitAssets(assets)
		r.OK = ok == 1
		r.Error = errS
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.At = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// UsageStats aggregates runs since the given time by source.
func (s *Store) UsageStats(ctx context.Context, since time.Time) (map[string]*UsageStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, assets, ok FROM analysis_runs WHERE ts>=?`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	out := map[string]*UsageStats{}
	for rows.Next() {
		var (
			source, assets string
			ok             int
		)
		if err := rows.Scan(&source, &assets, &ok); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		st, found := out[source]
		if !found {
			st = &UsageStats{Assets: map[string]int{}}
			out[source] = st
		}
		st.Count++
		if ok != 1 {
			st.Failed++
		}
		for _, a := range splitAssets(assets) {
			st.Assets[a]++
		}
	}
	return out, rows.Err()
}

// UsageSeries counts runs per source in buckets of the given width.
func (s *Store) UsageSeries(ctx context.Context, since time.Time, bucket time.Duration) (map[string][]TimeSeriesPoint, error) {
	width := int64(bucket / time.Second)
	if width <= 0 {
		width = 86400
	}
	rows, err := s.db.QueryContext(ctx, `SELECT source, (ts / ?) * ? AS bucket, COUNT(*)
		FROM analysis_runs WHERE ts>=? GROUP BY source, bucket ORDER BY bucket`, width, width, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query usage series: %w", err)
	}
	defer rows.Close()

	out := map[string][]TimeSeriesPoint{}
	for rows.Next() {
		var (
			source string
			p      TimeSeriesPoint
		)
		if err := rows.Scan(&source, &p.Timestamp, &p.Count); err != nil {
			return nil, fmt.Errorf("scan usage series: %w", err)
		}
		out[source] = append(out[source], p)
	}
	return out, rows.Err()
}

// TopAssets returns the most requested assets across stats, at most n.
func TopAssets(stats map[string]*UsageStats, n int) []string {
	counts := map[string]int{}
	for _, st := range stats {
		for a, c := range st.Assets {
			counts[a] += c
		}
	}
	out := make([]string, 0, len(counts))
	for a := range counts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func splitAssets(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
