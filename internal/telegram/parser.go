package telegram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cryptoMarketAnalysis/internal/finance"
)

var (
	// /analyze ID [ID ...] [window]
	reAnalyze = regexp.MustCompile(`^/analyze(?:@[\w_]+)?(?:\s+(.+))?$`)
	reCoins   = regexp.MustCompile(`^/coins(?:@[\w_]+)?$`)
	// /usage [days]
	reUsage = regexp.MustCompile(`^/usage(?:@[\w_]+)?(?:\s+(\d+))?$`)
	reHelp  = regexp.MustCompile(`^/(help|start)(?:@[\w_]+)?$`)

	reWindow = regexp.MustCompile(`^(\d+)([dwmy]?)$`)
)

// ParseWindow converts 90, 90d, 12w, 6m or 1y into days.
func ParseWindow(s string) (int, bool) {
	g := reWindow.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if g == nil {
		return 0, false
	}
	n, err := strconv.Atoi(g[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	switch g[2] {
	case "w":
		n *= 7
	case "m":
		n *= 30
	case "y":
		n *= 365
	}
	return n, true
}

// ParseAnalyzeArgs splits the /analyze arguments into asset ids and an
// optional trailing window. No ids means the configured default selection.
func ParseAnalyzeArgs(args string) ([]finance.AssetID, int, error) {
	fields := strings.Fields(args)
	days := 0
	if n := len(fields); n > 0 {
		if d, ok := ParseWindow(fields[n-1]); ok {
			days = d
			fields = fields[:n-1]
		}
	}

	seen := map[finance.AssetID]struct{}{}
	ids := make([]finance.AssetID, 0, len(fields))
	for _, f := range fields {
		id := finance.AssetID(strings.ToLower(strings.Trim(f, ",")))
		if id == "" {
			continue
		}
		if _, ok := ParseWindow(string(id)); ok {
			return nil, 0, fmt.Errorf("window %q must come last", f)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, days, nil
}
