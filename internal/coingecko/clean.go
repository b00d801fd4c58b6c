package coingecko

import (
	"math"
	"time"

	"github.com/tidwall/btree"

	"cryptoMarketAnalysis/internal/finance"
)

// toPoints converts [unix ms, price] pairs into price points, dropping entries
// that are short, non-finite or not strictly positive. dropped counts them.
func toPoints(raw [][]float64) (pts []finance.PricePoint, dropped int) {
	pts = make([]finance.PricePoint, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			dropped++
			continue
		}
		ms, price := pair[0], pair[1]
		if math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
			dropped++
			continue
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			dropped++
			continue
		}
		pts = append(pts, finance.PricePoint{Time: time.UnixMilli(int64(ms)).UTC(), Price: price})
	}
	return pts, dropped
}

type bucketed struct {
	at    time.Time
	price float64
}

// snapPoints buckets points to interval boundaries (UTC) and keeps the latest
// observation per bucket. The result is sorted and free of duplicate times.
// A non-positive interval only dedupes exact timestamps.
func snapPoints(pts []finance.PricePoint, interval time.Duration) []finance.PricePoint {
	var buckets btree.Map[int64, bucketed]
	for _, p := range pts {
		key := p.Time
		if interval > 0 {
			key = key.Truncate(interval)
		}
		k := key.UnixNano()
		if prev, ok := buckets.Get(k); ok && prev.at.After(p.Time) {
			continue
		}
		buckets.Set(k, bucketed{at: p.Time, price: p.Price})
	}

	out := make([]finance.PricePoint, 0, buckets.Len())
	buckets.Scan(func(k int64, b bucketed) bool {
		out = append(out, finance.PricePoint{Time: time.Unix(0, k).UTC(), Price: b.price})
		return true
	})
	return out
}
