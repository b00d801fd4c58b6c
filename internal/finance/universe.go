package finance

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Universe is the set of assets an analyst can pick from, in display order.
type Universe []AssetID

func (u Universe) Contains(id AssetID) bool {
	for _, a := range u {
		if a == id {
			return true
		}
	}
	return false
}

// Suggest returns the closest known asset to id, if one is near enough to be
// a plausible typo.
func (u Universe) Suggest(id AssetID) (AssetID, bool) {
	needle := strings.ToLower(strings.TrimSpace(string(id)))
	if needle == "" {
		return "", false
	}
	best, bestDist := AssetID(""), -1
	for _, a := range u {
		d := levenshtein.ComputeDistance(needle, string(a))
		if bestDist < 0 || d < bestDist {
			best, bestDist = a, d
		}
	}
	limit := len(needle) / 3
	if limit < 1 {
		limit = 1
	}
	if bestDist < 0 || bestDist > limit {
		return "", false
	}
	return best, true
}
