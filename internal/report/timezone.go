package report

import "time"

// Location resolves name for chart and table labels, falling back to UTC
// when the name is empty or tzdata is missing.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
