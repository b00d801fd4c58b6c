package finance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MissingPolicy decides what happens to return rows where some assets have no value.
type MissingPolicy string

const (
	// DropIncomplete drops every row in which any asset is missing.
	DropIncomplete MissingPolicy = "drop"
	// PreserveMissing keeps per-asset missing markers and only drops rows
	// where all assets are missing.
	PreserveMissing MissingPolicy = "preserve"
)

const (
	DefaultVolWindow      = 30
	DefaultPeriodsPerYear = 365
)

// AnalysisConfig is passed to every run in place of module-level settings.
type AnalysisConfig struct {
	VsCurrency      string        `json:"vs_currency" validate:"required,lowercase,min=3,max=8"`
	AssetIDs        []AssetID     `json:"asset_ids" validate:"required,min=1,max=25,dive,required"`
	LookbackDays    int           `json:"lookback_days" validate:"min=2,max=3650"`
	VolWindow       int           `json:"vol_window" validate:"min=2,max=365"`
	PeriodsPerYear  int           `json:"periods_per_year" validate:"min=1,max=525600"`
	MissingPolicy   MissingPolicy `json:"missing_policy" validate:"oneof=drop preserve"`
	SkipUnavailable bool          `json:"skip_unavailable"`
}

var validate = validator.New()

// Normalize lowercases identifiers, removes duplicate assets (first wins) and
// fills zero-valued tuning fields with defaults.
func (c AnalysisConfig) Normalize() AnalysisConfig {
	c.VsCurrency = strings.ToLower(strings.TrimSpace(c.VsCurrency))
	seen := make(map[AssetID]struct{}, len(c.AssetIDs))
	ids := make([]AssetID, 0, len(c.AssetIDs))
	for _, id := range c.AssetIDs {
		id = AssetID(strings.ToLower(strings.TrimSpace(string(id))))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	c.AssetIDs = ids
	if c.VolWindow == 0 {
		c.VolWindow = DefaultVolWindow
	}
	if c.PeriodsPerYear == 0 {
		c.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if c.MissingPolicy == "" {
		c.MissingPolicy = DropIncomplete
	}
	return c
}

// Validate checks c and returns an error wrapping ErrInvalidConfig.
func (c AnalysisConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
