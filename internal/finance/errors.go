package finance

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable is returned by market data clients for network
	// failures, bad status codes, malformed payloads and unknown assets.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInvalidConfig marks a rejected AnalysisConfig.
	ErrInvalidConfig = errors.New("invalid analysis config")
)

// AssetError ties a failure to the asset it happened for.
type AssetError struct {
	Asset AssetID
	Err   error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Asset, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// Unavailable builds an AssetError wrapping ErrDataUnavailable.
func Unavailable(asset AssetID, format string, args ...any) error {
	return &AssetError{
		Asset: asset,
		Err:   fmt.Errorf("%w: %s", ErrDataUnavailable, fmt.Sprintf(format, args...)),
	}
}
