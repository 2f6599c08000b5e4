// Package eligibility decides which processing tier an upload may run on.
package eligibility

import (
	"errors"
	"fmt"

	"github.com/quietcut/quietcut/pkg/models"
)

// FreeDurationLimitSecs is the inclusive upper bound for free-tier videos.
const FreeDurationLimitSecs = 60.0

// ErrIneligible is the class all rejection reasons match via errors.Is.
var ErrIneligible = errors.New("ineligible for requested tier")

var (
	// ErrFreeDurationExceeded rejects free-tier requests above the limit.
	// The classifier never silently upgrades to premium.
	ErrFreeDurationExceeded = fmt.Errorf("%w: free tier supports videos up to %.0f seconds", ErrIneligible, FreeDurationLimitSecs)
	// ErrPremiumRequiresAccount rejects premium requests from callers
	// without the premium capability.
	ErrPremiumRequiresAccount = fmt.Errorf("%w: authentication required for premium processing", ErrIneligible)
	// ErrUnknownTier rejects tiers outside {free, premium}.
	ErrUnknownTier = fmt.Errorf("%w: unknown tier", ErrIneligible)
)

// Classify maps a video duration, the requested tier, and the caller's
// premium capability to the tier the job will run on. Pure: no I/O, no state.
func Classify(durationSecs float64, requested models.Tier, hasPremium bool) (models.Tier, error) {
	switch requested {
	case models.TierFree:
		if durationSecs > FreeDurationLimitSecs {
			return "", ErrFreeDurationExceeded
		}
		return models.TierFree, nil
	case models.TierPremium:
		if !hasPremium {
			return "", ErrPremiumRequiresAccount
		}
		return models.TierPremium, nil
	default:
		return "", ErrUnknownTier
	}
}
