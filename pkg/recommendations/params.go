package recommendations

import (
	"time"

	"github.com/jordanlanch/bookworm/config"
)

// Params are the product constants of the engine
type Params struct {
	DefaultLimit               int
	MaxLimit                   int
	ExpiryDays                 int
	MinBooksForPersonalization int
	MinConfidenceScore         float64
	DuplicateBoost             float64
	StoreTimeout               time.Duration
	StatsCacheTTL              time.Duration
}

// DefaultParams returns the stock BookWorm values
func DefaultParams() Params {
	return Params{
		DefaultLimit:               12,
		MaxLimit:                   18,
		ExpiryDays:                 7,
		MinBooksForPersonalization: 3,
		MinConfidenceScore:         30,
		DuplicateBoost:             10,
		StoreTimeout:               5 * time.Second,
		StatsCacheTTL:              5 * time.Minute,
	}
}

// ParamsFromConfig maps configuration onto Params, keeping defaults for unset values
func ParamsFromConfig(cfg config.RecommendationConfig) Params {
	p := DefaultParams()
	if cfg.DefaultLimit > 0 {
		p.DefaultLimit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 {
		p.MaxLimit = cfg.MaxLimit
	}
	if cfg.ExpiryDays > 0 {
		p.ExpiryDays = cfg.ExpiryDays
	}
	if cfg.MinBooksForPersonalization >= 0 {
		p.MinBooksForPersonalization = cfg.MinBooksForPersonalization
	}
	if cfg.MinConfidenceScore > 0 {
		p.MinConfidenceScore = cfg.MinConfidenceScore
	}
	if cfg.DuplicateBoost >= 0 {
		p.DuplicateBoost = cfg.DuplicateBoost
	}
	if cfg.StoreTimeout > 0 {
		p.StoreTimeout = cfg.StoreTimeout
	}
	if cfg.StatsCacheTTL > 0 {
		p.StatsCacheTTL = cfg.StatsCacheTTL
	}
	return p
}

// Limit normalizes a requested limit: non-positive means default, capped at MaxLimit
func (p Params) Limit(requested int) int {
	if requested <= 0 {
		requested = p.DefaultLimit
	}
	if requested > p.MaxLimit {
		requested = p.MaxLimit
	}
	return requested
}

// Expiry returns the expiry time of a row generated at now
func (p Params) Expiry(now time.Time) time.Time {
	return now.Add(time.Duration(p.ExpiryDays) * 24 * time.Hour)
}

// clamp bounds a strategy score to [MinConfidenceScore, 100]
func (p Params) clamp(score float64) float64 {
	if score > 100 {
		return 100
	}
	if score < p.MinConfidenceScore {
		return p.MinConfidenceScore
	}
	return score
}
