package recommendations

import (
	"errors"
	"time"

	"github.com/jordanlanch/bookworm/pkg/models"
)

var (
	// ErrRecommendationNotFound is returned when a recommendation doesn't exist or belongs to another user
	ErrRecommendationNotFound = errors.New("recommendation not found")
	// ErrBookNotFound is returned when the referenced book doesn't exist
	ErrBookNotFound = errors.New("book not found")
)

// Type identifies the strategy that produced a recommendation
type Type string

const (
	TypeGenreBased   Type = "genre_based"
	TypeRatingBased  Type = "rating_based"
	TypeSimilarUsers Type = "similar_users"
	TypeTrending     Type = "trending"
	TypeNewReleases  Type = "new_releases"
	TypeFallback     Type = "fallback"
)

// AllTypes lists every recommendation type in a stable order
var AllTypes = []Type{
	TypeGenreBased,
	TypeRatingBased,
	TypeSimilarUsers,
	TypeTrending,
	TypeNewReleases,
	TypeFallback,
}

// Valid reports whether t is a known recommendation type
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// BookRecommendation is a scored, explained suggestion.
// ID is set only when the recommendation was served from storage.
type BookRecommendation struct {
	ID          string          `json:"id,omitempty"`
	Book        models.BookView `json:"book"`
	Type        Type            `json:"recommendationType"`
	Score       float64         `json:"score"`
	Explanation string          `json:"explanation"`
	Reasons     []string        `json:"reasons"`
}

// Recommendation is a persisted recommendation row
type Recommendation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	BookID       string    `json:"bookId"`
	Type         Type      `json:"recommendationType"`
	Score        float64   `json:"score"`
	Explanation  string    `json:"explanation"`
	Viewed       bool      `json:"viewed"`
	Clicked      bool      `json:"clicked"`
	AddedToShelf bool      `json:"addedToShelf"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Query holds the options of a personalized recommendations request
type Query struct {
	Limit         int
	Refresh       bool
	Type          Type
	IncludeViewed bool
}

// WhyRecommended explains a single book suggestion
type WhyRecommended struct {
	Reasons []string `json:"reasons"`
	Score   float64  `json:"score"`
}

// StrategyResult is the tagged outcome of one strategy run.
// A failed strategy carries Err and contributes nothing.
type StrategyResult struct {
	Type       Type
	Candidates []BookRecommendation
	Err        error
}

// OK reports whether the strategy completed
func (r StrategyResult) OK() bool {
	return r.Err == nil
}

// TypeCounts aggregates stored rows of one recommendation type
type TypeCounts struct {
	Type     Type
	Count    int
	Viewed   int
	Clicked  int
	Added    int
	AvgScore float64
}

// BookCount is how often a book was recommended
type BookCount struct {
	BookID   string
	Count    int
	AvgScore float64
}

// TypePerformance ranks a type by how often its suggestions were viewed
type TypePerformance struct {
	Type     Type    `json:"type"`
	Count    int     `json:"count"`
	ViewRate float64 `json:"viewRate"`
}

// UserStats summarizes a user's stored recommendations. Rates are percentages.
type UserStats struct {
	TotalRecommendations  int               `json:"totalRecommendations"`
	RecommendationsByType map[Type]int      `json:"recommendationsByType"`
	ViewRate              float64           `json:"viewRate"`
	ClickRate             float64           `json:"clickRate"`
	ConversionRate        float64           `json:"conversionRate"`
	TopPerformingTypes    []TypePerformance `json:"topPerformingTypes"`
}

// TypeSummary is the per-type part of the system report
type TypeSummary struct {
	Type     Type    `json:"type"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avgScore"`
}

// EngagementStats is the system-wide engagement funnel
type EngagementStats struct {
	Total          int     `json:"total"`
	Viewed         int     `json:"viewed"`
	Clicked        int     `json:"clicked"`
	Added          int     `json:"added"`
	ViewRate       float64 `json:"viewRate"`
	ClickRate      float64 `json:"clickRate"`
	ConversionRate float64 `json:"conversionRate"`
}

// TopBook is a frequently recommended book
type TopBook struct {
	BookID     string  `json:"bookId"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	CoverImage string  `json:"coverImage,omitempty"`
	Count      int     `json:"count"`
	AvgScore   float64 `json:"avgScore"`
}

// SystemStats is the admin report over all stored recommendations
type SystemStats struct {
	TotalRecommendations  int             `json:"totalRecommendations"`
	ActiveRecommendations int             `json:"activeRecommendations"`
	RecommendationsByType []TypeSummary   `json:"recommendationsByType"`
	EngagementStats       EngagementStats `json:"engagementStats"`
	TopRecommendedBooks   []TopBook       `json:"topRecommendedBooks"`
}
