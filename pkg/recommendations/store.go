package recommendations

import (
	"context"
	"time"
)

// ActiveFilter narrows a lookup of a user's active rows
type ActiveFilter struct {
	Type          Type
	IncludeViewed bool
	Limit         int
}

// Store persists recommendation rows. A row is active while expires_at > now.
type Store interface {
	// ListActive returns active rows ordered by score desc then newest
	ListActive(ctx context.Context, userID string, filter ActiveFilter, now time.Time) ([]Recommendation, error)
	// LatestForBook returns the newest row for the pair, expired or not, or ErrRecommendationNotFound
	LatestForBook(ctx context.Context, userID, bookID string) (*Recommendation, error)
	// ReplaceActive deletes the user's active rows, then inserts recs
	ReplaceActive(ctx context.Context, userID string, recs []Recommendation, now time.Time) error
	DeleteActive(ctx context.Context, userID string, now time.Time) (int64, error)

	// MarkViewed and MarkClicked return ErrRecommendationNotFound for missing or foreign rows
	MarkViewed(ctx context.Context, userID, id string, now time.Time) (*Recommendation, error)
	MarkClicked(ctx context.Context, userID, id string, now time.Time) (*Recommendation, error)
	// MarkAddedToShelf flags the user's active rows for bookID and returns how many changed
	MarkAddedToShelf(ctx context.Context, userID, bookID string, now time.Time) (int64, error)

	// DeleteExpired removes rows with expires_at <= now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	TypeCountsByUser(ctx context.Context, userID string) ([]TypeCounts, error)
	TypeCounts(ctx context.Context) ([]TypeCounts, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
	// TopBooks returns the most recommended books, most frequent first
	TopBooks(ctx context.Context, limit int) ([]BookCount, error)
}

// Cache stores JSON-encoded report snapshots
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob pattern and returns how many were removed
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// Observer receives engine and service events, usually for metrics
type Observer interface {
	StrategyCompleted(t Type, ok bool, candidates int, elapsed time.Duration)
	RecommendationsServed(source string, count int)
	EngagementRecorded(kind string)
	ExpiredDeleted(count int64)
}

type nopObserver struct{}

func (nopObserver) StrategyCompleted(Type, bool, int, time.Duration) {}
func (nopObserver) RecommendationsServed(string, int)                {}
func (nopObserver) EngagementRecorded(string)                        {}
func (nopObserver) ExpiredDeleted(int64)                             {}
