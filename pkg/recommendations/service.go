package recommendations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/bookworm/pkg/domain"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/jordanlanch/bookworm/pkg/models"
)

const (
	cacheHitFloor       = 5
	systemStatsCacheKey = "recommendations:stats:system"

	SourceCache     = "cache"
	SourceGenerated = "generated"
)

func userStatsCacheKey(userID string) string {
	return "recommendations:stats:user:" + userID
}

// Service handles personalized recommendation operations
type Service struct {
	store     Store
	books     domain.BookLookup
	generator Generator
	params    Params
	logger    logger.Logger
	cache     Cache
	observer  Observer
	now       func() time.Time
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithCache caches stats reports
func WithCache(c Cache) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

// WithObserver reports service events to o
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock sets the time source for expiry decisions
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new recommendations service
func NewService(store Store, books domain.BookLookup, generator Generator, params Params, log logger.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.Default()
	}

	s := &Service{
		store:     store,
		books:     books,
		generator: generator,
		params:    params,
		logger:    log,
		observer:  nopObserver{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params returns the engine constants the service was built with
func (s *Service) Params() Params {
	return s.params
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.params.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.params.StoreTimeout)
}

// GetPersonalizedRecommendations serves stored recommendations when enough active ones
// match the query, otherwise it generates, persists and returns a fresh list.
func (s *Service) GetPersonalizedRecommendations(ctx context.Context, userID string, q Query) ([]BookRecommendation, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid recommendation type %q", q.Type))
	}
	limit := s.params.Limit(q.Limit)

	if !q.Refresh {
		recs, hit, err := s.cached(ctx, userID, q, limit)
		if err != nil {
			s.logger.Warn("recommendation cache lookup failed, regenerating", "user_id", userID, "error", err)
		} else if hit {
			s.observer.RecommendationsServed(SourceCache, len(recs))
			return recs, nil
		}
	}

	return s.generate(ctx, userID, limit)
}

func (s *Service) cached(ctx context.Context, userID string, q Query, limit int) ([]BookRecommendation, bool, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rows, err := s.store.ListActive(sctx, userID, ActiveFilter{
		Type:          q.Type,
		IncludeViewed: q.IncludeViewed,
		Limit:         limit,
	}, s.now())
	if err != nil {
		return nil, false, err
	}
	if len(rows) < min(limit, cacheHitFloor) {
		return nil, false, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.BookID
	}
	books, err := s.books.GetBooks(sctx, ids)
	if err != nil {
		return nil, false, err
	}
	byID := make(map[string]models.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	recs := make([]BookRecommendation, 0, len(rows))
	for _, r := range rows {
		b, ok := byID[r.BookID]
		if !ok {
			continue
		}
		recs = append(recs, BookRecommendation{
			ID:          r.ID,
			Book:        models.NewBookView(b),
			Type:        r.Type,
			Score:       r.Score,
			Explanation: r.Explanation,
			Reasons:     []string{r.Explanation},
		})
	}
	return recs, true, nil
}

// generate runs the pipeline and replaces the user's active rows with the result
func (s *Service) generate(ctx context.Context, userID string, limit int) ([]BookRecommendation, error) {
	recs := s.generator.Generate(ctx, userID, limit)

	now := s.now()
	expires := s.params.Expiry(now)
	rows := make([]Recommendation, len(recs))
	for i := range recs {
		recs[i].ID = uuid.NewString()
		rows[i] = Recommendation{
			ID:          recs[i].ID,
			UserID:      userID,
			BookID:      recs[i].Book.ID,
			Type:        recs[i].Type,
			Score:       recs[i].Score,
			Explanation: recs[i].Explanation,
			ExpiresAt:   expires,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.store.ReplaceActive(sctx, userID, rows, now); err != nil {
		return nil, fmt.Errorf("failed to store recommendations: %w", err)
	}
	s.invalidateStats(ctx, userID)
	s.observer.RecommendationsServed(SourceGenerated, len(recs))

	return recs, nil
}

// RefreshRecommendations discards the user's active recommendations and generates new ones
func (s *Service) RefreshRecommendations(ctx context.Context, userID string) ([]BookRecommendation, error) {
	sctx, cancel := s.storeCtx(ctx)
	_, err := s.store.DeleteActive(sctx, userID, s.now())
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to delete active recommendations: %w", err)
	}

	return s.generate(ctx, userID, s.params.DefaultLimit)
}

// GetWhyRecommended explains why bookID suits the user: from the latest stored
// recommendation, else from a fresh in-memory run, else from the book's own numbers.
func (s *Service) GetWhyRecommended(ctx context.Context, userID, bookID string) (*WhyRecommended, error) {
	sctx, cancel := s.storeCtx(ctx)
	stored, err := s.store.LatestForBook(sctx, userID, bookID)
	cancel()

	switch {
	case err == nil:
		return &WhyRecommended{Reasons: []string{stored.Explanation}, Score: stored.Score}, nil
	case !errors.Is(err, ErrRecommendationNotFound):
		s.logger.Warn("stored recommendation lookup failed", "user_id", userID, "book_id", bookID, "error", err)
	}

	for _, rec := range s.generator.Generate(ctx, userID, s.params.DefaultLimit) {
		if rec.Book.ID == bookID {
			return &WhyRecommended{Reasons: rec.Reasons, Score: rec.Score}, nil
		}
	}

	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}

	return &WhyRecommended{
		Reasons: genericReasons(*book),
		Score:   math.Min(100, math.Floor(book.AverageRating*20)),
	}, nil
}

// MarkRecommendationViewed flags a recommendation owned by userID as viewed
func (s *Service) MarkRecommendationViewed(ctx context.Context, userID, recommendationID string) (*Recommendation, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rec, err := s.store.MarkViewed(sctx, userID, recommendationID, s.now())
	if err != nil {
		return nil, err
	}
	s.observer.EngagementRecorded("viewed")
	s.invalidateStats(ctx, userID)
	return rec, nil
}

// MarkRecommendationClicked flags a recommendation owned by userID as clicked
func (s *Service) MarkRecommendationClicked(ctx context.Context, userID, recommendationID string) (*Recommendation, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rec, err := s.store.MarkClicked(sctx, userID, recommendationID, s.now())
	if err != nil {
		return nil, err
	}
	s.observer.EngagementRecorded("clicked")
	s.invalidateStats(ctx, userID)
	return rec, nil
}

// MarkAddedToShelf records that the user shelved a recommended book
func (s *Service) MarkAddedToShelf(ctx context.Context, userID, bookID string) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.store.MarkAddedToShelf(sctx, userID, bookID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark recommendation shelved: %w", err)
	}
	if n > 0 {
		s.observer.EngagementRecorded("added_to_shelf")
		s.invalidateStats(ctx, userID)
	}
	return n, nil
}

// CleanupExpiredRecommendations deletes every expired row and returns how many were removed
func (s *Service) CleanupExpiredRecommendations(ctx context.Context) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.store.DeleteExpired(sctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired recommendations: %w", err)
	}

	s.observer.ExpiredDeleted(n)
	if n > 0 {
		s.invalidate(ctx, systemStatsCacheKey)
		s.invalidatePattern(ctx, userStatsCacheKey("*"))
	}
	return n, nil
}

// GetRecommendationStats reports on all of the user's stored recommendations
func (s *Service) GetRecommendationStats(ctx context.Context, userID string) (*UserStats, error) {
	key := userStatsCacheKey(userID)

	var stats UserStats
	if s.cacheGet(ctx, key, &stats) {
		return &stats, nil
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	counts, err := s.store.TypeCountsByUser(sctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate recommendations: %w", err)
	}

	stats = buildUserStats(counts)
	s.cacheSet(ctx, key, stats)
	return &stats, nil
}

// GetSystemRecommendationStats reports on every stored recommendation
func (s *Service) GetSystemRecommendationStats(ctx context.Context) (*SystemStats, error) {
	var stats SystemStats
	if s.cacheGet(ctx, systemStatsCacheKey, &stats) {
		return &stats, nil
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	counts, err := s.store.TypeCounts(sctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate recommendations: %w", err)
	}
	active, err := s.store.CountActive(sctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to count active recommendations: %w", err)
	}
	top, err := s.store.TopBooks(sctx, topBooksLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank recommended books: %w", err)
	}

	stats = SystemStats{
		ActiveRecommendations: active,
		RecommendationsByType: buildTypeSummaries(counts),
		EngagementStats:       buildEngagement(counts),
		TopRecommendedBooks:   []TopBook{},
	}
	stats.TotalRecommendations = stats.EngagementStats.Total

	if len(top) > 0 {
		ids := make([]string, len(top))
		for i, t := range top {
			ids[i] = t.BookID
		}
		books, err := s.books.GetBooks(sctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load recommended books: %w", err)
		}
		byID := make(map[string]models.Book, len(books))
		for _, b := range books {
			byID[b.ID] = b
		}

		for _, t := range top {
			b, ok := byID[t.BookID]
			if !ok {
				continue
			}
			stats.TopRecommendedBooks = append(stats.TopRecommendedBooks, TopBook{
				BookID:     b.ID,
				Title:      b.Title,
				Author:     b.Author,
				CoverImage: b.CoverImage,
				Count:      t.Count,
				AvgScore:   round2(t.AvgScore),
			})
		}
	}

	s.cacheSet(ctx, systemStatsCacheKey, stats)
	return &stats, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		s.logger.Warn("stats cache read failed", "key", key, "error", err)
		return false
	}
	return found
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.params.StatsCacheTTL); err != nil {
		s.logger.Warn("stats cache write failed", "key", key, "error", err)
	}
}

func (s *Service) invalidateStats(ctx context.Context, userID string) {
	s.invalidate(ctx, userStatsCacheKey(userID), systemStatsCacheKey)
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("stats cache invalidation failed", "keys", keys, "error", err)
	}
}

func (s *Service) invalidatePattern(ctx context.Context, pattern string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DeletePattern(ctx, pattern); err != nil {
		s.logger.Warn("stats cache invalidation failed", "pattern", pattern, "error", err)
	}
}
